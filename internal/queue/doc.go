// Package queue provides a max-heap of (node, distance) pairs used for
// bounded nearest-center queries.
package queue
