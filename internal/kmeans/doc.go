// Package kmeans implements batch k-means with Elkan's triangle-inequality
// pruning.
//
// The Engine keeps, per point, an upper bound on the distance to its
// assigned center and a lower bound on the distance to every other center.
// A candidate center is evaluated only when the bounds cannot rule it out, so
// the assignments after every Step are exactly those of Lloyd's algorithm
// while most point-to-center distances are never computed.
package kmeans
