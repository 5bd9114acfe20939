// Package mmap provides read-only memory-mapped files.
//
// It backs blobstore.LocalStore so segment blobs on local disk are read
// without copying them through the page cache twice.
package mmap
