// Package blobstore provides the storage abstraction for datasets and
// clustering results.
//
// BlobStore is the interface for reading and writing immutable blobs
// (segments, manifests, results). Implementations must be safe for
// concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-process maps, for tests and mem:// URLs
//   - LocalStore: local filesystem with mmap reads and atomic renames
//   - CachingStore: block cache in front of any other store
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible servers
//
// Remote stores should be wrapped in a CachingStore so that the per-frame
// reads of a segmented dataset turn into a handful of range requests.
package blobstore
