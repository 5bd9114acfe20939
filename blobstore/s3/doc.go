// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("datasets/speech/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	ds, err := dataset.OpenSegmented(ctx, blobstore.NewCachingStore(store, c, 0))
//
// # Features
//
//   - Range reads for per-frame access to segments
//   - Streaming multipart uploads with CRC32C checksums
//   - Automatic pagination for listing
//   - DDBCommitStore: atomic CURRENT pointer for published results
package s3
