// Package elkan clusters large collections of embedding vectors with
// accelerated k-means.
//
// Clustering uses Elkan's algorithm: per-point upper and lower distance
// bounds and the triangle inequality rule out most point-to-center distance
// evaluations, while every iteration produces exactly the assignments of
// Lloyd's algorithm.
//
// # Quick Start
//
//	ds, _ := dataset.FromVectors(vectors)
//	res, _ := elkan.Cluster(ctx, ds, 64, elkan.WithSeed(42))
//	fmt.Println(res.Iterations, res.Converged, res.Sizes)
//
// Step-wise control:
//
//	c, _ := elkan.New(ds, 64, elkan.WithMaxIterations(20))
//	for c.State() != elkan.StateConverged {
//	    if err := c.Step(); err != nil { ... }
//	}
//
// # Large datasets
//
// dataset.Writer splits vectors into compressed segment blobs on any
// blobstore.BlobStore (local directory, S3, MinIO). dataset.OpenSegmented
// reads them back with one segment cached at a time, so a sequential pass
// per iteration loads every segment once.
//
// # Results
//
// A Result can be saved to and loaded from a blob store. Publish writes the
// result under results/ and moves the CURRENT pointer to it; with the
// DynamoDB commit store the pointer update is atomic.
package elkan
