// Package testutil provides testing utilities for the clusterer.
//
// This package is intended for use in tests and benchmarks only.
//
//	rng := testutil.NewRNG(seed)
//	vecs, labels := rng.GaussianBlobs(1000, 16, 8, 10, 0.5)
package testutil
