// Package distance provides the vector distance kernels used by the clusterer.
//
// Only the Euclidean metric is used for clustering: the pruning bounds rely on
// the triangle inequality under L2.
//
// # Usage
//
//	d := distance.L2(a, b)
//	d2 := distance.SquaredL2(a, b) // inertia terms
package distance
