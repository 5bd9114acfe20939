package testutil

import (
	"math"
	"math/rand"
	"sync"

	"github.com/hupe1980/elkan/distance"
)

// RNG wraps a seeded random source for reproducible test data.
// It is safe for concurrent use.
type RNG struct {
	rand *rand.Rand
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{rand: rand.New(rand.NewSource(seed))}
}

// UniformVectors generates random vectors with values in range [0, 1).
// Uses a single backing array for efficiency.
func (r *RNG) UniformVectors(num int, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)

	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions]
		for j := range vec {
			vec[j] = r.rand.Float32()
		}
		vectors[i] = vec
	}

	return vectors
}

// GaussianBlobs generates num vectors around `clusters` well-separated
// centers. Blob c sits at distance separation*(c+1) from the origin along a
// random unit direction; each point adds Gaussian noise with standard
// deviation spread. Returns the vectors and the index of the blob each was
// drawn from (point i belongs to blob i % clusters).
func (r *RNG) GaussianBlobs(num, dim, clusters int, separation, spread float32) ([][]float32, []int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dirs := r.directions(clusters, dim)

	data := make([]float32, num*dim)
	vectors := make([][]float32, num)
	labels := make([]int, num)

	for i := range num {
		c := i % clusters
		vec := data[i*dim : (i+1)*dim]
		for j := range vec {
			vec[j] = dirs[c][j]*separation*float32(c+1) + float32(r.rand.NormFloat64())*spread
		}
		vectors[i] = vec
		labels[i] = c
	}

	return vectors, labels
}

// directions draws n random unit vectors. Callers hold r.mu.
func (r *RNG) directions(n, dim int) [][]float32 {
	dirs := make([][]float32, n)
	for c := range dirs {
		v := make([]float32, dim)
		var norm2 float64
		for j := range v {
			x := r.rand.NormFloat64()
			v[j] = float32(x)
			norm2 += x * x
		}
		if norm2 == 0 {
			v[0] = 1
		} else {
			inv := 1 / math.Sqrt(norm2)
			for j := range v {
				v[j] = float32(float64(v[j]) * inv)
			}
		}
		dirs[c] = v
	}
	return dirs
}

// NearestCenter returns the index of the center closest to v by exhaustive
// search; ties resolve to the lowest index.
func NearestCenter(v []float32, centers [][]float32) int {
	best := 0
	bestDist := distance.L2(v, centers[0])
	for c := 1; c < len(centers); c++ {
		if d := distance.L2(v, centers[c]); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
