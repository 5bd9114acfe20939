package elkan

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/elkan/blobstore"
	"github.com/hupe1980/elkan/codec"
	"github.com/hupe1980/elkan/internal/conv"
	"github.com/hupe1980/elkan/internal/kmeans"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const resultVersion = 1

// CurrentName is the pointer blob naming the most recently published result.
const CurrentName = "CURRENT"

// Result is the outcome of a clustering run.
type Result struct {
	Version              int           `json:"version"`
	K                    int           `json:"k"`
	Dimension            int           `json:"dimension"`
	Points               int           `json:"points"`
	Seed                 int64         `json:"seed"`
	Seeds                []int         `json:"seeds"`
	Centers              [][]float32   `json:"centers"`
	Assignments          []int         `json:"assignments"`
	Sizes                []int         `json:"sizes"`
	Iterations           int           `json:"iterations"`
	Converged            bool          `json:"converged"`
	DistanceComputations int64         `json:"distance_computations"`
	Inertia              float64       `json:"inertia"`
	Duration             time.Duration `json:"duration_ns"`
	CreatedAt            time.Time     `json:"created_at"`
}

// Validate checks that the result is internally consistent.
func (r *Result) Validate() error {
	if r.Version != resultVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidResult, r.Version)
	}
	if r.K <= 0 || len(r.Centers) != r.K || len(r.Sizes) != r.K {
		return fmt.Errorf("%w: k=%d with %d centers and %d sizes", ErrInvalidResult, r.K, len(r.Centers), len(r.Sizes))
	}
	if len(r.Assignments) != r.Points {
		return fmt.Errorf("%w: %d assignments for %d points", ErrInvalidResult, len(r.Assignments), r.Points)
	}
	for c, center := range r.Centers {
		if len(center) != r.Dimension {
			return fmt.Errorf("%w: center %d has dimension %d, want %d", ErrInvalidResult, c, len(center), r.Dimension)
		}
	}

	counts := make([]int, r.K)
	for i, a := range r.Assignments {
		if a < 0 || a >= r.K {
			return fmt.Errorf("%w: point %d assigned to %d", ErrInvalidResult, i, a)
		}
		counts[a]++
	}
	for c := range counts {
		if counts[c] != r.Sizes[c] {
			return fmt.Errorf("%w: cluster %d has %d points, sizes says %d", ErrInvalidResult, c, counts[c], r.Sizes[c])
		}
	}
	return nil
}

// Members returns the point indices assigned to cluster c.
func (r *Result) Members(c int) (*roaring.Bitmap, error) {
	if c < 0 || c >= r.K {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidCluster, c, r.K)
	}
	bm := roaring.New()
	for i, a := range r.Assignments {
		if a != c {
			continue
		}
		id, err := conv.IntToUint32(i)
		if err != nil {
			return nil, err
		}
		bm.Add(id)
	}
	return bm, nil
}

// Nearest returns the closest center to vec and its distance.
func (r *Result) Nearest(vec []float32) (int, float64, error) {
	if len(vec) != r.Dimension {
		return -1, 0, &DimensionMismatchError{Index: -1, Expected: r.Dimension, Actual: len(vec)}
	}
	c, d := kmeans.Nearest(vec, r.Centers)
	return c, d, nil
}

// NearestN returns the n closest centers to vec, nearest first.
func (r *Result) NearestN(vec []float32, n int) ([]int, error) {
	if len(vec) != r.Dimension {
		return nil, &DimensionMismatchError{Index: -1, Expected: r.Dimension, Actual: len(vec)}
	}
	return kmeans.NearestN(vec, r.Centers, n), nil
}

// SizeStats summarizes the cluster size distribution.
type SizeStats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Empty  int     `json:"empty"`
}

// SizeStats computes statistics over Sizes.
func (r *Result) SizeStats() SizeStats {
	if len(r.Sizes) == 0 {
		return SizeStats{}
	}

	sizes := make([]float64, len(r.Sizes))
	empty := 0
	for i, s := range r.Sizes {
		sizes[i] = float64(s)
		if s == 0 {
			empty++
		}
	}

	mean, std := stat.MeanStdDev(sizes, nil)
	if len(sizes) == 1 {
		std = 0
	}
	return SizeStats{
		Min:    floats.Min(sizes),
		Max:    floats.Max(sizes),
		Mean:   mean,
		StdDev: std,
		Empty:  empty,
	}
}

// Save writes the result to store under name using codec.Default.
func (r *Result) Save(ctx context.Context, store blobstore.BlobStore, name string) error {
	data, err := codec.Default.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := store.Put(ctx, name, data); err != nil {
		return fmt.Errorf("write result %s: %w", name, err)
	}
	return nil
}

// LoadResult reads and validates a result written by Save.
func LoadResult(ctx context.Context, store blobstore.BlobStore, name string) (*Result, error) {
	data, err := blobstore.ReadAll(ctx, store, name)
	if err != nil {
		return nil, fmt.Errorf("read result %s: %w", name, err)
	}

	var r Result
	if err := codec.Default.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrInvalidResult, name, err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// ResultName returns the blob name Publish uses for id.
func ResultName(id string) string {
	return path.Join("results", id+".json")
}

// Publish saves the result as results/<id>.json and then points CURRENT at
// it. It returns the result blob name.
func (r *Result) Publish(ctx context.Context, store blobstore.BlobStore, id string) (string, error) {
	if id == "" || path.Base(id) != id {
		return "", fmt.Errorf("invalid result id %q", id)
	}

	name := ResultName(id)
	if err := r.Save(ctx, store, name); err != nil {
		return "", err
	}
	if err := store.Put(ctx, CurrentName, []byte(name)); err != nil {
		return "", fmt.Errorf("update %s: %w", CurrentName, err)
	}
	return name, nil
}

// LoadCurrent resolves CURRENT and loads the result it points to.
func LoadCurrent(ctx context.Context, store blobstore.BlobStore) (*Result, error) {
	target, err := blobstore.ReadAll(ctx, store, CurrentName)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", CurrentName, err)
	}
	return LoadResult(ctx, store, string(target))
}
