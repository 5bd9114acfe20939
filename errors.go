package elkan

import (
	"errors"

	"github.com/hupe1980/elkan/internal/kmeans"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = kmeans.ErrInvalidK

	// ErrEmptyDataset is returned when the dataset has no points.
	ErrEmptyDataset = kmeans.ErrEmptyDataset

	// ErrTooFewPoints is returned when k exceeds the number of points.
	ErrTooFewPoints = kmeans.ErrTooFewPoints

	// ErrInvalidSeeds is returned when explicit initial indices are not k
	// distinct in-range point indices.
	ErrInvalidSeeds = kmeans.ErrInvalidSeeds

	// ErrNotInitialized is returned when stepping before initialization.
	ErrNotInitialized = kmeans.ErrNotInitialized

	// ErrInvalidCluster is returned for a cluster index outside [0, k).
	ErrInvalidCluster = errors.New("cluster index out of range")

	// ErrInvalidResult is returned when a stored result fails validation.
	ErrInvalidResult = errors.New("invalid result")
)

// InvalidDimensionError indicates a dataset whose vectors have an unusable dimension.
type InvalidDimensionError = kmeans.InvalidDimensionError

// DimensionMismatchError indicates a vector whose length differs from the
// dataset dimension.
type DimensionMismatchError = kmeans.DimensionMismatchError
