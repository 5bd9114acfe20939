package kmeans

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")

	// ErrEmptyDataset is returned when the dataset has no points.
	ErrEmptyDataset = errors.New("dataset is empty")

	// ErrTooFewPoints is returned when k exceeds the number of points.
	ErrTooFewPoints = errors.New("k exceeds number of points")

	// ErrInvalidSeeds is returned when explicit initial indices are not k
	// distinct in-range point indices.
	ErrInvalidSeeds = errors.New("invalid initial indices")

	// ErrNotInitialized is returned when stepping an engine before Init.
	ErrNotInitialized = errors.New("engine not initialized")
)

// InvalidDimensionError reports a dataset whose vectors have an unusable dimension.
type InvalidDimensionError struct {
	Dimension int
}

func (e *InvalidDimensionError) Error() string {
	return fmt.Sprintf("invalid dimension: %d", e.Dimension)
}

// DimensionMismatchError reports a point whose length differs from the
// dimension of point 0.
type DimensionMismatchError struct {
	Index    int
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch at point %d: expected %d, got %d", e.Index, e.Expected, e.Actual)
}
