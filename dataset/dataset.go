package dataset

import (
	"errors"
	"fmt"
)

// ErrOutOfRange is returned (wrapped in *IndexError) when a point index is
// outside [0, Len()).
var ErrOutOfRange = errors.New("index out of range")

// ErrInvalidShape is returned when flat data does not divide into rows.
var ErrInvalidShape = errors.New("invalid dataset shape")

// Dataset is an indexed, read-only collection of equal-length vectors.
//
// The same index always yields the same values. Returned slices must be
// treated as read-only; they stay valid for the lifetime of the dataset.
type Dataset interface {
	// Len returns the number of points.
	Len() int
	// VectorAt returns point i.
	VectorAt(i int) ([]float32, error)
}

// IndexError reports an out-of-range point index.
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("point index %d out of range [0, %d)", e.Index, e.Len)
}

func (e *IndexError) Unwrap() error { return ErrOutOfRange }

func checkIndex(i, n int) error {
	if i < 0 || i >= n {
		return &IndexError{Index: i, Len: n}
	}
	return nil
}

// Memory is a Dataset backed by one row-major []float32.
type Memory struct {
	data []float32
	dim  int
	n    int
}

var _ Dataset = (*Memory)(nil)

// NewMemory wraps row-major data of the given dimension. The slice is not copied.
func NewMemory(data []float32, dim int) (*Memory, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension %d", ErrInvalidShape, dim)
	}
	if len(data)%dim != 0 {
		return nil, fmt.Errorf("%w: %d values not divisible by dimension %d", ErrInvalidShape, len(data), dim)
	}
	return &Memory{data: data, dim: dim, n: len(data) / dim}, nil
}

// FromVectors copies equal-length vectors into a Memory dataset.
func FromVectors(vectors [][]float32) (*Memory, error) {
	if len(vectors) == 0 {
		return &Memory{dim: 0}, nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: dimension 0", ErrInvalidShape)
	}
	data := make([]float32, 0, len(vectors)*dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has length %d, want %d", ErrInvalidShape, i, len(v), dim)
		}
		data = append(data, v...)
	}
	return &Memory{data: data, dim: dim, n: len(vectors)}, nil
}

// Len returns the number of points.
func (m *Memory) Len() int { return m.n }

// Dim returns the vector dimension.
func (m *Memory) Dim() int { return m.dim }

// VectorAt returns point i as a view into the backing slice.
func (m *Memory) VectorAt(i int) ([]float32, error) {
	if err := checkIndex(i, m.n); err != nil {
		return nil, err
	}
	return m.data[i*m.dim : (i+1)*m.dim : (i+1)*m.dim], nil
}

// Slice adapts a [][]float32 to Dataset without validation. Rows may differ
// in length; consumers detect that themselves.
type Slice [][]float32

// Len returns the number of points.
func (s Slice) Len() int { return len(s) }

// VectorAt returns row i.
func (s Slice) VectorAt(i int) ([]float32, error) {
	if err := checkIndex(i, len(s)); err != nil {
		return nil, err
	}
	return s[i], nil
}
