package main

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hupe1980/elkan/dataset"
	"github.com/hupe1980/elkan/internal/mmap"
)

// rawFile is a Dataset over a memory-mapped file of little-endian float32
// frames, dim values per frame, no header.
type rawFile struct {
	m   *mmap.Mapping
	dim int
	n   int
}

var _ dataset.Dataset = (*rawFile)(nil)

func openRaw(path string, dim int) (*rawFile, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}

	m, err := mmap.Open(path, mmap.Sequential)
	if err != nil {
		return nil, err
	}

	frameBytes := 4 * dim
	if m.Size()%frameBytes != 0 {
		_ = m.Close()
		return nil, fmt.Errorf("%s: %d bytes is not a multiple of the frame size %d", path, m.Size(), frameBytes)
	}

	return &rawFile{m: m, dim: dim, n: m.Size() / frameBytes}, nil
}

func (r *rawFile) Len() int { return r.n }

func (r *rawFile) VectorAt(i int) ([]float32, error) {
	if i < 0 || i >= r.n {
		return nil, &dataset.IndexError{Index: i, Len: r.n}
	}
	data := r.m.Bytes()
	if data == nil {
		return nil, mmap.ErrClosed
	}

	off := i * 4 * r.dim
	v := make([]float32, r.dim)
	for j := range v {
		v[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off+4*j:]))
	}
	return v, nil
}

func (r *rawFile) Close() error { return r.m.Close() }
