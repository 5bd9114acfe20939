package mmap

import "errors"

// Hint tells the kernel how a mapping is about to be read.
type Hint int

const (
	// Sequential suits single forward scans, e.g. importing a raw frame file.
	Sequential Hint = iota
	// WillNeed prefetches the whole mapping, e.g. a segment that is decoded
	// immediately after opening.
	WillNeed
)

var (
	// ErrClosed is returned when reading a closed mapping.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidOffset is returned for negative read offsets.
	ErrInvalidOffset = errors.New("mmap: invalid offset")
)
