package dataset

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/elkan/blobstore"
	"github.com/hupe1980/elkan/internal/hash"
	"github.com/hupe1980/elkan/internal/resource"
)

// Segmented is a Dataset whose frames live in segment blobs. Point i is row
// i % FramesPerSegment of segment i / FramesPerSegment. Exactly one decoded
// segment is cached; sequential scans therefore load each segment once.
//
// Every load allocates a fresh buffer, so vectors returned earlier remain
// valid after the cache moves on.
type Segmented struct {
	ctx      context.Context
	store    blobstore.BlobStore
	manifest *Manifest
	n        int
	rc       *resource.Controller
	verify   bool

	mu          sync.Mutex
	cachedSeg   int
	cached      []float32
	cachedBytes int64

	loads atomic.Int64
}

var _ Dataset = (*Segmented)(nil)

// SegmentedOption configures OpenSegmented.
type SegmentedOption func(*Segmented) error

// WithFraction restricts the dataset to the first floor(r*frames) frames.
// r must be in (0, 1].
func WithFraction(r float64) SegmentedOption {
	return func(s *Segmented) error {
		if r <= 0 || r > 1 || math.IsNaN(r) {
			return fmt.Errorf("fraction must be in (0, 1], got %v", r)
		}
		s.n = int(float64(s.manifest.Frames) * r)
		return nil
	}
}

// WithResourceController accounts decoded segment memory against rc.
func WithResourceController(rc *resource.Controller) SegmentedOption {
	return func(s *Segmented) error {
		s.rc = rc
		return nil
	}
}

// WithChecksumVerification toggles CRC32C verification of segment blobs (default on).
func WithChecksumVerification(enabled bool) SegmentedOption {
	return func(s *Segmented) error {
		s.verify = enabled
		return nil
	}
}

// OpenSegmented opens the dataset described by the store's manifest.
// ctx is used for every subsequent segment load.
func OpenSegmented(ctx context.Context, store blobstore.BlobStore, opts ...SegmentedOption) (*Segmented, error) {
	m, err := ReadManifest(ctx, store)
	if err != nil {
		return nil, err
	}

	s := &Segmented{
		ctx:       ctx,
		store:     store,
		manifest:  m,
		n:         m.Frames,
		verify:    true,
		cachedSeg: -1,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Len returns the number of usable points.
func (s *Segmented) Len() int { return s.n }

// Dim returns the vector dimension.
func (s *Segmented) Dim() int { return s.manifest.Dimension }

// Manifest returns the dataset manifest.
func (s *Segmented) Manifest() Manifest { return *s.manifest }

// SegmentCount returns the number of segments.
func (s *Segmented) SegmentCount() int { return len(s.manifest.Segments) }

// SegmentRange returns the half-open point range [start, end) of segment seg.
func (s *Segmented) SegmentRange(seg int) (start, end int, err error) {
	if err := checkIndex(seg, len(s.manifest.Segments)); err != nil {
		return 0, 0, err
	}
	start = seg * s.manifest.FramesPerSegment
	return start, start + s.manifest.Segments[seg].Frames, nil
}

// SegmentLoads returns how many segment blobs have been read and decoded.
func (s *Segmented) SegmentLoads() int64 { return s.loads.Load() }

// VectorAt returns point i, loading its segment if it is not cached.
func (s *Segmented) VectorAt(i int) ([]float32, error) {
	if err := checkIndex(i, s.n); err != nil {
		return nil, err
	}

	fps := s.manifest.FramesPerSegment
	seg, row := i/fps, i%fps
	dim := s.manifest.Dimension

	s.mu.Lock()
	defer s.mu.Unlock()

	if seg != s.cachedSeg {
		if err := s.load(seg); err != nil {
			return nil, err
		}
	}
	return s.cached[row*dim : (row+1)*dim : (row+1)*dim], nil
}

func (s *Segmented) load(seg int) error {
	info := s.manifest.Segments[seg]

	blob, err := blobstore.ReadAll(s.ctx, s.store, info.Name)
	if err != nil {
		return fmt.Errorf("load segment %d: %w", seg, err)
	}
	if s.verify && info.CRC32C != 0 {
		if sum := hash.CRC32C(blob); sum != info.CRC32C {
			return fmt.Errorf("load segment %d: %w: checksum %08x, want %08x", seg, ErrCorruptSegment, sum, info.CRC32C)
		}
	}

	h, err := readSegmentHeader(blob)
	if err != nil {
		return fmt.Errorf("load segment %d: %w", seg, err)
	}
	if h.frames != info.Frames || h.dim != s.manifest.Dimension {
		return fmt.Errorf("load segment %d: %w: %dx%d, manifest says %dx%d",
			seg, ErrCorruptSegment, h.frames, h.dim, info.Frames, s.manifest.Dimension)
	}

	_, _, rows, err := decodeSegment(blob)
	if err != nil {
		return fmt.Errorf("load segment %d: %w", seg, err)
	}

	s.releaseCached()

	size := int64(4 * len(rows))
	if err := s.rc.AcquireMemory(size); err != nil {
		return fmt.Errorf("load segment %d: %w", seg, err)
	}

	s.cachedSeg = seg
	s.cached = rows
	s.cachedBytes = size
	s.loads.Add(1)
	return nil
}

func (s *Segmented) releaseCached() {
	s.rc.ReleaseMemory(s.cachedBytes)
	s.cachedSeg = -1
	s.cached = nil
	s.cachedBytes = 0
}

// Close drops the cached segment and returns its memory to the controller.
func (s *Segmented) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseCached()
	return nil
}
