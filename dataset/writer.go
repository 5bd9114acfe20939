package dataset

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hupe1980/elkan/blobstore"
	"github.com/hupe1980/elkan/codec"
	"github.com/hupe1980/elkan/internal/compress"
	"github.com/hupe1980/elkan/internal/hash"
	"github.com/hupe1980/elkan/internal/resource"
	"golang.org/x/sync/errgroup"
)

// DefaultFramesPerSegment is used when no segment size is configured.
const DefaultFramesPerSegment = 4096

const defaultUploadConcurrency = 4

// Writer converts a Dataset into segment blobs plus a manifest.
type Writer struct {
	store       blobstore.BlobStore
	fps         int
	compression compress.Type
	rc          *resource.Controller
	codec       codec.Codec
	logger      *slog.Logger
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithFramesPerSegment sets the number of frames per segment.
func WithFramesPerSegment(n int) WriterOption {
	return func(w *Writer) { w.fps = n }
}

// WithCompression sets the segment compression.
func WithCompression(t compress.Type) WriterOption {
	return func(w *Writer) { w.compression = t }
}

// WithWriterResourceController bounds concurrent uploads and upload throughput.
func WithWriterResourceController(rc *resource.Controller) WriterOption {
	return func(w *Writer) { w.rc = rc }
}

// WithCodec sets the manifest codec.
func WithCodec(c codec.Codec) WriterOption {
	return func(w *Writer) { w.codec = c }
}

// WithWriterLogger sets the logger for per-segment progress.
func WithWriterLogger(l *slog.Logger) WriterOption {
	return func(w *Writer) { w.logger = l }
}

// NewWriter creates a Writer targeting store.
func NewWriter(store blobstore.BlobStore, opts ...WriterOption) (*Writer, error) {
	w := &Writer{
		store:       store,
		fps:         DefaultFramesPerSegment,
		compression: compress.LZ4,
		codec:       codec.Default,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.fps <= 0 {
		return nil, fmt.Errorf("%w: frames per segment %d", ErrInvalidShape, w.fps)
	}
	return w, nil
}

// Write reads every vector of ds, uploads the segments concurrently and
// finally publishes the manifest. The dataset is read sequentially from the
// calling goroutine.
func (w *Writer) Write(ctx context.Context, ds Dataset) (*Manifest, error) {
	n := ds.Len()
	if n == 0 {
		return nil, fmt.Errorf("%w: empty dataset", ErrInvalidShape)
	}

	first, err := ds.VectorAt(0)
	if err != nil {
		return nil, err
	}
	dim := len(first)
	if dim == 0 {
		return nil, fmt.Errorf("%w: dimension 0", ErrInvalidShape)
	}

	segCount := (n + w.fps - 1) / w.fps
	m := &Manifest{
		Version:          manifestVersion,
		Codec:            w.codec.Name(),
		Dimension:        dim,
		Frames:           n,
		FramesPerSegment: w.fps,
		Compression:      w.compression.String(),
		CreatedAt:        time.Now().UTC(),
		Segments:         make([]SegmentInfo, segCount),
	}

	g, gctx := errgroup.WithContext(ctx)
	if w.rc == nil {
		g.SetLimit(defaultUploadConcurrency)
	}

	for seg := range segCount {
		start := seg * w.fps
		end := min(start+w.fps, n)

		rows := make([]float32, 0, (end-start)*dim)
		for i := start; i < end; i++ {
			v, err := ds.VectorAt(i)
			if err != nil {
				return nil, cmp.Or(g.Wait(), err)
			}
			if len(v) != dim {
				return nil, cmp.Or(g.Wait(), fmt.Errorf("%w: vector %d has length %d, want %d", ErrInvalidShape, i, len(v), dim))
			}
			rows = append(rows, v...)
		}

		// A failed upload cancels gctx; report that failure, not the
		// cancellation it caused.
		if err := w.rc.AcquireWorker(gctx); err != nil {
			return nil, cmp.Or(g.Wait(), err)
		}

		g.Go(func() error {
			defer w.rc.ReleaseWorker()

			info, err := w.writeSegment(gctx, seg, rows, end-start, dim)
			if err != nil {
				return fmt.Errorf("segment %d: %w", seg, err)
			}
			m.Segments[seg] = info
			w.logger.Debug("segment written", "segment", seg, "frames", info.Frames, "bytes", info.Bytes)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	data, err := w.codec.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	if err := w.store.Put(ctx, ManifestName, data); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	w.logger.Info("dataset written", "frames", n, "dimension", dim, "segments", segCount)
	return m, nil
}

func (w *Writer) writeSegment(ctx context.Context, seg int, rows []float32, frames, dim int) (SegmentInfo, error) {
	blob, err := encodeSegment(rows, frames, dim, w.compression)
	if err != nil {
		return SegmentInfo{}, err
	}

	name := segmentName(seg)
	bw, err := w.store.Create(ctx, name)
	if err != nil {
		return SegmentInfo{}, err
	}

	h := hash.NewCRC32C()
	dst := resource.NewRateLimitedWriter(ctx, io.MultiWriter(bw, h), w.rc)
	if _, err := dst.Write(blob); err != nil {
		_ = bw.Abort()
		return SegmentInfo{}, err
	}
	if err := bw.Sync(); err != nil {
		_ = bw.Abort()
		return SegmentInfo{}, err
	}
	if err := bw.Close(); err != nil {
		return SegmentInfo{}, err
	}

	return SegmentInfo{
		Name:   name,
		Frames: frames,
		Bytes:  int64(len(blob)),
		CRC32C: h.Sum32(),
	}, nil
}
