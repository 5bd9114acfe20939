package dataset

import (
	"context"
	"testing"

	"github.com/hupe1980/elkan/blobstore"
	"github.com/hupe1980/elkan/codec"
	"github.com/hupe1980/elkan/internal/compress"
	"github.com/hupe1980/elkan/internal/resource"
	"github.com/hupe1980/elkan/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestDataset(t *testing.T, store blobstore.BlobStore, n, dim, fps int, opts ...WriterOption) *Memory {
	t.Helper()

	rng := testutil.NewRNG(7)
	mem, err := FromVectors(rng.UniformVectors(n, dim))
	require.NoError(t, err)

	w, err := NewWriter(store, append([]WriterOption{WithFramesPerSegment(fps)}, opts...)...)
	require.NoError(t, err)
	_, err = w.Write(context.Background(), mem)
	require.NoError(t, err)
	return mem
}

func TestWriterManifest(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	rng := testutil.NewRNG(1)
	mem, err := FromVectors(rng.UniformVectors(10, 3))
	require.NoError(t, err)

	w, err := NewWriter(store, WithFramesPerSegment(4), WithCompression(compress.ZSTD), WithCodec(codec.JSON{}))
	require.NoError(t, err)

	m, err := w.Write(ctx, mem)
	require.NoError(t, err)
	assert.Equal(t, 10, m.Frames)
	assert.Equal(t, 3, m.Dimension)
	assert.Equal(t, "zstd", m.Compression)
	assert.Equal(t, "json", m.Codec)
	require.Len(t, m.Segments, 3)
	assert.Equal(t, 4, m.Segments[0].Frames)
	assert.Equal(t, 4, m.Segments[1].Frames)
	assert.Equal(t, 2, m.Segments[2].Frames)

	names, err := store.List(ctx, "segments/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"segments/segment-000000.bin",
		"segments/segment-000001.bin",
		"segments/segment-000002.bin",
	}, names)

	read, err := ReadManifest(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, m.Segments, read.Segments)
}

func TestWriterRejectsInvalidInput(t *testing.T) {
	store := blobstore.NewMemoryStore()

	_, err := NewWriter(store, WithFramesPerSegment(0))
	assert.ErrorIs(t, err, ErrInvalidShape)

	w, err := NewWriter(store)
	require.NoError(t, err)

	_, err = w.Write(context.Background(), Slice{})
	assert.ErrorIs(t, err, ErrInvalidShape)

	_, err = w.Write(context.Background(), Slice{{1, 2}, {3}})
	assert.ErrorIs(t, err, ErrInvalidShape)
}

func TestSegmentedMatchesSource(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	mem := writeTestDataset(t, store, 25, 4, 8)

	seg, err := OpenSegmented(ctx, store)
	require.NoError(t, err)
	defer func() { _ = seg.Close() }()

	assert.Equal(t, 25, seg.Len())
	assert.Equal(t, 4, seg.Dim())
	assert.Equal(t, 4, seg.SegmentCount())

	for i := range mem.Len() {
		want, err := mem.VectorAt(i)
		require.NoError(t, err)
		got, err := seg.VectorAt(i)
		require.NoError(t, err)
		assert.Equal(t, want, got, "point %d", i)
	}
	assert.Equal(t, int64(4), seg.SegmentLoads(), "sequential scan loads each segment once")

	start, end, err := seg.SegmentRange(3)
	require.NoError(t, err)
	assert.Equal(t, 24, start)
	assert.Equal(t, 25, end)

	_, err = seg.VectorAt(25)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestSegmentedVectorsSurviveCacheEviction(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	mem := writeTestDataset(t, store, 6, 2, 2)

	seg, err := OpenSegmented(ctx, store)
	require.NoError(t, err)

	first, err := seg.VectorAt(0)
	require.NoError(t, err)
	_, err = seg.VectorAt(5)
	require.NoError(t, err)

	want, err := mem.VectorAt(0)
	require.NoError(t, err)
	assert.Equal(t, want, first)
}

func TestSegmentedFraction(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	writeTestDataset(t, store, 10, 2, 4)

	seg, err := OpenSegmented(ctx, store, WithFraction(0.55))
	require.NoError(t, err)
	assert.Equal(t, 5, seg.Len())

	_, err = seg.VectorAt(5)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = OpenSegmented(ctx, store, WithFraction(0))
	assert.Error(t, err)
	_, err = OpenSegmented(ctx, store, WithFraction(1.5))
	assert.Error(t, err)
}

func TestSegmentedChecksum(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	writeTestDataset(t, store, 4, 2, 2, WithCompression(compress.None))

	blob, err := blobstore.ReadAll(ctx, store, segmentName(1))
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0xff
	require.NoError(t, store.Put(ctx, segmentName(1), blob))

	seg, err := OpenSegmented(ctx, store)
	require.NoError(t, err)

	_, err = seg.VectorAt(0)
	require.NoError(t, err)
	_, err = seg.VectorAt(2)
	assert.ErrorIs(t, err, ErrCorruptSegment)

	unchecked, err := OpenSegmented(ctx, store, WithChecksumVerification(false))
	require.NoError(t, err)
	_, err = unchecked.VectorAt(2)
	assert.NoError(t, err)
}

func TestSegmentedMemoryAccounting(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	writeTestDataset(t, store, 8, 4, 4)

	rc := resource.NewController(resource.Config{MemoryLimitBytes: 1 << 20})
	seg, err := OpenSegmented(ctx, store, WithResourceController(rc))
	require.NoError(t, err)

	_, err = seg.VectorAt(0)
	require.NoError(t, err)
	assert.Equal(t, int64(4*4*4), rc.MemoryUsage())

	_, err = seg.VectorAt(7)
	require.NoError(t, err)
	assert.Equal(t, int64(4*4*4), rc.MemoryUsage(), "previous segment released")

	require.NoError(t, seg.Close())
	assert.Equal(t, int64(0), rc.MemoryUsage())

	tight := resource.NewController(resource.Config{MemoryLimitBytes: 16})
	seg, err = OpenSegmented(ctx, store, WithResourceController(tight))
	require.NoError(t, err)
	_, err = seg.VectorAt(0)
	assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
}

func TestSegmentedLocalStore(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewLocalStore(t.TempDir())

	rc := resource.NewController(resource.Config{MaxWorkers: 2, IOLimitBytesPerSec: 1 << 30})
	mem := writeTestDataset(t, store, 9, 3, 4, WithWriterResourceController(rc))

	seg, err := OpenSegmented(ctx, store)
	require.NoError(t, err)
	for i := range mem.Len() {
		want, _ := mem.VectorAt(i)
		got, err := seg.VectorAt(i)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestReadManifestMissing(t *testing.T) {
	_, err := ReadManifest(context.Background(), blobstore.NewMemoryStore())
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
