package dataset

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/elkan/blobstore"
	"github.com/hupe1980/elkan/codec"
)

// ManifestName is the blob that describes a segmented dataset.
const ManifestName = "manifest.json"

const manifestVersion = 1

// SegmentInfo describes one segment blob.
type SegmentInfo struct {
	Name   string `json:"name"`
	Frames int    `json:"frames"`
	Bytes  int64  `json:"bytes"`
	CRC32C uint32 `json:"crc32c"`
}

// Manifest describes a segmented dataset: frames grouped into segments of
// FramesPerSegment rows, every segment full except possibly the last.
type Manifest struct {
	Version          int           `json:"version"`
	Codec            string        `json:"codec"`
	Dimension        int           `json:"dimension"`
	Frames           int           `json:"frames"`
	FramesPerSegment int           `json:"frames_per_segment"`
	Compression      string        `json:"compression"`
	CreatedAt        time.Time     `json:"created_at"`
	Segments         []SegmentInfo `json:"segments"`
}

// Validate checks internal consistency.
func (m *Manifest) Validate() error {
	if m.Version != manifestVersion {
		return fmt.Errorf("unsupported manifest version %d", m.Version)
	}
	if m.Dimension <= 0 || m.FramesPerSegment <= 0 {
		return fmt.Errorf("%w: dimension %d, frames per segment %d", ErrInvalidShape, m.Dimension, m.FramesPerSegment)
	}

	total := 0
	for i, s := range m.Segments {
		if s.Frames <= 0 || s.Frames > m.FramesPerSegment || (i < len(m.Segments)-1 && s.Frames != m.FramesPerSegment) {
			return fmt.Errorf("%w: segment %d has %d frames", ErrInvalidShape, i, s.Frames)
		}
		total += s.Frames
	}
	if total != m.Frames {
		return fmt.Errorf("%w: segments hold %d frames, manifest says %d", ErrInvalidShape, total, m.Frames)
	}
	return nil
}

// ReadManifest loads and validates the manifest of a segmented dataset.
func ReadManifest(ctx context.Context, store blobstore.BlobStore) (*Manifest, error) {
	data, err := blobstore.ReadAll(ctx, store, ManifestName)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	// Both built-in codecs read JSON; the recorded name only has to be known.
	var m Manifest
	if err := codec.Default.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.Codec != "" {
		if _, ok := codec.ByName(m.Codec); !ok {
			return nil, fmt.Errorf("manifest written with unknown codec %q", m.Codec)
		}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func segmentName(seg int) string {
	return fmt.Sprintf("segments/segment-%06d.bin", seg)
}
