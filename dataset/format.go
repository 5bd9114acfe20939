package dataset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/elkan/internal/compress"
	"github.com/hupe1980/elkan/internal/conv"
)

// Segment blob layout (little endian):
//
//	[0:4]   magic "EKSG"
//	[4:6]   format version
//	[6]     compression type
//	[7]     reserved
//	[8:12]  frame count
//	[12:16] dimension
//	[16:]   compressed block of frames*dim float32 values
const (
	segmentMagic      = "EKSG"
	segmentVersion    = 1
	segmentHeaderSize = 16
)

// ErrCorruptSegment is returned when a segment blob cannot be decoded.
var ErrCorruptSegment = errors.New("corrupt segment")

func encodeSegment(rows []float32, frames, dim int, ct compress.Type) ([]byte, error) {
	if len(rows) != frames*dim {
		return nil, fmt.Errorf("%w: %d values for %d frames of dimension %d", ErrInvalidShape, len(rows), frames, dim)
	}

	frames32, err := conv.IntToUint32(frames)
	if err != nil {
		return nil, err
	}
	dim32, err := conv.IntToUint32(dim)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, 4*len(rows))
	for i, v := range rows {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(v))
	}

	block, err := compress.Compress(raw, ct)
	if err != nil {
		return nil, err
	}

	out := make([]byte, segmentHeaderSize+len(block))
	copy(out[0:4], segmentMagic)
	binary.LittleEndian.PutUint16(out[4:], segmentVersion)
	out[6] = byte(ct)
	binary.LittleEndian.PutUint32(out[8:], frames32)
	binary.LittleEndian.PutUint32(out[12:], dim32)
	copy(out[segmentHeaderSize:], block)
	return out, nil
}

// segmentHeader is the fixed part of a segment blob.
type segmentHeader struct {
	compression compress.Type
	frames      int
	dim         int
}

// readSegmentHeader parses and sanity-checks the header without
// decompressing. The header's shape must agree with the size the compressed
// block declares, so a corrupt header cannot trigger a huge allocation.
func readSegmentHeader(blob []byte) (segmentHeader, error) {
	if len(blob) < segmentHeaderSize || string(blob[0:4]) != segmentMagic {
		return segmentHeader{}, fmt.Errorf("%w: bad header", ErrCorruptSegment)
	}
	if v := binary.LittleEndian.Uint16(blob[4:]); v != segmentVersion {
		return segmentHeader{}, fmt.Errorf("%w: unsupported version %d", ErrCorruptSegment, v)
	}

	h := segmentHeader{compression: compress.Type(blob[6])}

	var err error
	if h.frames, err = conv.Uint32ToInt(binary.LittleEndian.Uint32(blob[8:])); err != nil {
		return segmentHeader{}, fmt.Errorf("%w: %w", ErrCorruptSegment, err)
	}
	if h.dim, err = conv.Uint32ToInt(binary.LittleEndian.Uint32(blob[12:])); err != nil {
		return segmentHeader{}, fmt.Errorf("%w: %w", ErrCorruptSegment, err)
	}
	if h.dim == 0 {
		return segmentHeader{}, fmt.Errorf("%w: dimension 0", ErrCorruptSegment)
	}

	rawSize, err := compress.DecompressedSize(blob[segmentHeaderSize:])
	if err != nil {
		return segmentHeader{}, fmt.Errorf("%w: %w", ErrCorruptSegment, err)
	}
	values := rawSize / 4
	if rawSize%4 != 0 || values%h.dim != 0 || values/h.dim != h.frames {
		return segmentHeader{}, fmt.Errorf("%w: %d payload bytes do not hold %d frames of dimension %d",
			ErrCorruptSegment, rawSize, h.frames, h.dim)
	}
	return h, nil
}

// decodeSegment returns a freshly allocated row-major frame matrix.
func decodeSegment(blob []byte) (frames, dim int, rows []float32, err error) {
	h, err := readSegmentHeader(blob)
	if err != nil {
		return 0, 0, nil, err
	}

	raw, err := compress.Decompress(blob[segmentHeaderSize:], h.compression)
	if err != nil {
		return 0, 0, nil, fmt.Errorf("%w: %w", ErrCorruptSegment, err)
	}
	if len(raw) != 4*h.frames*h.dim {
		return 0, 0, nil, fmt.Errorf("%w: payload has %d bytes, want %d", ErrCorruptSegment, len(raw), 4*h.frames*h.dim)
	}

	rows = make([]float32, h.frames*h.dim)
	for i := range rows {
		rows[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return h.frames, h.dim, rows, nil
}
