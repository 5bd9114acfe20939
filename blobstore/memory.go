package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
)

// errAborted is returned by writes to a blob whose upload was aborted.
var errAborted = errors.New("blobstore: write aborted")

// MemoryStore keeps blobs in a process-local map. It backs mem:// URLs and
// tests. Stored slices are immutable once published, so readers share them
// without copying.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Open(_ context.Context, name string) (Blob, error) {
	m.mu.RLock()
	data, ok := m.blobs[name]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return bytesBlob(data), nil
}

// Create buffers writes and publishes the blob on Close.
func (m *MemoryStore) Create(_ context.Context, name string) (WritableBlob, error) {
	return &memoryWriter{store: m, name: name}, nil
}

func (m *MemoryStore) Put(_ context.Context, name string, data []byte) error {
	m.publish(name, bytes.Clone(data))
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	delete(m.blobs, name)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := slices.Sorted(maps.Keys(m.blobs))
	return slices.DeleteFunc(names, func(name string) bool {
		return !strings.HasPrefix(name, prefix)
	}), nil
}

func (m *MemoryStore) publish(name string, data []byte) {
	if data == nil {
		data = []byte{}
	}
	m.mu.Lock()
	m.blobs[name] = data
	m.mu.Unlock()
}

// bytesBlob is a read-only view of a published blob.
type bytesBlob []byte

func (b bytesBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b bytesBlob) Close() error { return nil }

func (b bytesBlob) Size() int64 { return int64(len(b)) }

// Bytes exposes the stored slice; ReadAll copies it.
func (b bytesBlob) Bytes() ([]byte, error) { return b, nil }

func (b bytesBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	off = min(max(off, 0), int64(len(b)))
	end := min(off+length, int64(len(b)))
	return io.NopCloser(bytes.NewReader(b[off:end])), nil
}

type memoryWriter struct {
	store *MemoryStore
	name  string
	buf   bytes.Buffer
	err   error // set once closed or aborted
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	return w.buf.Write(p)
}

func (w *memoryWriter) Sync() error { return w.err }

func (w *memoryWriter) Close() error {
	if w.err != nil {
		if errors.Is(w.err, errAborted) {
			return w.err
		}
		return nil
	}
	w.err = io.ErrClosedPipe
	w.store.publish(w.name, bytes.Clone(w.buf.Bytes()))
	return nil
}

// Abort drops the buffered data. Nothing is published.
func (w *memoryWriter) Abort() error {
	if w.err == nil {
		w.err = errAborted
		w.buf.Reset()
	}
	return nil
}
