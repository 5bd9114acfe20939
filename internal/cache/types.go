package cache

import "context"

// Key addresses one fixed-size block of an immutable blob.
type Key struct {
	Blob  string // blob name within its store
	Block uint64 // byte offset / block size
}

// BlockCache holds blocks of immutable blobs (segments, manifests, results).
// Returned slices must be treated as read-only.
type BlockCache interface {
	// Get returns a cached block. ok=false if missing.
	Get(ctx context.Context, key Key) (b []byte, ok bool)
	// Set caches a block. Implementations may retain b.
	Set(ctx context.Context, key Key, b []byte)
	// InvalidateBlob drops every block of the named blob. Called whenever a
	// blob is rewritten or deleted.
	InvalidateBlob(name string)
	// Close drops all blocks.
	Close() error
	// Stats returns hit and miss counters.
	Stats() (hits, misses int64)
}
