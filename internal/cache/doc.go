// Package cache provides byte-bounded block caches used by
// blobstore.CachingStore to avoid refetching segment blocks from remote
// stores.
package cache
