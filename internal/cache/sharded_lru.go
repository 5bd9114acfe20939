package cache

import (
	"context"
	"hash/maphash"

	"github.com/hupe1980/elkan/internal/resource"
)

const numShards = 16

// ShardedLRUBlockCache spreads blocks across independently locked LRUs.
// Parallel range fetches of one segment land on different shards.
type ShardedLRUBlockCache struct {
	shards [numShards]*LRUBlockCache
	seed   maphash.Seed
}

var _ BlockCache = (*ShardedLRUBlockCache)(nil)

// NewShardedLRUBlockCache divides capacity evenly across the shards.
func NewShardedLRUBlockCache(capacity int64, rc *resource.Controller) *ShardedLRUBlockCache {
	s := &ShardedLRUBlockCache{seed: maphash.MakeSeed()}
	for i := range s.shards {
		s.shards[i] = NewLRUBlockCache(max(capacity/numShards, 1), rc)
	}
	return s
}

func (s *ShardedLRUBlockCache) shard(key Key) *LRUBlockCache {
	h := maphash.String(s.seed, key.Blob) ^ (key.Block * 0x9e3779b97f4a7c15)
	return s.shards[h%numShards]
}

func (s *ShardedLRUBlockCache) Get(ctx context.Context, key Key) ([]byte, bool) {
	return s.shard(key).Get(ctx, key)
}

func (s *ShardedLRUBlockCache) Set(ctx context.Context, key Key, b []byte) {
	s.shard(key).Set(ctx, key, b)
}

// InvalidateBlob drops the blob's blocks from every shard.
func (s *ShardedLRUBlockCache) InvalidateBlob(name string) {
	for _, sh := range s.shards {
		sh.InvalidateBlob(name)
	}
}

func (s *ShardedLRUBlockCache) Close() error {
	for _, sh := range s.shards {
		_ = sh.Close()
	}
	return nil
}

// Stats sums the shard counters.
func (s *ShardedLRUBlockCache) Stats() (hits, misses int64) {
	for _, sh := range s.shards {
		h, m := sh.Stats()
		hits += h
		misses += m
	}
	return hits, misses
}

// Size returns the cached bytes across shards.
func (s *ShardedLRUBlockCache) Size() int64 {
	var total int64
	for _, sh := range s.shards {
		total += sh.Size()
	}
	return total
}
