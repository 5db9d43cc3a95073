// Package partition selects a topic partition index for a published
// event, either by round-robin over the event ID or by a stable hash of
// an explicit partition key.
package partition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Partitioner maps a key to a partition index in [0, numPartitions).
// Implementations must be deterministic: the same key and numPartitions
// must always return the same index within one process lifetime.
type Partitioner interface {
	Partition(key string, numPartitions int) int
}

// RoundRobin ignores the key and distributes by event ID, used by the
// bus for the empty-partition-key case (event.id mod partition_count).
type RoundRobin struct{}

// Partition returns id mod numPartitions; key is interpreted as a
// base-10 event ID.
func (RoundRobin) Partition(key string, numPartitions int) int {
	if numPartitions <= 0 {
		return 0
	}
	id, err := strconv.ParseUint(key, 10, 64)
	if err != nil {
		return 0
	}
	return int(id % uint64(numPartitions))
}

// Hash is the default non-empty-key partitioner. It uses xxhash for a
// fast, stable, allocation-light digest instead of a stdlib
// non-cryptographic hash.
type Hash struct{}

// Partition returns xxhash(key) mod numPartitions.
func (Hash) Partition(key string, numPartitions int) int {
	if numPartitions <= 0 {
		return 0
	}
	sum := xxhash.Sum64String(key)
	return int(sum % uint64(numPartitions))
}

// CachedHash wraps Hash with a bounded LRU cache keyed on
// "numPartitions:key", so that hot partition keys skip rehashing. It
// never changes the index a caller would get from an uncached Hash.
type CachedHash struct {
	inner Partitioner
	cache *lru.Cache[string, int]
}

// NewCachedHash returns a CachedHash backed by an LRU of the given size.
// size must be positive.
func NewCachedHash(size int) (*CachedHash, error) {
	cache, err := lru.New[string, int](size)
	if err != nil {
		return nil, fmt.Errorf("partition: new cache: %w", err)
	}
	return &CachedHash{inner: Hash{}, cache: cache}, nil
}

// Partition returns the cached partition index for key, computing and
// storing it on a miss.
func (c *CachedHash) Partition(key string, numPartitions int) int {
	cacheKey := cacheKeyFor(key, numPartitions)
	if v, ok := c.cache.Get(cacheKey); ok {
		return v
	}
	v := c.inner.Partition(key, numPartitions)
	c.cache.Add(cacheKey, v)
	return v
}

func cacheKeyFor(key string, numPartitions int) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(numPartitions))
	b.WriteByte(':')
	b.WriteString(key)
	return b.String()
}

var (
	_ Partitioner = RoundRobin{}
	_ Partitioner = Hash{}
	_ Partitioner = (*CachedHash)(nil)
)
