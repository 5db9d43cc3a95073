package bus

import "github.com/flowmesh/partbus/internal/core/partition"

// Option configures New beyond the plain Config/backpressure.Config
// pair.
type Option func(*Bus)

// WithPartitioner overrides the partitioner used for non-empty partition
// keys. The default is a CachedHash wrapping xxhash.
func WithPartitioner(p partition.Partitioner) Option {
	return func(b *Bus) { b.hashPartitioner = p }
}
