package bus

import (
	"fmt"

	"github.com/flowmesh/partbus/internal/core/backpressure"
	"github.com/flowmesh/partbus/internal/core/queue"
)

// defaultPartitionQueueCapacity is the per-partition queue size used by
// every consumer group's finalize step; it must stay a power of two.
const defaultPartitionQueueCapacity = 16384

// partitionQueue is one partition's MPSC queue, owned by exactly one
// consumer group.
type partitionQueue struct {
	queue *queue.MPSC[Event]
}

type groupState uint8

const (
	building groupState = iota
	finalized
)

// consumerGroup owns one partition-queue set for one topic and assigns
// partitions to its registered consumers round-robin. Groups never
// share queues with each other — each group's fan-out is independent.
type consumerGroup struct {
	groupID        string
	partitionCount uint32
	state          groupState

	consumers       []*Consumer
	partitionQueues []*partitionQueue
}

func newConsumerGroup(groupID string, partitionCount uint32) *consumerGroup {
	return &consumerGroup{
		groupID:        groupID,
		partitionCount: partitionCount,
	}
}

// registerConsumer appends a new consumer and returns it; its ID is
// "<group_id>/<index>" in registration order.
// Not safe to call concurrently with itself or finalize; callers must
// serialize registration during bus construction.
func (g *consumerGroup) registerConsumer() (*Consumer, error) {
	if g.state != building {
		return nil, fmt.Errorf("bus: %s: %w", g.groupID, errAlreadyFinalized)
	}
	idx := len(g.consumers)
	c := &Consumer{id: fmt.Sprintf("%s/%d", g.groupID, idx)}
	g.consumers = append(g.consumers, c)
	return c, nil
}

// finalize creates the partition queues and assigns them round-robin
// among registered consumers: partition p goes to consumer p mod K. It
// may be called exactly once, after at least one consumer is registered.
func (g *consumerGroup) finalize() error {
	if g.state != building {
		return fmt.Errorf("bus: %s: %w", g.groupID, errAlreadyFinalized)
	}
	if len(g.consumers) == 0 {
		return fmt.Errorf("bus: %s: %w", g.groupID, errNoConsumers)
	}

	k := len(g.consumers)
	assignments := make([][]*partitionQueue, k)

	for p := uint32(0); p < g.partitionCount; p++ {
		pq := &partitionQueue{queue: queue.New[Event](defaultPartitionQueueCapacity)}
		g.partitionQueues = append(g.partitionQueues, pq)
		owner := int(p) % k
		assignments[owner] = append(assignments[owner], pq)
	}

	for i, c := range g.consumers {
		c.queues = assignments[i]
	}

	g.state = finalized
	return nil
}

// deliver enqueues event on partitionIndex's queue via bp, returning
// the policy's result. Only a finalized group accepts deliveries.
func (g *consumerGroup) deliver(event Event, partitionIndex int, bp backpressure.Config) bool {
	if g.state != finalized {
		panic(fmt.Errorf("bus: %s: %w", g.groupID, errNotFinalized))
	}
	pq := g.partitionQueues[partitionIndex]
	return backpressure.TryEnqueue(bp, pq.queue, event)
}
