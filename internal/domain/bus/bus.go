package bus

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/flowmesh/partbus/internal/core/backpressure"
	"github.com/flowmesh/partbus/internal/core/partition"
)

// Bus owns every topic and consumer group for the process. It is sealed
// once New returns: no further topology mutation is permitted.
type Bus struct {
	topics          map[string]TopicConfig
	groupsByTopic   map[string][]*consumerGroup
	groupsByID      map[string]*consumerGroup
	nextIDByTopic   map[string]*atomic.Uint64
	backpressure    backpressure.Config
	hashPartitioner partition.Partitioner
	roundRobin      partition.Partitioner
}

// New builds topics, then consumer groups (each with its consumers,
// immediately finalized), then seals the bus. It fails on any
// configuration error listed in spec — duplicate topic, unknown topic
// for a group, duplicate group ID, zero partitions, zero consumers.
func New(cfg Config, bp backpressure.Config, opts ...Option) (*Bus, error) {
	b := &Bus{
		topics:        make(map[string]TopicConfig),
		groupsByTopic: make(map[string][]*consumerGroup),
		groupsByID:    make(map[string]*consumerGroup),
		nextIDByTopic: make(map[string]*atomic.Uint64),
		backpressure:  bp,
		roundRobin:    partition.RoundRobin{},
	}

	cached, err := partition.NewCachedHash(4096)
	if err != nil {
		return nil, fmt.Errorf("bus: %w", err)
	}
	b.hashPartitioner = cached

	for _, opt := range opts {
		opt(b)
	}

	for _, t := range cfg.Topics {
		if _, exists := b.topics[t.Name]; exists {
			return nil, fmt.Errorf("bus: topic %q: %w", t.Name, ErrDuplicateTopic)
		}
		if t.Partitions == 0 {
			return nil, fmt.Errorf("bus: topic %q: %w", t.Name, ErrZeroPartitions)
		}
		b.topics[t.Name] = t
		b.nextIDByTopic[t.Name] = &atomic.Uint64{}
	}

	for _, gc := range cfg.ConsumerGroups {
		if _, exists := b.groupsByID[gc.GroupID]; exists {
			return nil, fmt.Errorf("bus: group %q: %w", gc.GroupID, ErrDuplicateGroup)
		}
		topic, ok := b.topics[gc.Topic]
		if !ok {
			return nil, fmt.Errorf("bus: group %q: topic %q: %w", gc.GroupID, gc.Topic, ErrUnknownTopic)
		}
		if gc.Consumers == 0 {
			return nil, fmt.Errorf("bus: group %q: %w", gc.GroupID, ErrZeroConsumers)
		}

		group := newConsumerGroup(gc.GroupID, topic.Partitions)
		for i := uint32(0); i < gc.Consumers; i++ {
			if _, err := group.registerConsumer(); err != nil {
				return nil, fmt.Errorf("bus: group %q: %w", gc.GroupID, err)
			}
		}
		if err := group.finalize(); err != nil {
			return nil, fmt.Errorf("bus: group %q: %w", gc.GroupID, err)
		}

		b.groupsByID[gc.GroupID] = group
		b.groupsByTopic[gc.Topic] = append(b.groupsByTopic[gc.Topic], group)
	}

	return b, nil
}

// Publish assigns event.ID, selects a partition, and fans the event out
// to every consumer group subscribed to event.Topic. It returns true iff
// every subscribed group accepted the event; it returns false (with no
// error) if the topic has no subscribers or a group applied back-
// pressure and dropped it. An unknown topic is a contract violation,
// reported as an error rather than silently dropped.
func (b *Bus) Publish(event Event, partitionKey string) (bool, error) {
	topic, ok := b.topics[event.Topic]
	if !ok {
		return false, fmt.Errorf("bus: topic %q: %w", event.Topic, ErrUnknownTopicPublish)
	}

	groups, ok := b.groupsByTopic[event.Topic]
	if !ok || len(groups) == 0 {
		return false, nil
	}

	event.ID = b.nextIDByTopic[event.Topic].Add(1) - 1

	partitionIndex := b.partitionIndex(event.ID, partitionKey, topic.Partitions)

	allAccepted := true
	for _, group := range groups {
		if !group.deliver(event, partitionIndex, b.backpressure) {
			allAccepted = false
		}
	}
	return allAccepted, nil
}

// partitionIndex implements spec.md §4.5 step 4: round-robin by event ID
// when no key is given, else a stable hash of the key. The round-robin
// branch is the RoundRobin partitioner itself, not an inlined copy of its
// modulo — RoundRobin.Partition interprets its key argument as a base-10
// event ID, so the ID is formatted before the call.
func (b *Bus) partitionIndex(id uint64, partitionKey string, partitionCount uint32) int {
	if partitionKey == "" {
		return b.roundRobin.Partition(strconv.FormatUint(id, 10), int(partitionCount))
	}
	return b.hashPartitioner.Partition(partitionKey, int(partitionCount))
}

// Consumers returns every consumer registered to groupID, in
// registration order, for the caller to drive polling.
func (b *Bus) Consumers(groupID string) ([]*Consumer, error) {
	group, ok := b.groupsByID[groupID]
	if !ok {
		return nil, fmt.Errorf("bus: group %q: %w", groupID, ErrUnknownGroup)
	}
	out := make([]*Consumer, len(group.consumers))
	copy(out, group.consumers)
	return out, nil
}
