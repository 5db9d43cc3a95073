package bus

import "errors"

// Configuration errors, surfaced from New.
var (
	ErrDuplicateTopic = errors.New("bus: duplicate topic name")
	ErrUnknownTopic   = errors.New("bus: consumer group references unknown topic")
	ErrDuplicateGroup = errors.New("bus: duplicate consumer group id")
	ErrZeroPartitions = errors.New("bus: topic must have at least one partition")
	ErrZeroConsumers  = errors.New("bus: consumer group must have at least one consumer")
)

// Runtime errors.
var (
	// ErrUnknownTopicPublish is returned by Publish when event.Topic was
	// never declared at construction — a contract violation, not a
	// capacity condition.
	ErrUnknownTopicPublish = errors.New("bus: publish to unknown topic")

	// ErrUnknownGroup is returned by Consumers when groupID was never
	// declared at construction.
	ErrUnknownGroup = errors.New("bus: unknown consumer group")
)

// Lifecycle errors, internal to consumerGroup's Building/Finalized state
// machine.
var (
	errAlreadyFinalized = errors.New("bus: consumer group already finalized")
	errNoConsumers      = errors.New("bus: finalize called with no registered consumers")
	errNotFinalized     = errors.New("bus: consumer group not finalized")
)
