package bus

import "time"

// Event is the unit the bus routes. Payload ownership transfers to the
// bus on Publish; ID is assigned by the bus, monotonically increasing
// per topic starting at 0. Timestamp is set by the publisher at
// construction, for end-to-end latency measurement.
type Event struct {
	Topic     string
	Payload   []byte
	ID        uint64
	Timestamp time.Time
}

// NewEvent stamps Timestamp at construction time. ID is left at zero
// until Publish assigns it.
func NewEvent(topic string, payload []byte) Event {
	return Event{
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}
