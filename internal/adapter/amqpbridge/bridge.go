// Package amqpbridge relays events drained from one consumer group onto
// a RabbitMQ topic exchange. It is a one-way, at-most-once relay of
// already-delivered events: it adds no durability or replication
// guarantee to the core bus, consistent with spec.md's Non-goals.
package amqpbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmamqp "github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/flowmesh/partbus/internal/config"
	"github.com/flowmesh/partbus/internal/domain/bus"
)

// wireEvent is the envelope published onto the exchange; the core
// bus.Event stays free of transport headers per SPEC_FULL §3.
type wireEvent struct {
	Topic     string    `json:"topic"`
	ID        uint64    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   []byte    `json:"payload"`
}

// Bridge polls one consumer group and republishes every drained event
// onto an AMQP topic exchange. Outbound publishes are wrapped in a
// circuit breaker so a stalled broker trips the breaker instead of
// stalling the poll loop.
type Bridge struct {
	logger    *slog.Logger
	consumers []*bus.Consumer
	publisher message.Publisher
	exchange  string
	breaker   *gobreaker.CircuitBreaker[struct{}]

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Bridge for groupID's consumers, publishing onto
// cfg.Exchange via a watermill AMQP publisher connected to cfg.URL.
func New(cfg config.AMQPConfig, b *bus.Bus, logger *slog.Logger) (*Bridge, error) {
	consumers, err := b.Consumers(cfg.GroupID)
	if err != nil {
		return nil, fmt.Errorf("amqpbridge: %w", err)
	}

	amqpConfig := wmamqp.NewDurablePubSubConfig(cfg.URL, wmamqp.GenerateQueueNameTopicName)
	publisher, err := wmamqp.NewPublisher(amqpConfig, watermill.NewStdLogger(false, false))
	if err != nil {
		return nil, fmt.Errorf("amqpbridge: new publisher: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "amqpbridge." + cfg.GroupID,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("amqp breaker state change", "breaker", name, "from", from, "to", to)
		},
	})

	return &Bridge{
		logger:    logger,
		consumers: consumers,
		publisher: publisher,
		exchange:  cfg.Exchange,
		breaker:   breaker,
	}, nil
}

// Start launches one goroutine per consumer, each polling and
// republishing until Stop is called.
func (br *Bridge) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	br.cancel = cancel
	br.done = make(chan struct{}, len(br.consumers))

	for _, c := range br.consumers {
		go br.drainLoop(ctx, c)
	}
	return nil
}

// Stop cancels every drain loop and waits for them to exit, then closes
// the underlying AMQP publisher.
func (br *Bridge) Stop(ctx context.Context) error {
	if br.cancel != nil {
		br.cancel()
	}
	for range br.consumers {
		select {
		case <-br.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return br.publisher.Close()
}

func (br *Bridge) drainLoop(ctx context.Context, c *bus.Consumer) {
	defer func() { br.done <- struct{}{} }()

	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			events := c.PollBatch(64)
			for _, ev := range events {
				if err := br.publishOne(ev); err != nil {
					br.logger.Warn("amqp publish failed", "consumer", c.ID(), "error", err)
				}
			}
		}
	}
}

func (br *Bridge) publishOne(ev bus.Event) error {
	_, err := br.breaker.Execute(func() (struct{}, error) {
		payload, err := json.Marshal(wireEvent{
			Topic:     ev.Topic,
			ID:        ev.ID,
			Timestamp: ev.Timestamp,
			Payload:   ev.Payload,
		})
		if err != nil {
			return struct{}{}, fmt.Errorf("marshal: %w", err)
		}
		msg := message.NewMessage(watermill.NewUUID(), payload)
		return struct{}{}, br.publisher.Publish(br.exchange, msg)
	})
	return err
}
