package cmd

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/flowmesh/partbus/internal/core/backpressure"
	"github.com/flowmesh/partbus/internal/domain/bus"
)

// basicCmd is the Go equivalent of the original basic_usage_demo.cpp: a
// single topic, single consumer group, single consumer publishing and
// draining ten events while reporting end-to-end latency.
func basicCmd() *cli.Command {
	return &cli.Command{
		Name:  "basic",
		Usage: "Publish and drain ten events on a single-partition topic",
		Action: func(c *cli.Context) error {
			return runBasicDemo()
		},
	}
}

func runBasicDemo() error {
	b, err := bus.New(bus.Config{
		Topics: []bus.TopicConfig{
			{Name: "notifications", Partitions: 1},
		},
		ConsumerGroups: []bus.GroupConfig{
			{GroupID: "notification_handlers", Topic: "notifications", Consumers: 1},
		},
	}, backpressure.DefaultConfig())
	if err != nil {
		return fmt.Errorf("basic demo: %w", err)
	}

	consumers, err := b.Consumers("notification_handlers")
	if err != nil {
		return fmt.Errorf("basic demo: %w", err)
	}
	consumer := consumers[0]

	fmt.Println("Event bus initialized with 1 topic, 1 consumer group, 1 consumer")
	fmt.Printf("Consumer ID: %s\n\n", consumer.ID())

	const numMessages = 10
	for i := 0; i < numMessages; i++ {
		ev := bus.NewEvent("notifications", []byte(fmt.Sprintf("Message %d: Hello World!", i)))
		if ok, err := b.Publish(ev, ""); err != nil {
			return fmt.Errorf("basic demo: %w", err)
		} else if ok {
			fmt.Printf("Published: %s\n", ev.Payload)
		} else {
			fmt.Printf("Failed to publish message %d\n", i)
		}
	}

	fmt.Println("\n=== Consuming Events ===")
	consumed := 0
	var latencies []time.Duration
	deadline := time.Now().Add(5 * time.Second)

	for consumed < numMessages {
		events := consumer.PollBatch(5)
		if len(events) == 0 {
			if time.Now().After(deadline) {
				fmt.Println("Timeout waiting for messages!")
				break
			}
			time.Sleep(time.Millisecond)
			continue
		}

		now := time.Now()
		for _, ev := range events {
			latency := now.Sub(ev.Timestamp)
			latencies = append(latencies, latency)
			fmt.Printf("Consumed: %s (Latency: %s)\n", ev.Payload, latency)
			consumed++
		}
	}

	fmt.Println("\n=== Performance Summary ===")
	fmt.Printf("Messages consumed: %d\n", consumed)
	if len(latencies) > 0 {
		min, max, total := latencies[0], latencies[0], time.Duration(0)
		for _, l := range latencies {
			if l < min {
				min = l
			}
			if l > max {
				max = l
			}
			total += l
		}
		fmt.Printf("Latency (min/avg/max): %s/%s/%s\n", min, total/time.Duration(len(latencies)), max)
	}
	return nil
}
