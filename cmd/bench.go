package cmd

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/flowmesh/partbus/internal/core/backpressure"
	"github.com/flowmesh/partbus/internal/domain/bus"
)

// benchCmd is the Go equivalent of the original
// latency_benchmark_demo.cpp: it compares single-partition versus
// multi-partition publish-to-consume latency under a burst load.
func benchCmd() *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "Compare single- vs multi-partition publish-to-consume latency",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "events", Value: 15000, Usage: "number of events to publish per configuration"},
		},
		Action: func(c *cli.Context) error {
			n := c.Int("events")
			fmt.Printf("=== Single Partition (1P/1C), %d events ===\n", n)
			if err := runLatencyBench(1, 1, n); err != nil {
				return err
			}
			fmt.Printf("\n=== Multi Partition (4P/4C), %d events ===\n", n)
			return runLatencyBench(4, 4, n)
		},
	}
}

func runLatencyBench(partitions, consumerCount, numEvents int) error {
	const groupID = "bench_handlers"
	b, err := bus.New(bus.Config{
		Topics: []bus.TopicConfig{{Name: "bench", Partitions: uint32(partitions)}},
		ConsumerGroups: []bus.GroupConfig{
			{GroupID: groupID, Topic: "bench", Consumers: uint32(consumerCount)},
		},
	}, backpressure.Config{Strategy: backpressure.Block, BlockSleep: 50 * time.Microsecond})
	if err != nil {
		return fmt.Errorf("bench: %w", err)
	}

	consumers, err := b.Consumers(groupID)
	if err != nil {
		return fmt.Errorf("bench: %w", err)
	}

	payload := make([]byte, 50)
	latencies := make(chan time.Duration, numEvents)
	var consumedCount int64
	var wg sync.WaitGroup

	for _, consumer := range consumers {
		wg.Add(1)
		go func(c *bus.Consumer) {
			defer wg.Done()
			for {
				events := c.PollBatch(64)
				now := time.Now()
				for _, ev := range events {
					latencies <- now.Sub(ev.Timestamp)
				}
				if atomic.AddInt64(&consumedCount, int64(len(events))) >= int64(numEvents) {
					return
				}
				if len(events) == 0 {
					time.Sleep(100 * time.Microsecond)
				}
			}
		}(consumer)
	}

	start := time.Now()
	for i := 0; i < numEvents; i++ {
		ev := bus.NewEvent("bench", payload)
		if _, err := b.Publish(ev, ""); err != nil {
			return fmt.Errorf("bench: %w", err)
		}
	}
	publishElapsed := time.Since(start)

	wg.Wait()
	close(latencies)

	sorted := make([]time.Duration, 0, numEvents)
	for l := range latencies {
		sorted = append(sorted, l)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	fmt.Printf("Publish throughput: %.0f events/sec\n", float64(numEvents)/publishElapsed.Seconds())
	if len(sorted) > 0 {
		fmt.Printf("Latency p50/p99/max: %s/%s/%s\n",
			sorted[len(sorted)*50/100],
			sorted[len(sorted)*99/100],
			sorted[len(sorted)-1])
	}
	return nil
}
