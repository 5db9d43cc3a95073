package cmd

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/flowmesh/partbus/internal/core/backpressure"
	"github.com/flowmesh/partbus/internal/domain/bus"
)

// scaleCmd is the Go equivalent of the original
// partition_scaling_demo.cpp: it runs the same publish workload against
// increasing partition/consumer counts and reports throughput and
// per-consumer load distribution.
func scaleCmd() *cli.Command {
	return &cli.Command{
		Name:  "scale",
		Usage: "Measure throughput and load distribution across partition counts",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "events", Value: 10000, Usage: "number of events to publish per configuration"},
		},
		Action: func(c *cli.Context) error {
			n := c.Int("events")
			var baseline float64
			for i, partitions := range []int{1, 4, 8, 15} {
				throughput, perConsumer, err := runScalingStep(partitions, n)
				if err != nil {
					return err
				}
				if i == 0 {
					baseline = throughput
				}
				fmt.Printf("\n--- partitions=%d consumers=%d ---\n", partitions, len(perConsumer))
				fmt.Printf("throughput=%.0f events/sec  (%.2fx baseline)\n", throughput, throughput/baseline)
				reportDistribution(perConsumer)
				showDistributionChart(partitions, perConsumer)
			}
			return nil
		},
	}
}

// runScalingStep returns throughput together with each consumer's event
// count, so the caller can report load skew in addition to the aggregate
// number, matching the original partition_scaling_demo.cpp's per-consumer
// "Consumer <id>: <n> events" reporting.
func runScalingStep(partitions, numEvents int) (float64, []int, error) {
	const groupID = "scale_handlers"
	b, err := bus.New(bus.Config{
		Topics: []bus.TopicConfig{{Name: "scale", Partitions: uint32(partitions)}},
		ConsumerGroups: []bus.GroupConfig{
			{GroupID: groupID, Topic: "scale", Consumers: uint32(partitions)},
		},
	}, backpressure.Config{Strategy: backpressure.Block, BlockSleep: 50 * time.Microsecond})
	if err != nil {
		return 0, nil, fmt.Errorf("scale demo: %w", err)
	}

	consumers, err := b.Consumers(groupID)
	if err != nil {
		return 0, nil, fmt.Errorf("scale demo: %w", err)
	}

	perConsumer := make([]int, len(consumers))
	var wg sync.WaitGroup
	var consumed int64

	for i, consumer := range consumers {
		wg.Add(1)
		go func(i int, c *bus.Consumer) {
			defer wg.Done()
			for atomic.LoadInt64(&consumed) < int64(numEvents) {
				events := c.PollBatch(64)
				perConsumer[i] += len(events)
				atomic.AddInt64(&consumed, int64(len(events)))
				if len(events) == 0 {
					time.Sleep(100 * time.Microsecond)
				}
			}
		}(i, consumer)
	}

	start := time.Now()
	for i := 0; i < numEvents; i++ {
		ev := bus.NewEvent("scale", nil)
		if _, err := b.Publish(ev, ""); err != nil {
			return 0, nil, fmt.Errorf("scale demo: %w", err)
		}
	}
	wg.Wait()
	elapsed := time.Since(start)

	return float64(numEvents) / elapsed.Seconds(), perConsumer, nil
}

// reportDistribution prints each consumer's event count plus a skew
// summary, the load-distribution half of partition_scaling_demo.cpp's
// output that runScalingStep's return value alone did not surface.
func reportDistribution(perConsumer []int) {
	for i, n := range perConsumer {
		fmt.Printf("Consumer %d: %d events\n", i, n)
	}

	min, max := perConsumer[0], perConsumer[0]
	var sum float64
	for _, n := range perConsumer {
		if n < min {
			min = n
		}
		if n > max {
			max = n
		}
		sum += float64(n)
	}
	mean := sum / float64(len(perConsumer))

	var variance float64
	for _, n := range perConsumer {
		d := float64(n) - mean
		variance += d * d
	}
	stddev := math.Sqrt(variance / float64(len(perConsumer)))

	fmt.Printf("distribution: min=%d max=%d mean=%.1f stddev=%.2f\n", min, max, mean, stddev)
}
