package config

import (
	"fmt"
	"strings"

	"github.com/flowmesh/partbus/internal/core/backpressure"
	"github.com/flowmesh/partbus/internal/domain/bus"
)

// ToBusConfig converts the file-loaded topology into the core bus.Config.
func (c *Config) ToBusConfig() bus.Config {
	cfg := bus.Config{
		Topics:         make([]bus.TopicConfig, len(c.Bus.Topics)),
		ConsumerGroups: make([]bus.GroupConfig, len(c.Bus.ConsumerGroups)),
	}
	for i, t := range c.Bus.Topics {
		cfg.Topics[i] = bus.TopicConfig{Name: t.Name, Partitions: t.Partitions}
	}
	for i, g := range c.Bus.ConsumerGroups {
		cfg.ConsumerGroups[i] = bus.GroupConfig{GroupID: g.GroupID, Topic: g.Topic, Consumers: g.Consumers}
	}
	return cfg
}

// ToBackPressureConfig converts the string strategy name into the core
// backpressure.Config, defaulting to DropNewest when the name is empty. An
// unrecognized name is an error.
func (c *Config) ToBackPressureConfig() (backpressure.Config, error) {
	var strategy backpressure.Strategy
	switch strings.ToLower(c.BackPressure.Strategy) {
	case "", "drop_newest":
		strategy = backpressure.DropNewest
	case "block":
		strategy = backpressure.Block
	case "spin":
		strategy = backpressure.Spin
	case "yielding_spin":
		strategy = backpressure.YieldingSpin
	default:
		return backpressure.Config{}, fmt.Errorf("back_pressure.strategy: unknown strategy %q", c.BackPressure.Strategy)
	}

	return backpressure.Config{
		Strategy:       strategy,
		BlockSleep:     c.BackPressure.BlockSleep,
		SpinTimeout:    c.BackPressure.SpinTimeout,
		YieldThreshold: c.BackPressure.YieldThreshold,
	}, nil
}
