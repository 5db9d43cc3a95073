package cmd

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/flowmesh/partbus/internal/adapter/amqpbridge"
	"github.com/flowmesh/partbus/internal/config"
	"github.com/flowmesh/partbus/internal/core/backpressure"
	"github.com/flowmesh/partbus/internal/domain/bus"
	"github.com/flowmesh/partbus/internal/logging"
	"github.com/flowmesh/partbus/internal/server"
)

// NewApp wires the bus, its HTTP/AMQP driver layer, and their fx
// lifecycle hooks from cfg.
func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			provideLogger,
			provideBusConfig,
			provideBackPressureConfig,
		),
		bus.Module,
		server.Module,
		amqpbridge.Module,
	)
}

func provideLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(cfg.Log)
}

func provideBusConfig(cfg *config.Config) bus.Config {
	return cfg.ToBusConfig()
}

func provideBackPressureConfig(cfg *config.Config) (backpressure.Config, error) {
	return cfg.ToBackPressureConfig()
}
