package amqpbridge

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/flowmesh/partbus/internal/config"
	"github.com/flowmesh/partbus/internal/domain/bus"
)

// Module wires the AMQP bridge when cfg.AMQP.Enabled, starting its drain
// goroutines on fx's OnStart and stopping them on OnStop, the way the
// teacher wires its AMQP handler's router lifecycle.
var Module = fx.Module("amqp-bridge",
	fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, b *bus.Bus, logger *slog.Logger) error {
		if !cfg.AMQP.Enabled {
			return nil
		}
		br, err := New(cfg.AMQP, b, logger)
		if err != nil {
			return err
		}
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error { return br.Start(ctx) },
			OnStop:  func(ctx context.Context) error { return br.Stop(ctx) },
		})
		return nil
	}),
)
