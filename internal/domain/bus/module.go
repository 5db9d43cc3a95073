package bus

import (
	"context"

	"go.uber.org/fx"

	"github.com/flowmesh/partbus/internal/core/backpressure"
)

// Module wires a *Bus from the process-wide config.Config-derived
// Config/backpressure.Config pair. The bus itself owns no goroutines, so
// its lifecycle hook only exists to make startup ordering explicit —
// consumers must not be handed to driver code before the bus is built.
var Module = fx.Module("bus",
	fx.Provide(newFromFx),
	fx.Invoke(func(lc fx.Lifecycle, b *Bus) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error { return nil },
		})
	}),
)

// newFromFx adapts New's variadic Option parameter for fx, which cannot
// resolve a variadic dependency.
func newFromFx(cfg Config, bp backpressure.Config) (*Bus, error) {
	return New(cfg, bp)
}
