// Package server assembles the chi router serving the driver layer's
// HTTP surface (publish, long-poll, websocket stream) and runs it
// behind an fx lifecycle hook, the way the teacher wires its grpc/http
// servers.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/fx"

	"github.com/flowmesh/partbus/internal/adapter/httpapi"
	"github.com/flowmesh/partbus/internal/adapter/lpbridge"
	"github.com/flowmesh/partbus/internal/adapter/wsbridge"
	"github.com/flowmesh/partbus/internal/config"
	"github.com/flowmesh/partbus/internal/domain/bus"
)

// demoGroupID names the consumer group the HTTP bridges poll; it must
// be declared in the loaded bus config's consumer_groups.
const demoGroupID = "notification_handlers"

// New builds the chi router mounting the publish, long-poll, and
// websocket-stream endpoints under /v1.
func New(cfg *config.Config, b *bus.Bus, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	publish := httpapi.New(b, logger)
	longPoll := lpbridge.New(b, demoGroupID)
	stream := wsbridge.New(b, demoGroupID, logger)

	r.Route("/v1", func(v1 chi.Router) {
		publish.Route(v1)
		longPoll.Route(v1)
		stream.Route(v1)
	})

	return r
}

// Module provides the router and a *http.Server lifecycle-managed by
// fx, listening on cfg.HTTP.Addr.
var Module = fx.Module("http-server",
	fx.Provide(New),
	fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, mux *chi.Mux, logger *slog.Logger) {
		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				ln, err := net.Listen("tcp", srv.Addr)
				if err != nil {
					return err
				}
				go func() {
					if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
						logger.Error("http server exited", "error", err)
					}
				}()
				logger.Info("http server listening", "addr", srv.Addr)
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return srv.Shutdown(ctx)
			},
		})
	}),
)
