// Package wsbridge streams drained events to a browser over a
// WebSocket connection. Each HTTP connection streams from an existing
// consumer of the configured group, chosen by its index in the URL; no
// consumer is created per connection, so core topology stays sealed
// after the bus is built.
package wsbridge

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/flowmesh/partbus/internal/domain/bus"
)

// Handler upgrades incoming requests to WebSocket connections and pumps
// drained events from one consumer group's consumers to the browser.
type Handler struct {
	logger   *slog.Logger
	b        *bus.Bus
	groupID  string
	upgrader websocket.Upgrader
}

// New builds a Handler streaming events from groupID's consumers.
func New(b *bus.Bus, groupID string, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		b:       b,
		groupID: groupID,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Route mounts the handler's stream endpoint on r at "/stream/{consumer}".
func (h *Handler) Route(r chi.Router) {
	r.Get("/stream/{consumer}", h.Stream)
}

// Stream upgrades the connection and pumps events from the named
// consumer (by zero-based index within its group) until the client
// disconnects.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	idx, err := consumerIndex(chi.URLParam(r, "consumer"))
	if err != nil {
		http.Error(w, "invalid consumer index", http.StatusBadRequest)
		return
	}

	consumers, err := h.b.Consumers(h.groupID)
	if err != nil || idx >= len(consumers) {
		http.Error(w, "unknown consumer", http.StatusNotFound)
		return
	}
	consumer := consumers[idx]

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	connID := uuid.New()
	h.logger.Info("ws opened", "group", h.groupID, "consumer", consumer.ID(), "conn_id", connID)
	defer h.logger.Info("ws closed", "group", h.groupID, "consumer", consumer.ID(), "conn_id", connID)

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			events := consumer.PollBatch(16)
			for _, ev := range events {
				data, err := json.Marshal(ev)
				if err != nil {
					h.logger.Error("failed to marshal ws event", "error", err)
					continue
				}
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					h.logger.Warn("ws send failed", "error", err)
					return
				}
			}
		}
	}
}

func consumerIndex(s string) (int, error) {
	return strconv.Atoi(s)
}
