// Package httpapi exposes the publish side of the bus over HTTP: a
// single chi route accepting a topic, JSON payload, and optional
// partition key and handing it to bus.Publish.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flowmesh/partbus/internal/domain/bus"
)

// PublishRequest is the JSON body accepted by POST /publish.
type PublishRequest struct {
	Topic        string `json:"topic"`
	Payload      []byte `json:"payload"`
	PartitionKey string `json:"partition_key"`
}

// PublishResponse reports whether every subscribed group accepted the
// event. The core Publish contract (spec.md §6) returns only this
// boolean — the assigned event ID is an implementation detail of the
// bus, not surfaced across the HTTP boundary.
type PublishResponse struct {
	Accepted bool `json:"accepted"`
}

// Handler serves the publish-side HTTP surface.
type Handler struct {
	b      *bus.Bus
	logger *slog.Logger
}

// New builds a publish Handler over b.
func New(b *bus.Bus, logger *slog.Logger) *Handler {
	return &Handler{b: b, logger: logger}
}

// Route mounts the publish endpoint on r at "/publish".
func (h *Handler) Route(r chi.Router) {
	r.Post("/publish", h.Publish)
}

// Publish decodes the request body, publishes the event, and reports
// the outcome.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Topic == "" {
		http.Error(w, "topic is required", http.StatusBadRequest)
		return
	}

	ev := bus.NewEvent(req.Topic, req.Payload)
	accepted, err := h.b.Publish(ev, req.PartitionKey)
	if err != nil {
		h.logger.Error("publish rejected", "topic", req.Topic, "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(PublishResponse{Accepted: accepted})
}
