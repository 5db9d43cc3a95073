// Package lpbridge implements HTTP long-polling over a consumer's
// poll_batch: one request, one bounded wait, one JSON response.
package lpbridge

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flowmesh/partbus/internal/domain/bus"
)

const (
	defaultMax     = 64
	defaultTimeout = 30 * time.Second
	pollInterval   = 5 * time.Millisecond
)

// Handler serves one consumer group's consumers via GET /poll/{consumer}.
type Handler struct {
	b       *bus.Bus
	groupID string
	timeout time.Duration
}

// New builds a Handler long-polling groupID's consumers.
func New(b *bus.Bus, groupID string) *Handler {
	return &Handler{b: b, groupID: groupID, timeout: defaultTimeout}
}

// Route mounts the long-poll endpoint on r at "/poll/{consumer}".
func (h *Handler) Route(r chi.Router) {
	r.Get("/poll/{consumer}", h.Poll)
}

// Poll calls poll_batch repeatedly within a bounded wait until it returns
// at least one event, which it writes as the single JSON response; if the
// timeout elapses first it answers 204 No Content.
func (h *Handler) Poll(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "consumer"))
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

	max := defaultMax
	if v := r.URL.Query().Get("max"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			max = n
		}
	}

	deadline := time.After(h.timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		events := consumer.PollBatch(max)
		if len(events) > 0 {
			writeJSON(w, events)
			return
		}

		select {
		case <-r.Context().Done():
			return
		case <-deadline:
			w.WriteHeader(http.StatusNoContent)
			return
		case <-ticker.C:
		}
	}
}

func writeJSON(w http.ResponseWriter, events []bus.Event) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(events)
}
