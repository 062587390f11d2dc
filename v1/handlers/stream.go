package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/concierge-tc/portal-backend/v1/models"
)

// streamChanges relays change-feed events the caller may see as server-sent events
func (h *V1Handler) streamChanges(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	scope, ok := h.scope(w, r, user, models.ResourceTypeTransactions)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeAPIError(w, r, streamingUnsupported())
		return
	}
	if h.feed == nil {
		writeAPIError(w, r, streamingUnsupported())
		return
	}

	events, err := h.feed.Subscribe(r.Context())
	if err != nil {
		h.handleError(w, r, err, models.ResourceTypeTransactions, nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.closing:
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case event, open := <-events:
			if !open {
				return
			}
			if !h.agents.EventVisible(r.Context(), scope, event) {
				continue
			}
			payload, err := json.Marshal(event)
			if err != nil {
				slog.Warn("Failed to encode change event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: change\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
