package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
)

// EventHandler serves the persisted event log.
type EventHandler struct {
	store  domain.EventStore
	logger *slog.Logger
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(store domain.EventStore, logger *slog.Logger) *EventHandler {
	return &EventHandler{store: store, logger: logHandler(logger, "events")}
}

type eventJSON struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Account  string `json:"account"`
	Error    string `json:"error,omitempty"`
	Strategy string `json:"strategy,omitempty"`
	At       string `json:"at"`
}

// ListEvents returns events newest first.
// GET /api/events?limit=&offset=&since=&until=
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.store.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list events failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	out := make([]eventJSON, 0, len(events))
	for _, ev := range events {
		out = append(out, eventJSON{
			ID:       ev.ID,
			Type:     string(ev.Type),
			Account:  ev.Account,
			Error:    ev.Error,
			Strategy: ev.Strategy,
			At:       ev.At.UTC().Format(time.RFC3339Nano),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": out})
}
