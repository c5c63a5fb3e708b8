package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/liquidationbot/internal/domain"
)

type memStore struct {
	events []domain.Event
	last   domain.ListOpts
	err    error
}

func (s *memStore) Append(_ context.Context, ev domain.Event) error {
	s.events = append(s.events, ev)
	return nil
}

func (s *memStore) List(_ context.Context, opts domain.ListOpts) ([]domain.Event, error) {
	s.last = opts
	return s.events, s.err
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestListEvents(t *testing.T) {
	at := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	store := &memStore{events: []domain.Event{{ID: "1", Type: domain.EventExecuted, Account: "0xa", At: at}}}
	h := NewEventHandler(store, discard())

	rec := httptest.NewRecorder()
	h.ListEvents(rec, httptest.NewRequest(http.MethodGet, "/api/events?limit=1000&offset=5&since=2026-01-01T00:00:00Z", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 500, store.last.Limit)
	assert.Equal(t, 5, store.last.Offset)
	require.NotNil(t, store.last.Since)
	assert.Nil(t, store.last.Until)

	var body struct {
		Events []eventJSON `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Events, 1)
	assert.Equal(t, "EXECUTED", body.Events[0].Type)
	assert.Equal(t, "2026-02-01T12:00:00Z", body.Events[0].At)
}

func TestListEventsErrors(t *testing.T) {
	h := NewEventHandler(&memStore{}, discard())
	rec := httptest.NewRecorder()
	h.ListEvents(rec, httptest.NewRequest(http.MethodGet, "/api/events?until=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h = NewEventHandler(&memStore{err: errors.New("db down")}, discard())
	rec = httptest.NewRecorder()
	h.ListEvents(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestStatus(t *testing.T) {
	h := NewHealthHandler(StatusInfo{Mode: "watch", Liquidator: "0x1", RelayEnabled: true}, discard())
	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "watch", body["mode"])
	assert.Equal(t, true, body["relay_enabled"])
}
