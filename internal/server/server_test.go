package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/liquidationbot/internal/metrics"
	"github.com/alanyoungcy/liquidationbot/internal/server/handler"
)

func TestRoutes(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	m.Search(true)

	h := routes(Config{APIKey: "secret"}, Handlers{
		Health: handler.NewHealthHandler(handler.StatusInfo{Mode: "once"}, logger),
	}, reg, logger)

	get := func(path, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, get("/api/health", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get("/api/status", "").Code)
	assert.Equal(t, http.StatusOK, get("/api/status", "secret").Code)
	assert.Equal(t, http.StatusNotFound, get("/api/events", "secret").Code)

	rec := get("/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "liqbot_")
}
