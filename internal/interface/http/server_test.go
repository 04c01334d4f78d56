package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bakalari-hub/grade-notifier/pkg/logger"
)

func newTestServer(checks map[string]HealthCheckFunc, stats map[string]StatsFunc) *Server {
	health := NewHealthChecker("test")
	for name, check := range checks {
		health.AddCheck(name, check)
	}
	return NewServer(DefaultConfig(), Dependencies{Health: health, Stats: stats, Logger: logger.Discard()})
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Live(t *testing.T) {
	rec := get(t, newTestServer(nil, nil), "/live")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_Health(t *testing.T) {
	t.Run("all checks pass", func(t *testing.T) {
		s := newTestServer(map[string]HealthCheckFunc{
			"storage": func(context.Context) error { return nil },
		}, nil)

		rec := get(t, s, "/health")
		require.Equal(t, http.StatusOK, rec.Code)

		var status HealthStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.True(t, status.Healthy)
		assert.Equal(t, "test", status.Version)
		assert.True(t, status.Checks["storage"].Healthy)
	})

	t.Run("failing check", func(t *testing.T) {
		s := newTestServer(map[string]HealthCheckFunc{
			"storage": func(context.Context) error { return nil },
			"poll":    func(context.Context) error { return errors.New("unknown subject") },
		}, nil)

		rec := get(t, s, "/healthz")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var status HealthStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.False(t, status.Healthy)
		assert.Equal(t, "Some checks failed: poll", status.Message)
		assert.Equal(t, "unknown subject", status.Checks["poll"].Message)
	})
}

func TestServer_Stats(t *testing.T) {
	s := newTestServer(nil, map[string]StatsFunc{
		"bot": func() any { return map[string]int{"updates_received": 3} },
	})

	rec := get(t, s, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 3, out["bot"]["updates_received"])
}

func TestServer_RecoversPanics(t *testing.T) {
	s := newTestServer(nil, map[string]StatsFunc{
		"broken": func() any { panic("boom") },
	})

	rec := get(t, s, "/stats")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	assert.NoError(t, newTestServer(nil, nil).Shutdown(context.Background()))
}
