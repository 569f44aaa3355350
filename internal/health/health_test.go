package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	t.Run("healthy when broker answers", func(t *testing.T) {
		s := NewServer("valley", pingFunc(func(context.Context) error { return nil }), nil, nil)

		w := get(t, s.Handler(), "/healthz")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var resp Response
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, Response{Status: "healthy", Session: "valley", Redis: "connected"}, resp)
	})

	t.Run("unhealthy when broker is down", func(t *testing.T) {
		s := NewServer("valley", pingFunc(func(context.Context) error { return errors.New("connection refused") }), nil, nil)

		w := get(t, s.Handler(), "/healthz")
		require.Equal(t, http.StatusServiceUnavailable, w.Code)

		var resp Response
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "unhealthy", resp.Status)
		assert.Equal(t, "disconnected", resp.Redis)
		assert.Equal(t, "connection refused", resp.Error)
	})

	t.Run("no pinger", func(t *testing.T) {
		s := NewServer("valley", nil, nil, nil)

		w := get(t, s.Handler(), "/healthz")
		require.Equal(t, http.StatusOK, w.Code)

		var resp Response
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Empty(t, resp.Redis)
	})
}

func TestHealthzMethodNotAllowed(t *testing.T) {
	s := NewServer("valley", nil, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestMetricsMount(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "retinue_companions 1\n")
	})

	w := get(t, NewServer("valley", nil, metrics, nil).Handler(), "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "retinue_companions 1\n", w.Body.String())

	w = get(t, NewServer("valley", nil, nil, nil).Handler(), "/metrics")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartAndShutdown(t *testing.T) {
	s := NewServer("valley", nil, nil, nil)
	require.NoError(t, s.Start("127.0.0.1:0"))
	require.NoError(t, s.Shutdown(context.Background()))

	assert.NoError(t, NewServer("valley", nil, nil, nil).Shutdown(context.Background()))
}
