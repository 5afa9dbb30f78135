package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskapi/internal/logger"
)

func TestMiddleware_CountsByRoutePattern(t *testing.T) {
	logger.New("NOOP")
	defer logger.OnExit()

	m := New(logger.Sugar, "TaskAPI")
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/tags/{id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") == "404" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/api/tags/1", "/api/tags/2", "/api/tags/404", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsCounter.WithLabelValues("GET", "/api/tags/{id}", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsCounter.WithLabelValues("GET", "/api/tags/{id}", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsCounter.WithLabelValues("GET", unmatchedRoute, "404")))
}

func TestNewPromHandler_ExposesOnlyOwnRegistry(t *testing.T) {
	logger.New("NOOP")
	defer logger.OnExit()

	m := New(logger.Sugar, "TaskAPI")
	assert.Equal(t, "taskapi", m.String())

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))

	rec := httptest.NewRecorder()
	m.NewPromHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, "taskapi_requests_total")
	assert.Contains(t, text, "taskapi_requests_latency_seconds")
	assert.False(t, strings.Contains(text, "go_goroutines"), "go collector should not be registered")
}

func TestMiddleware_NilMetricsPassesThrough(t *testing.T) {
	var m *Metrics
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}
