package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestAPIKeyGate(t *testing.T) {
	gate := APIKeyGate("k1")(http.HandlerFunc(okHandler))

	tests := []struct {
		name   string
		method string
		key    string
		want   int
	}{
		{"Preflight passes", http.MethodOptions, "", http.StatusOK},
		{"Missing", http.MethodGet, "", http.StatusUnauthorized},
		{"Wrong", http.MethodGet, "k2", http.StatusUnauthorized},
		{"Prefix of key", http.MethodGet, "k", http.StatusUnauthorized},
		{"Match", http.MethodGet, "k1", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/external/products", nil)
			if tt.key != "" {
				req.Header.Set(APIKeyHeader, tt.key)
			}
			rec := httptest.NewRecorder()
			gate.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	t.Run("Empty configured key rejects everything", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(APIKeyHeader, "anything")
		rec := httptest.NewRecorder()
		APIKeyGate("")(http.HandlerFunc(okHandler)).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestMetricsAuth(t *testing.T) {
	guarded := MetricsAuth("scrape-token")(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req.Header.Set("Authorization", "Bearer scrape-token")
	rec = httptest.NewRecorder()
	guarded.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	MetricsAuth("")(http.HandlerFunc(okHandler)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTPMetrics_UsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewHTTPMetrics(reg)

	r := chi.NewRouter()
	r.Use(metrics.Middleware("productflow"))
	r.Get("/items/{id}", okHandler)
	r.Get("/missing-status", func(w http.ResponseWriter, r *http.Request) {})

	for _, path := range []string{"/items/1", "/items/2", "/missing-status"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.Requests.WithLabelValues("productflow", "GET", "/items/{id}", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Requests.WithLabelValues("productflow", "GET", "/missing-status", "200")))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.Latency))
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := Logging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/products", nil))

	entries := logs.FilterMessage("request").All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "POST", fields["method"])
		assert.Equal(t, "/api/products", fields["path"])
		assert.Equal(t, int64(http.StatusTeapot), fields["status"])
	}
}
