package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// findMetric returns the first sample of c carrying every label in want.
func findMetric(c prometheus.Collector, want map[string]string) *dto.Metric {
	ch := make(chan prometheus.Metric, 100)
	c.Collect(ch)
	close(ch)

	for m := range ch {
		var d dto.Metric
		if m.Write(&d) != nil {
			continue
		}
		got := make(map[string]string, len(d.GetLabel()))
		for _, lp := range d.GetLabel() {
			got[lp.GetName()] = lp.GetValue()
		}
		matched := true
		for k, v := range want {
			if got[k] != v {
				matched = false
				break
			}
		}
		if matched {
			return &d
		}
	}
	return nil
}

func metricsRouter(service string, h http.HandlerFunc) *chi.Mux {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics(service))
	r.Get("/api/v1/users/c/{username}", h)
	return r
}

func TestPrometheusMetrics_LabelsByRoutePattern(t *testing.T) {
	r := metricsRouter("metrics-pattern", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, name := range []string{"alice", "bob", "carol"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users/c/"+name, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	labels := map[string]string{
		"service": "metrics-pattern", "method": "GET",
		"path": "/api/v1/users/c/{username}", "status": "200",
	}
	counter := findMetric(httpRequestsTotal, labels)
	require.NotNil(t, counter)
	assert.Equal(t, float64(3), counter.GetCounter().GetValue())

	hist := findMetric(httpRequestDuration, labels)
	require.NotNil(t, hist)
	assert.Equal(t, uint64(3), hist.GetHistogram().GetSampleCount())
}

func TestPrometheusMetrics_StatusLabel(t *testing.T) {
	tests := []struct {
		service string
		write   func(w http.ResponseWriter)
		status  string
	}{
		{"metrics-implicit", func(w http.ResponseWriter) { _, _ = w.Write([]byte("ok")) }, "200"},
		{"metrics-created", func(w http.ResponseWriter) { w.WriteHeader(http.StatusCreated) }, "201"},
		{"metrics-unauthorized", func(w http.ResponseWriter) { w.WriteHeader(http.StatusUnauthorized) }, "401"},
		{"metrics-failure", func(w http.ResponseWriter) { w.WriteHeader(http.StatusInternalServerError) }, "500"},
	}

	for _, tc := range tests {
		t.Run(tc.service, func(t *testing.T) {
			r := metricsRouter(tc.service, func(w http.ResponseWriter, _ *http.Request) { tc.write(w) })
			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/users/c/alice", nil))

			assert.NotNil(t, findMetric(httpRequestsTotal, map[string]string{"service": tc.service, "status": tc.status}))
		})
	}
}

func TestPrometheusMetrics_UnmatchedRouteIsUnknown(t *testing.T) {
	r := metricsRouter("metrics-unknown", func(http.ResponseWriter, *http.Request) {})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/videos/42", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotNil(t, findMetric(httpRequestsTotal, map[string]string{
		"service": "metrics-unknown", "path": "unknown", "status": "404",
	}))
}

func TestPrometheusMetrics_InFlightGauge(t *testing.T) {
	var during float64
	r := metricsRouter("metrics-inflight", func(w http.ResponseWriter, _ *http.Request) {
		if m := findMetric(httpRequestsInFlight, map[string]string{"service": "metrics-inflight"}); m != nil {
			during = m.GetGauge().GetValue()
		}
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/users/c/alice", nil))

	assert.Equal(t, float64(1), during)
	after := findMetric(httpRequestsInFlight, map[string]string{"service": "metrics-inflight"})
	require.NotNil(t, after)
	assert.Equal(t, float64(0), after.GetGauge().GetValue())
}
