package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimit_RejectsAfterBurst(t *testing.T) {
	handler := RateLimit(RateLimitConfig{RPS: 0.001, Burst: 2}, discardLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests {
			assert.Equal(t, "1", rec.Header().Get("Retry-After"))
			assert.Contains(t, rec.Body.String(), `"code":"TOO_MANY_REQUESTS"`)
		}
	}

	assert.Equal(t, []int{200, 200, 429}, codes)
}

func TestRateLimit_SeparateBucketsPerClient(t *testing.T) {
	handler := RateLimit(RateLimitConfig{RPS: 0.001, Burst: 1}, discardLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1"} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, addr)
	}
}

func TestVisitorStore_SweepsIdleClients(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newVisitorStore(1, 1, time.Minute)
	s.nowFunc = func() time.Time { return now }
	s.lastSweep = now

	s.allow("a")
	s.allow("b")
	assert.Equal(t, 2, s.len())

	now = now.Add(2 * time.Minute)
	s.allow("c")
	assert.Equal(t, 1, s.len())
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remote     string
		xff        string
		xri        string
		trustProxy bool
		want       string
	}{
		{"remote addr", "192.0.2.1:1234", "", "", false, "192.0.2.1"},
		{"no port", "192.0.2.1", "", "", false, "192.0.2.1"},
		{"xff ignored when untrusted", "192.0.2.1:1", "203.0.113.9", "", false, "192.0.2.1"},
		{"xff first hop", "192.0.2.1:1", "203.0.113.9, 10.0.0.1", "", true, "203.0.113.9"},
		{"x-real-ip", "192.0.2.1:1", "", "198.51.100.7", true, "198.51.100.7"},
		{"garbage xff", "192.0.2.1:1", "nope", "", true, "192.0.2.1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remote
			if tc.xff != "" {
				req.Header.Set("X-Forwarded-For", tc.xff)
			}
			if tc.xri != "" {
				req.Header.Set("X-Real-IP", tc.xri)
			}
			assert.Equal(t, tc.want, clientIP(req, tc.trustProxy))
		})
	}
}
