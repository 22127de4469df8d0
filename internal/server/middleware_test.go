package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_CORSMiddleware(t *testing.T) {
	server := newTestServer(&fakePipeline{})

	handler := server.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("sets CORS headers", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/health", nil)
		w := httptest.NewRecorder()

		handler(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		called := false
		preflightHandler := server.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
			called = true
		})

		req := httptest.NewRequest("OPTIONS", "/api/parse", nil)
		w := httptest.NewRecorder()

		preflightHandler(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.False(t, called)
		assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
	})
}

func TestServer_RateLimitMiddleware(t *testing.T) {
	server := newTestServer(&fakePipeline{})
	server.rateLimiter = NewRateLimiter(1, 0)

	handler := server.rateLimitMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("POST", "/api/parse", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	w := httptest.NewRecorder()
	handler(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestServer_RateLimitMiddleware_Disabled(t *testing.T) {
	server := newTestServer(&fakePipeline{})

	handler := server.rateLimitMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for range 5 {
		req := httptest.NewRequest("POST", "/api/parse", nil)
		w := httptest.NewRecorder()
		handler(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimiter_MinuteWindow(t *testing.T) {
	rl := NewRateLimiter(2, 0)

	require.Nil(t, rl.Check("client", 0))
	require.Nil(t, rl.Check("client", 0))

	err := rl.Check("client", 0)
	require.NotNil(t, err)
	assert.Equal(t, "minute", err.Type)
	assert.LessOrEqual(t, err.RetryAfter, time.Minute)

	// Other clients have their own window.
	assert.Nil(t, rl.Check("other", 0))
}

func TestRateLimiter_DataQuota(t *testing.T) {
	rl := NewRateLimiter(0, 100)

	require.Nil(t, rl.Check("client", 60))

	err := rl.Check("client", 60)
	require.NotNil(t, err)
	assert.Equal(t, "data", err.Type)
	assert.NotEmpty(t, err.RetryAfterHeader())

	// Smaller payloads still fit under the quota.
	assert.Nil(t, rl.Check("client", 40))
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		expected   string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "192.168.1.10:12345",
			expected:   "192.168.1.10",
		},
		{
			name:       "x-forwarded-for wins",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"},
			expected:   "203.0.113.5",
		},
		{
			name:       "x-real-ip fallback",
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{"X-Real-IP": "203.0.113.9"},
			expected:   "203.0.113.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, getClientIP(req))
		})
	}
}
