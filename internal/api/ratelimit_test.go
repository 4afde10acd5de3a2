package api

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roboclaude/internal/config"
)

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote addr", "10.0.0.1:5555", nil, "10.0.0.1"},
		{"remote addr without port", "10.0.0.1", nil, "10.0.0.1"},
		{"forwarded single", "10.0.0.1:5555", map[string]string{"X-Forwarded-For": "203.0.113.7"}, "203.0.113.7"},
		{"forwarded chain", "10.0.0.1:5555", map[string]string{"X-Forwarded-For": " 203.0.113.7 , 10.0.0.2"}, "203.0.113.7"},
		{"real ip", "10.0.0.1:5555", map[string]string{"X-Real-IP": "198.51.100.4"}, "198.51.100.4"},
		{"forwarded wins", "10.0.0.1:5555", map[string]string{
			"X-Forwarded-For": "203.0.113.7",
			"X-Real-IP":       "198.51.100.4",
		}, "203.0.113.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, GetClientIP(r))
		})
	}
}

func TestIPRateLimiterBurst(t *testing.T) {
	rl := NewIPRateLimiter(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 3})

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("1.1.1.1"), "request %d", i)
	}
	assert.False(t, rl.Allow("1.1.1.1"))
	assert.True(t, rl.Allow("2.2.2.2"), "other IPs have their own bucket")

	stats := rl.GetStats()
	assert.Equal(t, uint64(4), stats["allowed"])
	assert.Equal(t, uint64(1), stats["rejected"])
}

func TestIPRateLimiterCleanup(t *testing.T) {
	rl := NewIPRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1})

	rl.Allow("1.1.1.1")
	rl.Allow("2.2.2.2")

	assert.Equal(t, 0, rl.cleanup(time.Now().Add(-time.Minute)))
	assert.Equal(t, 2, rl.cleanup(time.Now().Add(time.Minute)))
	assert.True(t, rl.Allow("1.1.1.1"), "fresh bucket after cleanup")
}

func TestIPRateLimiterStartStop(t *testing.T) {
	rl := NewIPRateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1, CleanupInterval: time.Millisecond})
	rl.Start()
	rl.Stop()
	rl.Stop()
}

func TestIPRateLimiterMiddlewareRejects(t *testing.T) {
	rl := NewIPRateLimiter(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1})
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	do := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "9.9.9.9:1"
		h.ServeHTTP(rec, r)
		return rec
	}

	assert.Equal(t, http.StatusTeapot, do().Code)

	rec := do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "too many requests")
}

func TestWebSocketRateLimiter(t *testing.T) {
	wrl := NewWebSocketRateLimiter(2)

	require.True(t, wrl.Allow("1.1.1.1"))
	require.True(t, wrl.Allow("1.1.1.1"))
	assert.False(t, wrl.Allow("1.1.1.1"))
	assert.Equal(t, 2, wrl.GetConnectionCount("1.1.1.1"))

	wrl.Release("1.1.1.1")
	assert.Equal(t, 1, wrl.GetConnectionCount("1.1.1.1"))
	assert.True(t, wrl.Allow("1.1.1.1"))

	wrl.Release("unknown")
	assert.Equal(t, 0, wrl.GetConnectionCount("unknown"))
}

func TestWebSocketRateLimiterConcurrent(t *testing.T) {
	wrl := NewWebSocketRateLimiter(10)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if wrl.Allow("1.1.1.1") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, allowed)
	assert.Equal(t, 10, wrl.GetConnectionCount("1.1.1.1"))
}

func TestOriginAllowed(t *testing.T) {
	patterns := []string{"http://localhost:*", "https://play.example.com"}

	tests := []struct {
		name     string
		origin   string
		patterns []string
		want     bool
	}{
		{"no origin", "", patterns, true},
		{"exact", "https://play.example.com", patterns, true},
		{"wildcard port", "http://localhost:5173", patterns, true},
		{"other host", "https://evil.example", patterns, false},
		{"scheme mismatch", "https://localhost:5173", patterns, false},
		{"allow all", "https://anything.example", []string{"*"}, true},
		{"no patterns", "https://play.example.com", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, originAllowed(tt.origin, tt.patterns))
		})
	}
}
