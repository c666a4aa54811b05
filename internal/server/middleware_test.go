package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/anyset/internal/config"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func requestFrom(addr string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/datasets", nil)
	r.RemoteAddr = addr
	return r
}

func TestRateLimiter_AllowsBurst(t *testing.T) {
	h := RateLimiter(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 3})(okHandler)

	for i := range 3 {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, requestFrom("10.0.0.1:1234"))
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimiter_RejectsOverBurst(t *testing.T) {
	h := RateLimiter(config.RateLimitConfig{RequestsPerSecond: 0.5, Burst: 2})(okHandler)

	for range 2 {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, requestFrom("10.0.0.1:1234"))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, requestFrom("10.0.0.1:1234"))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	retry, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, retry, 1)
	assert.JSONEq(t, `{"code":"rate_limited","message":"rate limit exceeded"}`, w.Body.String())
}

func TestRateLimiter_PerClient(t *testing.T) {
	h := RateLimiter(config.RateLimitConfig{RequestsPerSecond: 0.5, Burst: 1})(okHandler)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, requestFrom("10.0.0.1:1234"))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, requestFrom("10.0.0.1:5678"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code, "same host, different port")

	w = httptest.NewRecorder()
	h.ServeHTTP(w, requestFrom("10.0.0.2:1234"))
	assert.Equal(t, http.StatusOK, w.Code, "other clients have their own bucket")
}

func TestRateLimiter_BurstDefaultsToRate(t *testing.T) {
	h := RateLimiter(config.RateLimitConfig{RequestsPerSecond: 2.5})(okHandler)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, requestFrom("10.0.0.1:1234"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
}

func TestRateLimiter_SweepsIdleClients(t *testing.T) {
	start := time.Now()
	rl := &rateLimiter{limit: 1, burst: 1, clients: make(map[string]*clientLimiter), swept: start}

	rl.get("10.0.0.1", start)
	rl.get("10.0.0.2", start.Add(staleAfter-time.Minute))
	require.Len(t, rl.clients, 2)

	rl.get("10.0.0.2", start.Add(staleAfter+2*time.Minute))
	assert.Len(t, rl.clients, 1)
	assert.Contains(t, rl.clients, "10.0.0.2")
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := RequestID(RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})))

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	r.Header.Set(RequestIDHeader, "abc")
	h.ServeHTTP(httptest.NewRecorder(), r)

	out := buf.String()
	assert.Contains(t, out, `"msg":"request"`)
	assert.Contains(t, out, `"request_id":"abc"`)
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"bytes":15`)
	assert.Contains(t, out, `"path":"/healthz"`)
}

func TestRequestID_RejectsOversizedID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = chimw.GetReqID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, string(bytes.Repeat([]byte("x"), maxRequestIDLen+1)))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Len(t, seen, 36)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
}
