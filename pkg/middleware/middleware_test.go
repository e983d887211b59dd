package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"stream-resolver-go/pkg/config"
	"stream-resolver-go/pkg/logging"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("X-Request-ID")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/resolve", nil))
	_, err := uuid.Parse(seen)
	require.NoError(t, err, "generated id should be a uuid")
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/api/resolve", nil)
	req.Header.Set("X-Request-ID", "caller-id")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "caller-id", rec.Header().Get("X-Request-ID"))
}

func TestCheckPassword(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		header string
		bearer string
		want   bool
	}{
		{"query", "?api_password=secret123", "", "", true},
		{"wrong query", "?api_password=wrong", "", "", false},
		{"header", "", "secret123", "", true},
		{"bearer", "", "", "secret123", true},
		{"wrong bearer", "", "", "wrong", false},
		{"nothing", "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/resolve"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("X-API-Password", tt.header)
			}
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}
			assert.Equal(t, tt.want, CheckPassword(req, "secret123"))
		})
	}
}

func TestAuth(t *testing.T) {
	log := logging.Discard()

	tests := []struct {
		name     string
		password string
		path     string
		want     int
	}{
		{"no password configured", "", "/api/resolve", http.StatusOK},
		{"protected without password", "secret", "/api/resolve", http.StatusUnauthorized},
		{"health is public", "secret", "/health", http.StatusOK},
		{"metrics is public", "secret", "/metrics", http.StatusOK},
		{"query password", "secret", "/api/resolve?api_password=secret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Auth(&config.Config{APIPassword: tt.password}, log)(ok)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(0.001, 2, logging.Discard())(ok)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/resolve?channel=x", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodGet, "/api/resolve?channel=x", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "limits are per client")

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "health is never limited")
}

func TestClientLimiters_EvictsIdleClients(t *testing.T) {
	c := newClientLimiters(rate.Limit(10), 5)
	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }
	c.lastCleanup = now

	c.get("10.0.0.1")
	c.get("10.0.0.2")
	require.Len(t, c.limiters, 2)

	now = now.Add(c.ttl / 2)
	c.get("10.0.0.2")

	now = now.Add(c.ttl/2 + limiterSweepGap)
	c.get("10.0.0.3")
	assert.NotContains(t, c.limiters, "10.0.0.1", "idle client should be evicted")
	assert.Contains(t, c.limiters, "10.0.0.2")
	assert.Contains(t, c.limiters, "10.0.0.3")

	// No sweep before the interval elapses.
	now = now.Add(c.ttl + time.Second)
	c.lastCleanup = now
	c.get("10.0.0.4")
	assert.Len(t, c.limiters, 3)
}

func TestClientLimiters_TTLCoversRefill(t *testing.T) {
	c := newClientLimiters(rate.Limit(0.001), 2)
	assert.InDelta(t, float64(2000*time.Second), float64(c.ttl), float64(time.Millisecond))
	assert.Equal(t, limiterIdleTTL, newClientLimiters(rate.Limit(10), 5).ttl)
}

func TestRateLimit_Disabled(t *testing.T) {
	h := RateLimit(0, 0, logging.Discard())(ok)
	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/resolve", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLoggingAttachesRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New("info", false, &buf)

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.FromContext(r.Context()).Info("inside handler")
	}), RequestID, Logging(log))

	req := httptest.NewRequest(http.MethodGet, "/api/resolve", nil)
	req.Header.Set("X-Request-ID", "req-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, "inside handler")
	assert.Contains(t, out, "request_id=req-42")
	assert.Contains(t, out, "path=/api/resolve")
}

func TestCORSPreflight(t *testing.T) {
	rec := httptest.NewRecorder()
	CORS(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/resolve", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
