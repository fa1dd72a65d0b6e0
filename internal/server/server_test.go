package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conduit-facade/internal/resilience"
)

func newTestServer(t *testing.T, api http.Handler) (http.Handler, *Server) {
	t.Helper()

	backend := httptest.NewServer(api)
	t.Cleanup(backend.Close)

	srv, err := New(Config{
		ConduitAPIURL:   backend.URL + "/api",
		RequestTimeout:  2 * time.Second,
		FetchTimeout:    2 * time.Second,
		HomeCapacity:    8,
		TagsTTL:         time.Minute,
		ClientRateLimit: 1000,
		ClientRateBurst: 1000,
		SessionTTL:      time.Hour,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			FailureThreshold: 2,
			SuccessThreshold: 1,
			OpenTimeout:      time.Minute,
		},
		Transport: http.DefaultTransport,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	return srv.Handler(), srv
}

func okAPI() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api/tags" {
			_, _ = w.Write([]byte(`{"tags":["go"]}`))
			return
		}
		_, _ = w.Write([]byte(`{"articles":[],"articlesCount":0}`))
	})
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestNew_InvalidCapacity(t *testing.T) {
	_, err := New(Config{ConduitAPIURL: "http://localhost/api", HomeCapacity: 0}, nil)
	assert.Error(t, err)
}

func TestServer_HealthEndpoint(t *testing.T) {
	h, _ := newTestServer(t, okAPI())

	rec := get(h, "/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "conduit-facade", resp.Service)
}

func TestServer_HomeFlow(t *testing.T) {
	h, _ := newTestServer(t, okAPI())

	rec := get(h, "/api/home?wait=true")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	cookie := rec.Result().Cookies()
	require.Len(t, cookie, 1)
	assert.Equal(t, "conduit_session", cookie[0].Name)
}

func TestServer_StatsEndpoint(t *testing.T) {
	h, _ := newTestServer(t, okAPI())

	get(h, "/api/home?wait=true")
	rec := get(h, "/v1/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Homes.Size)
	assert.Equal(t, int64(1), stats.Homes.Misses)
	assert.Equal(t, "CLOSED", stats.CircuitBreaker.State)
	assert.Equal(t, int64(1), stats.CircuitBreaker.TotalSuccesses)
}

func TestServer_CircuitOpensOnUpstreamFailures(t *testing.T) {
	var hits atomic.Int32
	h, srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	// distinct tags so each request misses the loader cache
	for _, tag := range []string{"a", "b"} {
		rec := get(h, "/api/home?wait=true&feed="+tag)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	}
	assert.Equal(t, resilience.StateOpen, srv.breaker.State())

	rec := get(h, "/api/home?wait=true&feed=c")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "SERVICE_UNAVAILABLE")
	assert.Equal(t, int32(2), hits.Load())
}

func TestServer_MetricsEndpoint(t *testing.T) {
	h, _ := newTestServer(t, okAPI())
	get(h, "/health")

	rec := get(h, "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "conduit_facade_http_requests_total"), "request counter exported")
}

func TestServer_ClientRateLimit(t *testing.T) {
	backend := httptest.NewServer(okAPI())
	defer backend.Close()

	srv, err := New(Config{
		ConduitAPIURL:   backend.URL + "/api",
		HomeCapacity:    8,
		SessionTTL:      time.Hour,
		ClientRateLimit: 1,
		ClientRateBurst: 1,
	}, nil)
	require.NoError(t, err)
	defer srv.Close()
	h := srv.Handler()

	assert.Equal(t, http.StatusOK, get(h, "/api/header").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(h, "/api/header").Code)
	assert.Equal(t, http.StatusOK, get(h, "/health").Code, "health is not rate limited")
}
