// Package client provides the HTTP client for the Conduit REST API.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"conduit-facade/internal/metrics"
	"conduit-facade/internal/resilience"
)

const (
	// AuthorizationScheme prefixes the user token in the Authorization header.
	AuthorizationScheme = "Token"
	// MaxBodyBytes caps how much of a response body is read.
	MaxBodyBytes = 8 << 20

	userAgent = "conduit-facade/1.0"
)

// StatusError is returned for a non-2xx API response.
type StatusError struct {
	StatusCode int
	// RetryAfter is the parsed Retry-After header in seconds, 0 when absent.
	RetryAfter int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("conduit api returned status %d", e.StatusCode)
}

// Options configures a ConduitClient. Zero values use defaults.
type Options struct {
	RequestTimeout time.Duration
	// RateLimit and RateBurst bound outbound requests. RateLimit <= 0 disables the limiter.
	RateLimit rate.Limit
	RateBurst int
	Breaker   *resilience.CircuitBreaker
	Transport http.RoundTripper
	Logger    *slog.Logger
}

// ConduitClient performs GET requests against the Conduit API.
type ConduitClient struct {
	baseURL        string
	httpClient     *http.Client
	requestTimeout time.Duration
	limiter        *rate.Limiter
	breaker        *resilience.CircuitBreaker
	logger         *slog.Logger
}

// NewConduitClient creates a client for the API rooted at baseURL
// (for example https://api.realworld.io/api).
func NewConduitClient(baseURL string, opts Options) *ConduitClient {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(opts.RateLimit, burst)
	}

	return &ConduitClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: opts.Transport,
			// per-request deadlines come from the context
		},
		requestTimeout: opts.RequestTimeout,
		limiter:        limiter,
		breaker:        opts.Breaker,
		logger:         opts.Logger,
	}
}

// Get fetches requestURI and returns the body of a 2xx response.
// The Authorization header is only sent when token is non-empty.
func (c *ConduitClient) Get(ctx context.Context, requestURI, token string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	if c.breaker == nil {
		return c.do(ctx, requestURI, token)
	}
	return resilience.Execute(c.breaker, func() ([]byte, error) {
		return c.do(ctx, requestURI, token)
	}, countsAgainstCircuit)
}

// Breaker returns the circuit breaker guarding the client, if any.
func (c *ConduitClient) Breaker() *resilience.CircuitBreaker {
	return c.breaker
}

// BuildURL joins the base URL and a request URI.
func (c *ConduitClient) BuildURL(requestURI string) string {
	if strings.HasPrefix(requestURI, "/") {
		return c.baseURL + requestURI
	}
	return c.baseURL + "/" + requestURI
}

func (c *ConduitClient) do(ctx context.Context, requestURI, token string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BuildURL(requestURI), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if token != "" {
		req.Header.Set("Authorization", AuthorizationScheme+" "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", requestURI, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.DebugContext(ctx, "conduit api error response",
			"uri", requestURI,
			"status", resp.StatusCode)
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Body:       truncate(string(body), 512),
		}
	}
	return body, nil
}

// countsAgainstCircuit treats transport errors and 5xx as API failures.
// 4xx responses are caller problems and leave the breaker alone.
func countsAgainstCircuit(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500
	}
	return !errors.Is(err, context.Canceled)
}

// ObserveCircuit returns a state-change hook that logs transitions and
// updates the breaker gauge.
func ObserveCircuit(logger *slog.Logger) resilience.StateChangeFunc {
	return func(from, to resilience.CircuitState) {
		metrics.SetCircuitState(int(to))
		if logger != nil {
			logger.Warn("conduit api circuit state changed", "from", from.String(), "to", to.String())
		}
	}
}

func parseRetryAfter(v string) int {
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
		return seconds
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
