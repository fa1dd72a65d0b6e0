// Package server wires the facade components into an HTTP server.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/time/rate"

	"conduit-facade/internal/cache"
	"conduit-facade/internal/client"
	"conduit-facade/internal/domain"
	"conduit-facade/internal/feed"
	"conduit-facade/internal/handler"
	"conduit-facade/internal/metrics"
	"conduit-facade/internal/middleware"
	"conduit-facade/internal/resilience"
	"conduit-facade/internal/session"
	"conduit-facade/internal/view"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "conduit-facade"

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// Config holds server configuration.
type Config struct {
	ConduitAPIURL  string
	RequestTimeout time.Duration
	FetchTimeout   time.Duration
	HomeCapacity   int
	TagsTTL        time.Duration

	APIRateLimit    float64
	APIRateBurst    int
	ClientRateLimit float64
	ClientRateBurst int

	CircuitBreaker resilience.CircuitBreakerConfig

	SessionStore session.Store
	SessionTTL   time.Duration
	SecureCookie bool

	// Transport overrides the outbound transport, mainly for tests.
	Transport http.RoundTripper
}

// Server is the facade HTTP server.
type Server struct {
	echo    *echo.Echo
	breaker *resilience.CircuitBreaker
	homes   *cache.HomeRegistry
	limiter *middleware.RateLimiter
}

// New builds the server and all its dependencies.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SessionStore == nil {
		cfg.SessionStore = session.NewMemoryStore()
	}

	breakerCfg := cfg.CircuitBreaker
	breakerCfg.OnStateChange = client.ObserveCircuit(logger)
	breaker := resilience.NewCircuitBreaker(breakerCfg)

	conduit := client.NewConduitClient(cfg.ConduitAPIURL, client.Options{
		RequestTimeout: cfg.RequestTimeout,
		RateLimit:      rate.Limit(cfg.APIRateLimit),
		RateBurst:      cfg.APIRateBurst,
		Breaker:        breaker,
		Transport:      cfg.Transport,
		Logger:         logger,
	})

	homes, err := cache.NewHomeRegistry(cfg.HomeCapacity, func(sel domain.Selector) *view.Home {
		return view.NewHome(sel, conduit, logger, feed.WithFetchTimeout(cfg.FetchTimeout))
	})
	if err != nil {
		return nil, err
	}

	sessions := session.NewManager(cfg.SessionStore, cfg.SessionTTL, logger)
	limiter := middleware.NewRateLimiter(rate.Limit(cfg.ClientRateLimit), cfg.ClientRateBurst)

	s := &Server{
		echo:    echo.New(),
		breaker: breaker,
		homes:   homes,
		limiter: limiter,
	}

	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(recordRequests())
	e.Use(middleware.SecurityHeaders())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Service: ServiceName})
	})
	e.GET("/v1/stats", s.stats)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api",
		limiter.Middleware(),
		middleware.NewSessionMiddleware(sessions, logger, cfg.SecureCookie).Middleware(),
	)
	tags := feed.NewTagLoader(conduit, cfg.TagsTTL)
	handler.NewFacadeHandler(homes, tags, sessions, logger, cfg.SecureCookie).Register(api)

	return s, nil
}

// Handler returns the server handler, accepting HTTP/2 without TLS (h2c).
func (s *Server) Handler() http.Handler {
	return h2c.NewHandler(s.echo, &http2.Server{})
}

// Close releases background resources. The session store is owned by the caller.
func (s *Server) Close() {
	s.limiter.Close()
}

// Stats holds statistics about facade components.
type Stats struct {
	Homes          cache.RegistryStats         `json:"homes"`
	CircuitBreaker CircuitBreakerStatsResponse `json:"circuit_breaker"`
}

// CircuitBreakerStatsResponse represents circuit breaker statistics in the API response.
type CircuitBreakerStatsResponse struct {
	State          string `json:"state"`
	TotalSuccesses int64  `json:"total_successes"`
	TotalFailures  int64  `json:"total_failures"`
	TotalRejected  int64  `json:"total_rejected"`
}

func (s *Server) stats(c echo.Context) error {
	cb := s.breaker.Stats()
	return c.JSON(http.StatusOK, Stats{
		Homes: s.homes.Stats(),
		CircuitBreaker: CircuitBreakerStatsResponse{
			State:          cb.State.String(),
			TotalSuccesses: cb.TotalSuccesses,
			TotalFailures:  cb.TotalFailures,
			TotalRejected:  cb.TotalRejected,
		},
	})
}

func recordRequests() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err != nil {
				// let echo write the error so the final status is known
				c.Error(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.RecordRequest(route, c.Request().Method, c.Response().Status)
			return nil
		}
	}
}
