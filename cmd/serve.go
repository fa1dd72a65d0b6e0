package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"conduit-facade/config"
	"conduit-facade/internal/resilience"
	"conduit-facade/internal/server"
	"conduit-facade/internal/session"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var secureCookie bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the facade HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, secureCookie)
		},
	}
	cmd.Flags().BoolVar(&secureCookie, "secure-cookie", false, "mark the session cookie Secure (behind TLS)")
	return cmd
}

func runServe(ctx context.Context, opts *rootOptions, secureCookie bool) error {
	cfg, log := opts.cfg, opts.logger

	log.InfoContext(ctx, "configuration loaded",
		"port", cfg.Port,
		"conduit_api_url", cfg.ConduitAPIURL,
		"session_store", sessionStoreKind(cfg),
		"home_capacity", cfg.HomeCapacity)

	store, closeStore, err := openSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	srv, err := server.New(server.Config{
		ConduitAPIURL:   cfg.ConduitAPIURL,
		RequestTimeout:  cfg.RequestTimeout,
		FetchTimeout:    cfg.FetchTimeout,
		HomeCapacity:    cfg.HomeCapacity,
		TagsTTL:         cfg.TagsTTL,
		APIRateLimit:    cfg.APIRateLimit,
		APIRateBurst:    cfg.APIRateBurst,
		ClientRateLimit: cfg.ClientRateLimit,
		ClientRateBurst: cfg.ClientRateBurst,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.CBFailureThreshold,
			SuccessThreshold: cfg.CBSuccessThreshold,
			OpenTimeout:      cfg.CBOpenTimeout,
		},
		SessionStore: store,
		SessionTTL:   cfg.SessionTTL,
		SecureCookie: secureCookie,
	}, log)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}
	defer srv.Close()

	address := fmt.Sprintf(":%s", cfg.Port)
	httpServer := &http.Server{
		Addr:         address,
		Handler:      srv.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.FetchTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.InfoContext(ctx, "starting conduit-facade server", "address", address)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
	case <-ctx.Done():
	}
	log.InfoContext(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.InfoContext(ctx, "server exited properly")
	return nil
}

func sessionStoreKind(cfg *config.Config) string {
	if cfg.SessionRedisURL != "" {
		return "redis"
	}
	return "memory"
}

// openSessionStore picks Redis when SESSION_REDIS_URL is set and memory otherwise.
func openSessionStore(ctx context.Context, cfg *config.Config) (session.Store, func(), error) {
	if cfg.SessionRedisURL == "" {
		return session.NewMemoryStore(), func() {}, nil
	}

	password, err := cfg.LoadRedisPassword()
	if err != nil {
		return nil, nil, fmt.Errorf("load redis password: %w", err)
	}
	store, err := session.NewRedisStoreWithURL(cfg.SessionRedisURL, password)
	if err != nil {
		return nil, nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("session redis unreachable: %w", err)
	}
	return store, func() { _ = store.Close() }, nil
}
