package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"conduit-facade/internal/domain"
	"conduit-facade/internal/metrics"
)

// DefaultFetchTimeout bounds a single API fetch.
const DefaultFetchTimeout = 15 * time.Second

// Snapshot is a non-blocking view of a loader.
type Snapshot struct {
	Key    domain.FeedKey
	HasKey bool
	State  domain.LoadState
	Result *domain.FeedResult
	// Err is the last fetch failure for Key, cleared when a new fetch starts.
	Err error
}

// Loader caches one feed page, keyed by selector and page number.
//
// Concurrent loads of the same key share one API request. Loading a different
// key drops the cached page first. Every reset starts a new generation: a
// response from an older generation goes back to its callers but is not
// cached, and a Load after Invalidate never joins a flight started before it.
type Loader struct {
	getter       Getter
	logger       *slog.Logger
	fetchTimeout time.Duration
	group        singleflight.Group

	mu     sync.Mutex
	key    domain.FeedKey
	hasKey bool
	gen    uint64
	state  domain.LoadState
	result *domain.FeedResult
	err    error
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the loader logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithFetchTimeout sets the per-fetch timeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(l *Loader) {
		if d > 0 {
			l.fetchTimeout = d
		}
	}
}

// NewLoader creates an empty loader.
func NewLoader(getter Getter, opts ...Option) *Loader {
	l := &Loader{
		getter:       getter,
		logger:       slog.Default(),
		fetchTimeout: DefaultFetchTimeout,
		state:        domain.LoadStateEmpty,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the page for (selector, page), fetching it on a cache miss.
// The returned result is shared and must not be modified.
func (l *Loader) Load(ctx context.Context, selector domain.Selector, page int, token string) (*domain.FeedResult, error) {
	key := domain.FeedKey{Selector: selector, Page: page}
	if err := key.Validate(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	if !l.hasKey || l.key != key {
		l.resetLocked()
		l.key = key
		l.hasKey = true
	}
	if l.state == domain.LoadStateLoaded {
		result := l.result
		l.mu.Unlock()
		metrics.RecordLookup("hit")
		return result, nil
	}
	l.state = domain.LoadStatePending
	l.err = nil
	gen := l.gen
	l.mu.Unlock()
	metrics.RecordLookup("miss")

	flight := fmt.Sprintf("%s#%d", key, gen)
	ch := l.group.DoChan(flight, func() (any, error) {
		return l.fetch(ctx, key, gen, token)
	})

	select {
	case res := <-ch:
		var result *domain.FeedResult
		if res.Err == nil {
			result = res.Val.(*domain.FeedResult)
		}
		// a joined flight may have settled before this caller re-took the key
		l.settle(key, gen, result, res.Err)
		if res.Err != nil {
			return nil, res.Err
		}
		return result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops the cached page. The next Load fetches again.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetLocked()
}

// Snapshot reports the loader state without blocking.
func (l *Loader) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{
		Key:    l.key,
		HasKey: l.hasKey,
		State:  l.state,
		Result: l.result,
		Err:    l.err,
	}
}

func (l *Loader) resetLocked() {
	l.gen++
	l.state = domain.LoadStateEmpty
	l.result = nil
	l.err = nil
}

// fetch runs once per flight. It is detached from the first caller's
// cancellation so joined callers are not failed by it.
func (l *Loader) fetch(ctx context.Context, key domain.FeedKey, gen uint64, token string) (*domain.FeedResult, error) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.fetchTimeout)
	defer cancel()

	uri := RequestURI(key)
	start := time.Now()

	var result *domain.FeedResult
	body, err := l.getter.Get(fetchCtx, uri, token)
	if err != nil {
		err = &FetchError{URI: uri, Err: err}
	} else if result, err = decodeFeed(body); err != nil {
		err = &FetchError{URI: uri, Err: err, Parse: true}
	}

	status := "success"
	if err != nil {
		status = "error"
		l.logger.WarnContext(ctx, "feed fetch failed",
			"selector", key.Selector.String(),
			"page", key.Page,
			"authenticated", token != "",
			"error", err)
	} else {
		l.logger.DebugContext(ctx, "feed fetched",
			"selector", key.Selector.String(),
			"page", key.Page,
			"articles", len(result.Articles),
			"total", result.Total,
			"duration", time.Since(start))
	}
	metrics.RecordFetch(key.Selector.Kind(), status, time.Since(start))

	if !l.settle(key, gen, result, err) {
		l.logger.DebugContext(ctx, "discarding stale feed response", "key", key.String())
	}
	return result, err
}

// settle stores the outcome of a flight if its key and generation are still
// current and the page has not been stored yet. It reports whether they were.
func (l *Loader) settle(key domain.FeedKey, gen uint64, result *domain.FeedResult, err error) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.hasKey || l.key != key || l.gen != gen {
		return false
	}
	if l.state == domain.LoadStateLoaded {
		return true
	}
	if err != nil {
		l.state = domain.LoadStateEmpty
		l.result = nil
		l.err = err
		return true
	}
	l.state = domain.LoadStateLoaded
	l.result = result
	l.err = nil
	return true
}

type feedPayload struct {
	Articles      []domain.Article `json:"articles"`
	ArticlesCount *int             `json:"articlesCount"`
}

func decodeFeed(body []byte) (*domain.FeedResult, error) {
	var payload feedPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	if payload.ArticlesCount == nil {
		return nil, errors.New("articlesCount missing")
	}
	if *payload.ArticlesCount < 0 {
		return nil, fmt.Errorf("articlesCount is negative: %d", *payload.ArticlesCount)
	}

	articles := payload.Articles
	if articles == nil {
		articles = []domain.Article{}
	}
	return &domain.FeedResult{Articles: articles, Total: *payload.ArticlesCount}, nil
}
