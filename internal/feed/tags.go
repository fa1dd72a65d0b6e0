package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"conduit-facade/internal/metrics"
)

const (
	tagsURI        = "/tags"
	DefaultTagsTTL = 5 * time.Minute
)

// TagLoader caches the popular tag list. Tags are the same for every user,
// so one loader serves all sessions.
type TagLoader struct {
	getter Getter
	ttl    time.Duration
	now    func() time.Time
	group  singleflight.Group

	mu        sync.RWMutex
	tags      []string
	fetchedAt time.Time
}

// NewTagLoader creates a tag loader. A non-positive ttl uses DefaultTagsTTL.
func NewTagLoader(getter Getter, ttl time.Duration) *TagLoader {
	if ttl <= 0 {
		ttl = DefaultTagsTTL
	}
	return &TagLoader{
		getter: getter,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Tags returns the cached tag list, refetching once it is older than the TTL.
func (t *TagLoader) Tags(ctx context.Context) ([]string, error) {
	t.mu.RLock()
	tags, fetchedAt := t.tags, t.fetchedAt
	t.mu.RUnlock()

	if tags != nil && t.now().Sub(fetchedAt) < t.ttl {
		return tags, nil
	}

	ch := t.group.DoChan(tagsURI, func() (any, error) {
		return t.fetch(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]string), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops the cached list.
func (t *TagLoader) Invalidate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tags = nil
	t.fetchedAt = time.Time{}
}

func (t *TagLoader) fetch(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultFetchTimeout)
	defer cancel()

	start := time.Now()
	body, err := t.getter.Get(ctx, tagsURI, "")
	if err != nil {
		metrics.RecordFetch("tags", "error", time.Since(start))
		return nil, &FetchError{URI: tagsURI, Err: err}
	}
	metrics.RecordFetch("tags", "success", time.Since(start))

	var payload struct {
		Tags *[]string `json:"tags"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &FetchError{URI: tagsURI, Err: fmt.Errorf("decode tags: %w", err), Parse: true}
	}
	if payload.Tags == nil {
		return nil, &FetchError{URI: tagsURI, Err: errors.New("tags missing"), Parse: true}
	}

	tags := *payload.Tags
	if tags == nil {
		tags = []string{}
	}

	t.mu.Lock()
	t.tags = tags
	t.fetchedAt = t.now()
	t.mu.Unlock()

	return tags, nil
}
