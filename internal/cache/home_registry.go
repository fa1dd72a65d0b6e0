// Package cache keeps the per-session home views.
package cache

import (
	"strings"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"conduit-facade/internal/domain"
	"conduit-facade/internal/view"
)

// RegistryStats holds registry statistics.
type RegistryStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Size   int   `json:"size"`
}

// HomeFactory builds a Home for a selector on a registry miss.
type HomeFactory func(selector domain.Selector) *view.Home

// HomeRegistry is a bounded LRU of Homes keyed by session and selector.
// Evicting a Home drops its cached feed page.
type HomeRegistry struct {
	homes   *lru.Cache[string, *view.Home]
	factory HomeFactory
	// serializes miss handling so one key never gets two Homes
	createMu sync.Mutex

	hits   atomic.Int64
	misses atomic.Int64
}

// NewHomeRegistry creates a registry holding at most size Homes.
func NewHomeRegistry(size int, factory HomeFactory) (*HomeRegistry, error) {
	homes, err := lru.New[string, *view.Home](size)
	if err != nil {
		return nil, err
	}
	return &HomeRegistry{homes: homes, factory: factory}, nil
}

// Get returns the Home for (sessionID, selector), creating it on a miss.
func (r *HomeRegistry) Get(sessionID string, selector domain.Selector) *view.Home {
	key := BuildKey(sessionID, selector)
	if home, ok := r.homes.Get(key); ok {
		r.hits.Add(1)
		return home
	}

	r.createMu.Lock()
	defer r.createMu.Unlock()
	if home, ok := r.homes.Get(key); ok {
		r.hits.Add(1)
		return home
	}
	r.misses.Add(1)
	home := r.factory(selector)
	r.homes.Add(key, home)
	return home
}

// Peek returns the Home without creating one or touching recency.
func (r *HomeRegistry) Peek(sessionID string, selector domain.Selector) (*view.Home, bool) {
	return r.homes.Peek(BuildKey(sessionID, selector))
}

// RemoveSession drops every Home belonging to sessionID.
func (r *HomeRegistry) RemoveSession(sessionID string) int {
	prefix := sessionID + "|"
	removed := 0
	for _, key := range r.homes.Keys() {
		if strings.HasPrefix(key, prefix) && r.homes.Remove(key) {
			removed++
		}
	}
	return removed
}

// Size returns the number of Homes held.
func (r *HomeRegistry) Size() int {
	return r.homes.Len()
}

// Stats returns registry statistics.
func (r *HomeRegistry) Stats() RegistryStats {
	return RegistryStats{
		Hits:   r.hits.Load(),
		Misses: r.misses.Load(),
		Size:   r.homes.Len(),
	}
}

// BuildKey creates a registry key from a session ID and selector.
func BuildKey(sessionID string, selector domain.Selector) string {
	return sessionID + "|" + string(selector)
}
