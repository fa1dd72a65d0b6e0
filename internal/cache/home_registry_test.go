package cache

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conduit-facade/internal/domain"
	"conduit-facade/internal/view"
)

type nopGetter struct{}

func (nopGetter) Get(context.Context, string, string) ([]byte, error) {
	return []byte(`{"articles":[],"articlesCount":0}`), nil
}

func newTestRegistry(t *testing.T, size int) *HomeRegistry {
	t.Helper()
	r, err := NewHomeRegistry(size, func(sel domain.Selector) *view.Home {
		return view.NewHome(sel, nopGetter{}, nil)
	})
	require.NoError(t, err)
	return r
}

func TestNewHomeRegistry_InvalidSize(t *testing.T) {
	_, err := NewHomeRegistry(0, nil)
	assert.Error(t, err)
}

func TestHomeRegistry_GetCreatesOnce(t *testing.T) {
	r := newTestRegistry(t, 10)

	a := r.Get("s1", domain.SelectorGlobal)
	b := r.Get("s1", domain.SelectorGlobal)

	assert.Same(t, a, b)
	assert.Equal(t, domain.SelectorGlobal, a.Selector())
	assert.Equal(t, RegistryStats{Hits: 1, Misses: 1, Size: 1}, r.Stats())
}

func TestHomeRegistry_KeysAreIsolated(t *testing.T) {
	r := newTestRegistry(t, 10)

	global := r.Get("s1", domain.SelectorGlobal)
	tag := r.Get("s1", "rust")
	other := r.Get("s2", domain.SelectorGlobal)

	assert.NotSame(t, global, tag)
	assert.NotSame(t, global, other)
	assert.Equal(t, 3, r.Size())
}

func TestHomeRegistry_NewSelectorStartsAtFirstPage(t *testing.T) {
	r := newTestRegistry(t, 10)

	require.NoError(t, r.Get("s1", domain.SelectorGlobal).SetPage(4))
	assert.Equal(t, 0, r.Get("s1", "rust").Page())
	assert.Equal(t, 4, r.Get("s1", domain.SelectorGlobal).Page())
}

func TestHomeRegistry_EvictsLeastRecentlyUsed(t *testing.T) {
	r := newTestRegistry(t, 2)

	first := r.Get("s1", domain.SelectorGlobal)
	r.Get("s2", domain.SelectorGlobal)
	r.Get("s1", domain.SelectorGlobal) // touch
	r.Get("s3", domain.SelectorGlobal)

	_, ok := r.Peek("s2", domain.SelectorGlobal)
	assert.False(t, ok)
	kept, ok := r.Peek("s1", domain.SelectorGlobal)
	require.True(t, ok)
	assert.Same(t, first, kept)
}

func TestHomeRegistry_RemoveSession(t *testing.T) {
	r := newTestRegistry(t, 10)
	r.Get("s1", domain.SelectorGlobal)
	r.Get("s1", "rust")
	r.Get("s10", domain.SelectorGlobal)

	assert.Equal(t, 2, r.RemoveSession("s1"))
	assert.Equal(t, 1, r.Size())
	_, ok := r.Peek("s10", domain.SelectorGlobal)
	assert.True(t, ok)
}

func TestHomeRegistry_ConcurrentGet(t *testing.T) {
	r := newTestRegistry(t, 10)

	homes := make([]*view.Home, 50)
	var wg sync.WaitGroup
	for i := range homes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			homes[i] = r.Get("s1", domain.SelectorFeed)
		}(i)
	}
	wg.Wait()

	for _, h := range homes {
		assert.Same(t, homes[0], h)
	}
	assert.Equal(t, int64(1), r.Stats().Misses)
}

func TestBuildKey(t *testing.T) {
	assert.Equal(t, "abc|global", BuildKey("abc", domain.SelectorGlobal))
	assert.Equal(t, "abc|c++", BuildKey("abc", "c++"))
}
