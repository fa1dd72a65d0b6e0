package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conduit-facade/internal/domain"
)

func TestMemoryStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	s := &domain.Session{ID: "s1", Token: "tok", Username: "jake"}
	require.NoError(t, store.Put(ctx, s))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "tok", got.Token)

	// returned sessions are copies
	got.Token = "changed"
	again, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "tok", again.Token)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Put(ctx, &domain.Session{ID: "s1", ExpiresAt: now.Add(time.Minute)}))
	_, err := store.Get(ctx, "s1")
	require.NoError(t, err)

	now = now.Add(time.Minute)
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, store.Len())
}
