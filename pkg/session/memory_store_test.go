package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	sid, err := store.Create(ctx, 7, time.Hour)
	require.NoError(t, err)

	userID, err := store.Get(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, uint(7), userID)

	require.NoError(t, store.Revoke(ctx, sid))
	_, err = store.Get(ctx, sid)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStoreRevokeUser(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	a, _ := store.Create(ctx, 1, time.Hour)
	b, _ := store.Create(ctx, 1, time.Hour)
	other, _ := store.Create(ctx, 2, time.Hour)

	require.NoError(t, store.RevokeUser(ctx, 1))

	for _, sid := range []string{a, b} {
		_, err := store.Get(ctx, sid)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	}
	userID, err := store.Get(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, uint(2), userID)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	sid, err := store.Create(ctx, 3, time.Minute)
	require.NoError(t, err)

	store.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = store.Get(ctx, sid)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
