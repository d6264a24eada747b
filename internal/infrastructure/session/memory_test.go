package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_ScopedPerSession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Minute)
	a := store.Scoped("session-a")
	b := store.Scoped("session-b")

	require.NoError(t, a.Set(ctx, "key", "order_1"))

	got, ok, err := a.Get(ctx, "key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "order_1", got)

	_, ok, err = b.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_Expires(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := NewMemoryStore(time.Minute)
	store.now = func() time.Time { return now }
	s := store.Scoped("session")

	require.NoError(t, s.Set(ctx, "key", "order_1"))
	now = now.Add(time.Minute)

	_, ok, err := s.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_Clear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Minute).Scoped("session")

	require.NoError(t, s.Set(ctx, "key", "order_1"))
	require.NoError(t, s.Clear(ctx, "key"))

	_, ok, err := s.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok)
}
