package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Get(ctx, KeyAccessToken)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, KeyAccessToken, "tok"))
	v, err := store.Get(ctx, KeyAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "tok", v)

	require.NoError(t, store.Delete(ctx, KeyAccessToken, KeyRefreshToken))
	_, err = store.Get(ctx, KeyAccessToken)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNamespacedIsolation(t *testing.T) {
	ctx := context.Background()
	shared := NewMemoryStore()

	a := Namespaced(shared, "session:a")
	b := Namespaced(shared, "session:b")

	require.NoError(t, a.Set(ctx, KeyUser, "alice"))
	require.NoError(t, b.Set(ctx, KeyUser, "bruno"))

	va, err := a.Get(ctx, KeyUser)
	require.NoError(t, err)
	vb, err := b.Get(ctx, KeyUser)
	require.NoError(t, err)
	assert.Equal(t, "alice", va)
	assert.Equal(t, "bruno", vb)

	require.NoError(t, a.Delete(ctx, KeyUser))
	_, err = a.Get(ctx, KeyUser)
	assert.ErrorIs(t, err, ErrNotFound)

	vb, err = b.Get(ctx, KeyUser)
	require.NoError(t, err)
	assert.Equal(t, "bruno", vb)
}
