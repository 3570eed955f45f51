package token_test

import (
	"context"
	"testing"
	"time"

	"github.com/jrsteele09/go-wecom-suite/token"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestCorpCacheEntriesAreIndependent(t *testing.T) {
	withFrozenClock(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	cache := token.NewCorpCache()
	cache.Put("corpA", token.New("C1", time.Hour))
	cache.Put("corpB", token.New("C2", time.Hour))

	got, ok := cache.Get("corpA")
	require.True(t, ok)
	require.Equal(t, "C1", got.Credential())

	got, ok = cache.Get("corpB")
	require.True(t, ok)
	require.Equal(t, "C2", got.Credential())

	cache.Drop("corpB")
	_, ok = cache.Get("corpB")
	require.False(t, ok)

	got, ok = cache.Get("corpA")
	require.True(t, ok)
	require.Equal(t, "C1", got.Credential())
}

func TestCorpCacheExpiredEntryIsAMiss(t *testing.T) {
	issued := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	setNow := withFrozenClock(t, issued)

	cache := token.NewCorpCache()
	cache.Put("corpA", token.New("C1", 60*time.Second))

	_, ok := cache.Get("corpA")
	require.True(t, ok)

	setNow(issued.Add(55 * time.Second))
	_, ok = cache.Get("corpA")
	require.False(t, ok)

	// stale entry stays until overwritten; it is just never returned
	require.Equal(t, 1, cache.Len())
}

func TestCorpCacheMissOnUnknownTenant(t *testing.T) {
	cache := token.NewCorpCache()
	_, ok := cache.Get("corpA")
	require.False(t, ok)
}

func TestInMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := token.NewInMemoryStore(zerolog.Nop())

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, snap)

	require.NoError(t, store.Save(ctx, &token.Snapshot{Credential: "T1", ExpiresAt: 1700000000}))

	snap, err = store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	require.Equal(t, "T1", snap.Credential)
	require.Equal(t, int64(1700000000), snap.ExpiresAt)

	// nil save erases
	require.NoError(t, store.Save(ctx, nil))
	snap, err = store.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, snap)
}
