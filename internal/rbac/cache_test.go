package rbac

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestCacheFetchPopulatesOnce(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "user", "u1")
	require.NoError(t, err)
	require.Equal(t, "rbac:user:u1:1", key)

	calls := 0
	loader := func(context.Context) ([]Permission, error) {
		calls++
		return []Permission{perm("p", CategoryUsers, ActionRead, "users")}, nil
	}
	first, err := cache.FetchPermissions(ctx, key, loader)
	require.NoError(t, err)
	second, err := cache.FetchPermissions(ctx, key, loader)
	require.NoError(t, err)

	require.Equal(t, 1, calls)
	require.Equal(t, first, second)
	require.True(t, mr.Exists(key))
	require.Equal(t, time.Minute, mr.TTL(key))
}

func TestCacheBumpChangesKeys(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	before, err := cache.BuildKey(ctx, "user", "u1")
	require.NoError(t, err)
	require.NoError(t, cache.Bump(ctx))
	after, err := cache.BuildKey(ctx, "user", "u1")
	require.NoError(t, err)

	require.NotEqual(t, before, after)
	require.Equal(t, "rbac:user:u1:2", after)
	version, err := mr.Get(cacheVersionKey)
	require.NoError(t, err)
	require.Equal(t, "2", version)
	require.Equal(t, []string{cacheVersionKey}, mr.Keys())
}

func TestCacheLoaderErrorIsNotStored(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := cache.FetchPermissions(ctx, "rbac:user:x:1", func(context.Context) ([]Permission, error) {
		return nil, boom
	})
	require.ErrorIs(t, err, boom)
	require.False(t, mr.Exists("rbac:user:x:1"))
}

func TestCacheWithoutClientPassesThrough(t *testing.T) {
	cache := NewCache(nil, time.Minute)
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "user", "u1")
	require.NoError(t, err)
	require.Equal(t, "rbac:user:u1", key)

	calls := 0
	for i := 0; i < 2; i++ {
		_, err := cache.FetchPermissions(ctx, key, func(context.Context) ([]Permission, error) {
			calls++
			return nil, nil
		})
		require.NoError(t, err)
	}
	require.Equal(t, 2, calls)
	require.NoError(t, cache.Bump(ctx))
}

func TestCacheWriteFailureKeepsLoadedSet(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	key, err := cache.BuildKey(ctx, "user", "u1")
	require.NoError(t, err)

	calls := 0
	got, err := cache.FetchPermissions(ctx, key, func(context.Context) ([]Permission, error) {
		calls++
		mr.SetError("READONLY replica")
		return []Permission{perm("p", CategoryUsers, ActionRead, "users")}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.Len(t, got, 1)

	mr.SetError("")
	require.False(t, mr.Exists(key))
}

func TestCacheReadFailureIsUnavailable(t *testing.T) {
	cache, mr := newTestCache(t)
	mr.SetError("LOADING")

	calls := 0
	_, err := cache.FetchPermissions(context.Background(), "rbac:user:u1:1", func(context.Context) ([]Permission, error) {
		calls++
		return nil, nil
	})
	require.ErrorIs(t, err, ErrCacheUnavailable)
	require.Zero(t, calls)
}

func TestCacheCorruptEntryIsUnavailable(t *testing.T) {
	cache, mr := newTestCache(t)
	require.NoError(t, mr.Set("rbac:user:u1:1", "{not json"))

	_, err := cache.FetchPermissions(context.Background(), "rbac:user:u1:1", func(context.Context) ([]Permission, error) {
		return nil, nil
	})
	require.ErrorIs(t, err, ErrCacheUnavailable)
}
