package pcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-sif/atlasgen/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, RetentionStore) {
	mr := miniredis.RunT(t)
	store := NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), ttl)
	t.Cleanup(func() { _ = store.Close() })
	return mr, store
}

func TestRedisRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, store := newTestRedis(t, 0)

	require.Nil(t, store.Put(ctx, "lineSliced", 0, []byte("zero")))
	require.Nil(t, store.Put(ctx, "lineSliced", 1, []byte("one")))
	require.Nil(t, store.Put(ctx, "raw", 0, []byte("raw")))
	data, err := store.Get(ctx, "lineSliced", 1)
	require.Nil(t, err)
	require.Equal(t, []byte("one"), data)

	_, err = store.Get(ctx, "lineSliced", 2)
	require.True(t, errors.IsNotRetained(err))

	members, err := mr.SMembers(redisIndexKey("lineSliced"))
	require.Nil(t, err)
	require.ElementsMatch(t, []string{redisPartitionKey("lineSliced", 0), redisPartitionKey("lineSliced", 1)}, members)
	require.Equal(t, time.Duration(0), mr.TTL(redisIndexKey("lineSliced")))

	require.Nil(t, store.Drop(ctx, "lineSliced"))
	_, err = store.Get(ctx, "lineSliced", 0)
	require.True(t, errors.IsNotRetained(err))
	require.False(t, mr.Exists(redisIndexKey("lineSliced")))
	require.False(t, mr.Exists(redisPartitionKey("lineSliced", 1)))

	// other collections are untouched
	data, err = store.Get(ctx, "raw", 0)
	require.Nil(t, err)
	require.Equal(t, []byte("raw"), data)

	// dropping an unknown collection is a no-op
	require.Nil(t, store.Drop(ctx, "unknown"))
}

func TestRedisExpiry(t *testing.T) {
	ctx := context.Background()
	mr, store := newTestRedis(t, time.Minute)

	require.Nil(t, store.Put(ctx, "edges", 0, []byte("edges")))
	require.Equal(t, time.Minute, mr.TTL(redisPartitionKey("edges", 0)))
	require.Equal(t, time.Minute, mr.TTL(redisIndexKey("edges")))

	mr.FastForward(2 * time.Minute)
	_, err := store.Get(ctx, "edges", 0)
	require.True(t, errors.IsNotRetained(err))
	require.False(t, mr.Exists(redisIndexKey("edges")))
}
