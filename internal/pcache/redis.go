package pcache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-sif/atlasgen/errors"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "atlasgen:"

// redisStore is a RetentionStore backed by a shared Redis instance, so that retained
// partitions survive worker restarts
type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis produces a RetentionStore from a redis:// URL. Retained partitions expire after
// ttl, or never if ttl is zero.
func NewRedis(url string, ttl time.Duration) (RetentionStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url %s: %w", url, err)
	}
	return NewRedisFromClient(redis.NewClient(opts), ttl), nil
}

// NewRedisFromClient produces a RetentionStore from an existing client
func NewRedisFromClient(client *redis.Client, ttl time.Duration) RetentionStore {
	return &redisStore{client: client, ttl: ttl}
}

func redisIndexKey(collection string) string {
	return redisKeyPrefix + collection
}

func redisPartitionKey(collection string, part int) string {
	return redisKeyPrefix + collection + ":" + strconv.Itoa(part)
}

func (r *redisStore) Put(ctx context.Context, collection string, part int, data []byte) error {
	key := redisPartitionKey(collection, part)
	index := redisIndexKey(collection)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, r.ttl)
		pipe.SAdd(ctx, index, key)
		if r.ttl > 0 {
			pipe.Expire(ctx, index, r.ttl)
		}
		return nil
	})
	return err
}

func (r *redisStore) Get(ctx context.Context, collection string, part int) ([]byte, error) {
	key := redisPartitionKey(collection, part)
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, errors.NotRetainedError{Key: key}
	} else if err != nil {
		return nil, err
	}
	return data, nil
}

func (r *redisStore) Drop(ctx context.Context, collection string) error {
	index := redisIndexKey(collection)
	keys, err := r.client.SMembers(ctx, index).Result()
	if err != nil {
		return err
	}
	return r.client.Del(ctx, append(keys, index)...).Err()
}

func (r *redisStore) Close() error {
	return r.client.Close()
}
