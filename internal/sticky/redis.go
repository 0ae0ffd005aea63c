package sticky

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// RedisStore is a Redis-backed sticky store using SETNX for atomic
// first-write-wins, generalized from dedup.AtomicRedisStore to composite
// product/namespace/name keys and Claim documents with no TTL by default
// (a sticky placement should outlive any dedup window).
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore dials addr and verifies connectivity before returning.
func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

func redisKey(key Key) string {
	return "sticky:" + key.String()
}

func (r *RedisStore) Get(ctx context.Context, key Key) (*unstructured.Unstructured, error) {
	data, err := r.client.Get(ctx, redisKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET failed: %w", err)
	}
	return unmarshalClaim(data)
}

// Set attempts SETNX; on loss it fetches and returns the claim that won the
// race so callers observe first-write-wins semantics either way.
func (r *RedisStore) Set(ctx context.Context, key Key, claim *unstructured.Unstructured) (*unstructured.Unstructured, bool, error) {
	data, err := marshalClaim(claim)
	if err != nil {
		return nil, false, fmt.Errorf("marshal claim: %w", err)
	}

	wasSet, err := r.client.SetNX(ctx, redisKey(key), data, r.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis SETNX failed: %w", err)
	}
	if wasSet {
		return claim, true, nil
	}

	winner, err := r.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	return winner, false, nil
}

func (r *RedisStore) Delete(ctx context.Context, key Key) error {
	if err := r.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis DEL failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
