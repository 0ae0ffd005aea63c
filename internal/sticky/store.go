// Package sticky provides idempotent placement storage: the first Claim
// built for a given (product, namespace, name) wins, and every later create
// call returns that Claim unchanged instead of re-scheduling. Generalized
// from the teacher's dedup store (a flat pcsID -> VerifyResult map) to a
// composite-keyed product -> Claim map with the same three backends.
package sticky

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cellforge/idp-controlplane/internal/cache"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Key identifies a sticky placement slot.
type Key struct {
	Product   string
	Namespace string
	Name      string
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Product, k.Namespace, k.Name)
}

// Store is the sticky placement backend contract. Set is first-write-wins:
// once a Claim exists for a key, later Set calls are no-ops.
type Store interface {
	Get(ctx context.Context, key Key) (*unstructured.Unstructured, error)
	Set(ctx context.Context, key Key, claim *unstructured.Unstructured) (stored *unstructured.Unstructured, wasSet bool, err error)
	Delete(ctx context.Context, key Key) error
	Close() error
}

// CachedStore wraps a Store with a short-TTL read-through LRU cache for hot
// sticky lookups, generalized from cache.LRUWithTTL.
type CachedStore struct {
	backend Store
	cache   *cache.LRUWithTTL[string, *unstructured.Unstructured]
}

// NewCachedStore wraps backend with an LRU-with-TTL cache of the given size.
func NewCachedStore(backend Store, size int, ttlSeconds int) (*CachedStore, error) {
	c, err := cache.NewLRUWithTTL[string, *unstructured.Unstructured](size, secondsToDuration(ttlSeconds))
	if err != nil {
		return nil, err
	}
	return &CachedStore{backend: backend, cache: c}, nil
}

func (s *CachedStore) Get(ctx context.Context, key Key) (*unstructured.Unstructured, error) {
	if v, ok := s.cache.Get(key.String()); ok {
		return v, nil
	}
	v, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if v != nil {
		s.cache.Set(key.String(), v)
	}
	return v, nil
}

func (s *CachedStore) Set(ctx context.Context, key Key, claim *unstructured.Unstructured) (*unstructured.Unstructured, bool, error) {
	stored, wasSet, err := s.backend.Set(ctx, key, claim)
	if err != nil {
		return nil, false, err
	}
	s.cache.Set(key.String(), stored)
	return stored, wasSet, nil
}

func (s *CachedStore) Delete(ctx context.Context, key Key) error {
	s.cache.Delete(key.String())
	return s.backend.Delete(ctx, key)
}

func (s *CachedStore) Close() error {
	s.cache.Clear()
	return s.backend.Close()
}

// Stats exposes the front cache's hit/miss/eviction counters.
func (s *CachedStore) Stats() cache.Stats {
	return s.cache.Stats()
}

func secondsToDuration(seconds int) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func marshalClaim(u *unstructured.Unstructured) ([]byte, error) {
	return json.Marshal(u.Object)
}

func unmarshalClaim(data []byte) (*unstructured.Unstructured, error) {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	return &unstructured.Unstructured{Object: obj}, nil
}
