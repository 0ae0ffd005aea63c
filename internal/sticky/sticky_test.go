package sticky

import (
	"context"
	"path/filepath"
	"testing"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

func claimNamed(name string) *unstructured.Unstructured {
	u := &unstructured.Unstructured{}
	u.SetAPIVersion("db.platform.example.org/v1alpha1")
	u.SetKind("MySQLInstanceClaim")
	u.SetName(name)
	u.SetNamespace("default")
	return u
}

func TestMemoryStoreFirstWriteWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	key := Key{Product: "mysql", Namespace: "default", Name: "orders-db"}

	first, wasSet, err := s.Set(ctx, key, claimNamed("orders-db"))
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !wasSet {
		t.Fatal("expected first Set to win")
	}
	if first.GetName() != "orders-db" {
		t.Fatalf("unexpected claim: %v", first)
	}

	second, wasSet, err := s.Set(ctx, key, claimNamed("orders-db-different-payload"))
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if wasSet {
		t.Fatal("expected second Set to lose the race")
	}
	if second.GetName() != "orders-db" {
		t.Fatalf("expected sticky claim to be returned unchanged, got %s", second.GetName())
	}
}

func TestMemoryStoreSnapshotRoundTripsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sticky-snapshot.json")

	s, err := NewMemoryStoreWithSnapshot(path)
	if err != nil {
		t.Fatalf("NewMemoryStoreWithSnapshot: %v", err)
	}
	key := Key{Product: "mysql", Namespace: "default", Name: "orders-db"}
	if _, _, err := s.Set(ctx, key, claimNamed("orders-db")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	restarted, err := NewMemoryStoreWithSnapshot(path)
	if err != nil {
		t.Fatalf("NewMemoryStoreWithSnapshot on restart: %v", err)
	}
	got, err := restarted.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.GetName() != "orders-db" {
		t.Fatalf("expected snapshot to survive restart, got %v", got)
	}
}

func TestMemoryStoreWithSnapshotMissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	s, err := NewMemoryStoreWithSnapshot(path)
	if err != nil {
		t.Fatalf("NewMemoryStoreWithSnapshot: %v", err)
	}
	got, err := s.Get(context.Background(), Key{Product: "mysql", Namespace: "default", Name: "missing"})
	if err != nil || got != nil {
		t.Fatalf("expected empty store, got %v err=%v", got, err)
	}
}

func TestMemoryStoreGetMissingReturnsNil(t *testing.T) {
	s := NewMemoryStore()
	got, err := s.Get(context.Background(), Key{Product: "mysql", Namespace: "default", Name: "missing"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestMemoryStoreDeleteAllowsReschedule(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	key := Key{Product: "mysql", Namespace: "default", Name: "orders-db"}

	if _, _, err := s.Set(ctx, key, claimNamed("orders-db")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	stored, wasSet, err := s.Set(ctx, key, claimNamed("orders-db-failover"))
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !wasSet {
		t.Fatal("expected Set after Delete to win")
	}
	if stored.GetName() != "orders-db-failover" {
		t.Fatalf("expected failover claim to stick, got %s", stored.GetName())
	}
}

func TestCachedStoreServesReadsFromCacheAfterSet(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryStore()
	cached, err := NewCachedStore(backend, 16, 60)
	if err != nil {
		t.Fatalf("NewCachedStore: %v", err)
	}
	key := Key{Product: "webapp", Namespace: "default", Name: "checkout"}

	if _, _, err := cached.Set(ctx, key, claimNamed("checkout")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := cached.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.GetName() != "checkout" {
		t.Fatalf("unexpected cached read: %v", got)
	}
	if cached.Stats().Hits == 0 {
		t.Fatal("expected at least one cache hit")
	}
}

func TestCachedStoreDeleteInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryStore()
	cached, err := NewCachedStore(backend, 16, 60)
	if err != nil {
		t.Fatalf("NewCachedStore: %v", err)
	}
	key := Key{Product: "webapp", Namespace: "default", Name: "checkout"}

	if _, _, err := cached.Set(ctx, key, claimNamed("checkout")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := cached.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err := cached.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil after delete, got %v", got)
	}
}
