package sticky

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// MemoryStore is an in-process sticky store, generalized from
// dedup.MemoryStore's map[string]*entry shape to a Claim value with an
// optional JSON file snapshot on Set/Close, the same durability posture the
// teacher gave PCS verify results — except sticky Claims have no TTL, so the
// snapshot never prunes expired entries, it just round-trips the whole map.
type MemoryStore struct {
	mu       sync.RWMutex
	store    map[string]*unstructured.Unstructured
	snapshot string // optional file path for persistence
}

// NewMemoryStore creates an in-memory sticky store with no persistence.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{store: make(map[string]*unstructured.Unstructured)}
}

// NewMemoryStoreWithSnapshot creates an in-memory sticky store that loads its
// contents from snapshotPath on startup (if present) and persists on every
// Set and on Close.
func NewMemoryStoreWithSnapshot(snapshotPath string) (*MemoryStore, error) {
	m := &MemoryStore{store: make(map[string]*unstructured.Unstructured), snapshot: snapshotPath}
	if err := m.loadSnapshot(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MemoryStore) Get(ctx context.Context, key Key) (*unstructured.Unstructured, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.store[key.String()]
	if !ok {
		return nil, nil
	}
	return v.DeepCopy(), nil
}

func (m *MemoryStore) Set(ctx context.Context, key Key, claim *unstructured.Unstructured) (*unstructured.Unstructured, bool, error) {
	m.mu.Lock()
	if existing, ok := m.store[key.String()]; ok {
		m.mu.Unlock()
		return existing.DeepCopy(), false, nil
	}
	m.store[key.String()] = claim.DeepCopy()
	m.mu.Unlock()

	if m.snapshot != "" {
		go m.saveSnapshot()
	}
	return claim.DeepCopy(), true, nil
}

func (m *MemoryStore) Delete(ctx context.Context, key Key) error {
	m.mu.Lock()
	delete(m.store, key.String())
	m.mu.Unlock()

	if m.snapshot != "" {
		go m.saveSnapshot()
	}
	return nil
}

func (m *MemoryStore) Close() error {
	if m.snapshot != "" {
		return m.saveSnapshot()
	}
	return nil
}

func (m *MemoryStore) loadSnapshot() error {
	data, err := os.ReadFile(m.snapshot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var raw map[string]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("sticky: failed to unmarshal snapshot: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range raw {
		m.store[k] = &unstructured.Unstructured{Object: v}
	}
	return nil
}

func (m *MemoryStore) saveSnapshot() error {
	m.mu.RLock()
	toSave := make(map[string]map[string]any, len(m.store))
	for k, v := range m.store {
		toSave[k] = v.Object
	}
	m.mu.RUnlock()

	data, err := json.MarshalIndent(toSave, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.snapshot, data, 0o600)
}
