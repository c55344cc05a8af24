package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/phrazzld/todo-api/internal/store"
)

// MockConnectionStore is an in-memory store.ConnectionStore.
type MockConnectionStore struct {
	// Fn fields override the in-memory behavior when set.
	PutFn     func(ctx context.Context, id string, createdAt time.Time) error
	DeleteFn  func(ctx context.Context, id string) error
	ScanAllFn func(ctx context.Context) ([]string, error)

	mu          sync.Mutex
	connections map[string]time.Time
	scanCount   int
	deleted     []string
}

// Ensure MockConnectionStore implements store.ConnectionStore interface
var _ store.ConnectionStore = (*MockConnectionStore)(nil)

// NewMockConnectionStore creates a store holding the given ids.
func NewMockConnectionStore(ids ...string) *MockConnectionStore {
	m := &MockConnectionStore{connections: make(map[string]time.Time)}
	now := time.Now().UTC()
	for _, id := range ids {
		m.connections[id] = now
	}
	return m
}

// IDs returns the stored ids in sorted order.
func (m *MockConnectionStore) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.connections))
	for id := range m.connections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CreatedAt returns the timestamp stored for id.
func (m *MockConnectionStore) CreatedAt(id string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts, ok := m.connections[id]
	return ts, ok
}

// ScanCount reports how many times ScanAll was called.
func (m *MockConnectionStore) ScanCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scanCount
}

// Deleted returns every id passed to Delete, in call order.
func (m *MockConnectionStore) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

// Put implements store.ConnectionStore.
func (m *MockConnectionStore) Put(ctx context.Context, id string, createdAt time.Time) error {
	if m.PutFn != nil {
		return m.PutFn(ctx, id, createdAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connections == nil {
		m.connections = make(map[string]time.Time)
	}
	m.connections[id] = createdAt
	return nil
}

// Delete implements store.ConnectionStore.
func (m *MockConnectionStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	m.deleted = append(m.deleted, id)
	m.mu.Unlock()

	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.connections, id)
	return nil
}

// ScanAll implements store.ConnectionStore.
func (m *MockConnectionStore) ScanAll(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	m.scanCount++
	m.mu.Unlock()

	if m.ScanAllFn != nil {
		return m.ScanAllFn(ctx)
	}
	return m.IDs(), nil
}
