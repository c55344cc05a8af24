package mocks

import (
	"context"
	"errors"
	"sync"
)

// ErrBlobNotFound is returned by MockBlobStore.Get for unknown keys.
var ErrBlobNotFound = errors.New("blob not found")

// StoredBlob is an object held by MockBlobStore.
type StoredBlob struct {
	Data        []byte
	ContentType string
}

// MockBlobStore is an in-memory blob store satisfying thumbnail.BlobStore.
type MockBlobStore struct {
	// GetFn and PutFn override the in-memory behavior when set.
	GetFn func(ctx context.Context, key string) ([]byte, error)
	PutFn func(ctx context.Context, key string, data []byte, contentType string) error

	mu       sync.Mutex
	objects  map[string]StoredBlob
	getCalls []string
	putCalls []string
}

// NewMockBlobStore creates an empty store.
func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{objects: make(map[string]StoredBlob)}
}

// Seed stores data under key without recording a call.
func (m *MockBlobStore) Seed(key string, data []byte, contentType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure()
	m.objects[key] = StoredBlob{Data: append([]byte(nil), data...), ContentType: contentType}
}

// Object returns the blob stored under key.
func (m *MockBlobStore) Object(key string) (StoredBlob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	return obj, ok
}

// Len returns the number of stored objects.
func (m *MockBlobStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// GetCalls returns the keys passed to Get, in call order.
func (m *MockBlobStore) GetCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.getCalls...)
}

// PutCalls returns the keys passed to Put, in call order.
func (m *MockBlobStore) PutCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.putCalls...)
}

// Get implements thumbnail.BlobStore.
func (m *MockBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	m.getCalls = append(m.getCalls, key)
	m.mu.Unlock()

	if m.GetFn != nil {
		return m.GetFn(ctx, key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrBlobNotFound
	}
	return append([]byte(nil), obj.Data...), nil
}

// Put implements thumbnail.BlobStore.
func (m *MockBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	m.putCalls = append(m.putCalls, key)
	m.mu.Unlock()

	if m.PutFn != nil {
		return m.PutFn(ctx, key, data, contentType)
	}

	m.Seed(key, data, contentType)
	return nil
}

func (m *MockBlobStore) ensure() {
	if m.objects == nil {
		m.objects = make(map[string]StoredBlob)
	}
}
