package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/phrazzld/todo-api/internal/domain"
	"github.com/phrazzld/todo-api/internal/store"
)

// ThumbnailUpdate records one UpdateThumbnailReference call.
type ThumbnailUpdate struct {
	OwnerID string
	TaskID  string
	URL     string
}

// MockTaskStore is an in-memory store.TaskStore.
type MockTaskStore struct {
	// UpdateThumbnailReferenceFn overrides the in-memory update when set.
	UpdateThumbnailReferenceFn func(ctx context.Context, ownerID, taskID, url string) (*domain.TaskRecord, error)

	mu               sync.Mutex
	tasks            map[domain.StorageKey]*domain.TaskRecord
	thumbnailUpdates []ThumbnailUpdate
}

// Ensure MockTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*MockTaskStore)(nil)

// NewMockTaskStore creates an empty store seeded with the given records.
func NewMockTaskStore(records ...*domain.TaskRecord) *MockTaskStore {
	m := &MockTaskStore{tasks: make(map[domain.StorageKey]*domain.TaskRecord)}
	for _, r := range records {
		cp := *r
		m.tasks[r.Key()] = &cp
	}
	return m
}

// ThumbnailUpdates returns every UpdateThumbnailReference call in order.
func (m *MockTaskStore) ThumbnailUpdates() []ThumbnailUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ThumbnailUpdate(nil), m.thumbnailUpdates...)
}

// Create implements store.TaskStore.
func (m *MockTaskStore) Create(ctx context.Context, task *domain.TaskRecord) error {
	if err := task.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tasks[task.Key()]; exists {
		return store.ErrDuplicate
	}
	cp := *task
	m.tasks[task.Key()] = &cp
	return nil
}

// Get implements store.TaskStore.
func (m *MockTaskStore) Get(ctx context.Context, ownerID, taskID string) (*domain.TaskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[domain.StorageKey{OwnerID: ownerID, TaskID: taskID}]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

// ListByOwner implements store.TaskStore.
func (m *MockTaskStore) ListByOwner(ctx context.Context, ownerID string) ([]*domain.TaskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*domain.TaskRecord, 0)
	for key, t := range m.tasks {
		if key.OwnerID == ownerID {
			cp := *t
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// Update implements store.TaskStore.
func (m *MockTaskStore) Update(ctx context.Context, ownerID, taskID string, update store.TaskUpdate) (*domain.TaskRecord, error) {
	return m.mutate(ownerID, taskID, func(t *domain.TaskRecord) {
		t.Name = update.Name
		t.DueDate = update.DueDate
		t.Done = update.Done
	})
}

// Delete implements store.TaskStore.
func (m *MockTaskStore) Delete(ctx context.Context, ownerID, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := domain.StorageKey{OwnerID: ownerID, TaskID: taskID}
	if _, ok := m.tasks[key]; !ok {
		return store.ErrTaskNotFound
	}
	delete(m.tasks, key)
	return nil
}

// UpdateAttachmentReference implements store.TaskStore.
func (m *MockTaskStore) UpdateAttachmentReference(ctx context.Context, ownerID, taskID, url string) (*domain.TaskRecord, error) {
	return m.mutate(ownerID, taskID, func(t *domain.TaskRecord) {
		u := url
		t.AttachmentURL = &u
	})
}

// UpdateThumbnailReference implements store.TaskStore.
func (m *MockTaskStore) UpdateThumbnailReference(ctx context.Context, ownerID, taskID, url string) (*domain.TaskRecord, error) {
	m.mu.Lock()
	m.thumbnailUpdates = append(m.thumbnailUpdates, ThumbnailUpdate{OwnerID: ownerID, TaskID: taskID, URL: url})
	m.mu.Unlock()

	if m.UpdateThumbnailReferenceFn != nil {
		return m.UpdateThumbnailReferenceFn(ctx, ownerID, taskID, url)
	}

	return m.mutate(ownerID, taskID, func(t *domain.TaskRecord) {
		u := url
		t.ThumbnailURL = &u
	})
}

func (m *MockTaskStore) mutate(ownerID, taskID string, fn func(*domain.TaskRecord)) (*domain.TaskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[domain.StorageKey{OwnerID: ownerID, TaskID: taskID}]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	fn(t)
	cp := *t
	return &cp, nil
}
