//go:build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/todo-api/internal/domain"
	"github.com/phrazzld/todo-api/internal/platform/postgres"
	"github.com/phrazzld/todo-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTask(t *testing.T, owner, name string, createdAt time.Time) *domain.TaskRecord {
	t.Helper()
	task, err := domain.NewTaskRecord(owner, name, nil)
	require.NoError(t, err)
	task.CreatedAt = createdAt.UTC().Truncate(time.Microsecond)
	return task
}

func TestPostgresTaskStore_CreateGet(t *testing.T) {
	tx := testDB(t)
	s := postgres.NewPostgresTaskStore(tx, nil)
	ctx := context.Background()
	owner := "owner-" + uuid.NewString()[:8]

	due := time.Date(2026, 12, 24, 0, 0, 0, 0, time.UTC)
	task := newTask(t, owner, "buy gifts", time.Now())
	task.DueDate = &due
	require.NoError(t, s.Create(ctx, task))

	got, err := s.Get(ctx, owner, task.TaskID)
	require.NoError(t, err)
	assert.Equal(t, task.Name, got.Name)
	assert.Equal(t, task.CreatedAt, got.CreatedAt)
	require.NotNil(t, got.DueDate)
	assert.True(t, due.Equal(*got.DueDate))
	assert.False(t, got.Done)
	assert.Nil(t, got.AttachmentURL)
	assert.Nil(t, got.ThumbnailURL)

	err = s.Create(ctx, task)
	assert.ErrorIs(t, err, store.ErrDuplicate)
}

func TestPostgresTaskStore_GetMissing(t *testing.T) {
	s := postgres.NewPostgresTaskStore(testDB(t), nil)

	_, err := s.Get(context.Background(), "nobody", "nothing")

	assert.ErrorIs(t, err, store.ErrTaskNotFound)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestPostgresTaskStore_ListByOwnerNewestFirst(t *testing.T) {
	s := postgres.NewPostgresTaskStore(testDB(t), nil)
	ctx := context.Background()
	owner := "owner-" + uuid.NewString()[:8]
	base := time.Now().Add(-time.Hour)

	older := newTask(t, owner, "older", base)
	newer := newTask(t, owner, "newer", base.Add(time.Minute))
	other := newTask(t, "someone-else", "not mine", base)
	for _, task := range []*domain.TaskRecord{older, newer, other} {
		require.NoError(t, s.Create(ctx, task))
	}

	tasks, err := s.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "newer", tasks[0].Name)
	assert.Equal(t, "older", tasks[1].Name)

	empty, err := s.ListByOwner(ctx, "owner-without-tasks")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPostgresTaskStore_UpdateAndReferences(t *testing.T) {
	s := postgres.NewPostgresTaskStore(testDB(t), nil)
	ctx := context.Background()
	owner := "owner-" + uuid.NewString()[:8]
	task := newTask(t, owner, "draft", time.Now())
	require.NoError(t, s.Create(ctx, task))

	updated, err := s.Update(ctx, owner, task.TaskID, store.TaskUpdate{Name: "final", Done: true})
	require.NoError(t, err)
	assert.Equal(t, "final", updated.Name)
	assert.True(t, updated.Done)

	attachment := "https://storage.googleapis.com/todo-attachments/" + owner + "/" + task.TaskID
	updated, err = s.UpdateAttachmentReference(ctx, owner, task.TaskID, attachment)
	require.NoError(t, err)
	require.NotNil(t, updated.AttachmentURL)
	assert.Equal(t, attachment, *updated.AttachmentURL)

	thumb := "https://storage.googleapis.com/todo-thumbnails/" + owner + "/" + task.TaskID + ".jpeg"
	updated, err = s.UpdateThumbnailReference(ctx, owner, task.TaskID, thumb)
	require.NoError(t, err)
	require.NotNil(t, updated.ThumbnailURL)
	assert.Equal(t, thumb, *updated.ThumbnailURL)
	// Other fields are untouched by the pipeline write.
	assert.Equal(t, "final", updated.Name)
	assert.Equal(t, attachment, *updated.AttachmentURL)

	// Last write wins.
	updated, err = s.UpdateThumbnailReference(ctx, owner, task.TaskID, thumb+"?v=2")
	require.NoError(t, err)
	assert.Equal(t, thumb+"?v=2", *updated.ThumbnailURL)
}

func TestPostgresTaskStore_MissingRecordUpdates(t *testing.T) {
	s := postgres.NewPostgresTaskStore(testDB(t), nil)
	ctx := context.Background()

	_, err := s.Update(ctx, "nobody", "nothing", store.TaskUpdate{Name: "x"})
	assert.ErrorIs(t, err, store.ErrTaskNotFound)

	_, err = s.UpdateThumbnailReference(ctx, "nobody", "nothing", "https://example.com/x.jpeg")
	assert.ErrorIs(t, err, store.ErrTaskNotFound)

	assert.ErrorIs(t, s.Delete(ctx, "nobody", "nothing"), store.ErrTaskNotFound)
}

func TestPostgresTaskStore_Delete(t *testing.T) {
	s := postgres.NewPostgresTaskStore(testDB(t), nil)
	ctx := context.Background()
	owner := "owner-" + uuid.NewString()[:8]
	task := newTask(t, owner, "temporary", time.Now())
	require.NoError(t, s.Create(ctx, task))

	require.NoError(t, s.Delete(ctx, owner, task.TaskID))

	_, err := s.Get(ctx, owner, task.TaskID)
	assert.ErrorIs(t, err, store.ErrTaskNotFound)
}

func TestPostgresTaskStore_CreateInvalid(t *testing.T) {
	s := postgres.NewPostgresTaskStore(testDB(t), nil)

	err := s.Create(context.Background(), &domain.TaskRecord{OwnerID: "o", TaskID: "t"})

	assert.ErrorIs(t, err, store.ErrInvalidEntity)
	assert.ErrorIs(t, err, domain.ErrEmptyTaskName)
}
