package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/phrazzld/todo-api/internal/domain"
	"github.com/phrazzld/todo-api/internal/platform/logger"
	"github.com/phrazzld/todo-api/internal/store"
)

const taskColumns = `owner_id, task_id, name, due_date, done, created_at, attachment_url, thumbnail_url`

// PostgresTaskStore implements the store.TaskStore interface
// using a PostgreSQL database as the storage backend.
type PostgresTaskStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTaskStore creates a new PostgreSQL implementation of the TaskStore interface.
// It accepts a database connection or transaction that should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresTaskStore(db store.DBTX, logger *slog.Logger) *PostgresTaskStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTaskStore{
		db:     db,
		logger: logger.With(slog.String("component", "task_store")),
	}
}

// Ensure PostgresTaskStore implements store.TaskStore interface
var _ store.TaskStore = (*PostgresTaskStore)(nil)

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.TaskRecord, error) {
	var (
		t             domain.TaskRecord
		dueDate       sql.NullTime
		attachmentURL sql.NullString
		thumbnailURL  sql.NullString
	)

	if err := row.Scan(
		&t.OwnerID,
		&t.TaskID,
		&t.Name,
		&dueDate,
		&t.Done,
		&t.CreatedAt,
		&attachmentURL,
		&thumbnailURL,
	); err != nil {
		return nil, err
	}

	if dueDate.Valid {
		d := dueDate.Time.UTC()
		t.DueDate = &d
	}
	if attachmentURL.Valid {
		t.AttachmentURL = &attachmentURL.String
	}
	if thumbnailURL.Valid {
		t.ThumbnailURL = &thumbnailURL.String
	}
	t.CreatedAt = t.CreatedAt.UTC()

	return &t, nil
}

// Create implements store.TaskStore.Create
func (s *PostgresTaskStore) Create(ctx context.Context, task *domain.TaskRecord) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := task.Validate(); err != nil {
		log.Warn("task validation failed during create",
			slog.String("error", err.Error()),
			slog.String("task", task.String()))
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		task.OwnerID,
		task.TaskID,
		task.Name,
		task.DueDate,
		task.Done,
		task.CreatedAt,
		task.AttachmentURL,
		task.ThumbnailURL,
	)
	if err != nil {
		mapped := MapError(err)
		log.Error("failed to create task",
			slog.String("error", err.Error()),
			slog.String("task", task.String()))
		return mapped
	}

	log.Debug("task created", slog.String("task", task.String()))
	return nil
}

// Get implements store.TaskStore.Get
func (s *PostgresTaskStore) Get(ctx context.Context, ownerID, taskID string) (*domain.TaskRecord, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE owner_id = $1 AND task_id = $2`

	task, err := scanTask(s.db.QueryRowContext(ctx, query, ownerID, taskID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrTaskNotFound
		}
		return nil, MapError(err)
	}
	return task, nil
}

// ListByOwner implements store.TaskStore.ListByOwner
func (s *PostgresTaskStore) ListByOwner(ctx context.Context, ownerID string) ([]*domain.TaskRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE owner_id = $1
		ORDER BY created_at DESC, task_id
	`
	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		log.Error("failed to list tasks", slog.String("error", err.Error()), slog.String("owner_id", ownerID))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]*domain.TaskRecord, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, store.NewStoreError("task", "list", "failed to scan row", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("task", "list", "row iteration failed", err)
	}

	return tasks, nil
}

// Update implements store.TaskStore.Update
func (s *PostgresTaskStore) Update(
	ctx context.Context,
	ownerID, taskID string,
	update store.TaskUpdate,
) (*domain.TaskRecord, error) {
	query := `
		UPDATE tasks
		SET name = $3, due_date = $4, done = $5
		WHERE owner_id = $1 AND task_id = $2
		RETURNING ` + taskColumns
	return s.updateReturning(ctx, "update", query, ownerID, taskID, update.Name, update.DueDate, update.Done)
}

// Delete implements store.TaskStore.Delete
func (s *PostgresTaskStore) Delete(ctx context.Context, ownerID, taskID string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE owner_id = $1 AND task_id = $2`, ownerID, taskID)
	if err != nil {
		log.Error("failed to delete task",
			slog.String("error", err.Error()),
			slog.String("owner_id", ownerID),
			slog.String("task_id", taskID))
		return MapError(err)
	}

	return CheckRowsAffected(result, store.ErrTaskNotFound)
}

// UpdateAttachmentReference implements store.TaskStore.UpdateAttachmentReference
func (s *PostgresTaskStore) UpdateAttachmentReference(
	ctx context.Context,
	ownerID, taskID, url string,
) (*domain.TaskRecord, error) {
	query := `
		UPDATE tasks SET attachment_url = $3
		WHERE owner_id = $1 AND task_id = $2
		RETURNING ` + taskColumns
	return s.updateReturning(ctx, "update_attachment", query, ownerID, taskID, url)
}

// UpdateThumbnailReference implements store.TaskStore.UpdateThumbnailReference.
// It is a single-row update; concurrent writers for the same task race and
// the last one wins.
func (s *PostgresTaskStore) UpdateThumbnailReference(
	ctx context.Context,
	ownerID, taskID, url string,
) (*domain.TaskRecord, error) {
	query := `
		UPDATE tasks SET thumbnail_url = $3
		WHERE owner_id = $1 AND task_id = $2
		RETURNING ` + taskColumns
	return s.updateReturning(ctx, "update_thumbnail", query, ownerID, taskID, url)
}

// updateReturning runs an UPDATE ... RETURNING keyed by (ownerID, taskID)
// and scans the updated row.
func (s *PostgresTaskStore) updateReturning(
	ctx context.Context,
	op, query, ownerID, taskID string,
	args ...any,
) (*domain.TaskRecord, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	params := append([]any{ownerID, taskID}, args...)
	task, err := scanTask(s.db.QueryRowContext(ctx, query, params...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("task not found",
				slog.String("operation", op),
				slog.String("owner_id", ownerID),
				slog.String("task_id", taskID))
			return nil, store.ErrTaskNotFound
		}
		log.Error("task update failed",
			slog.String("operation", op),
			slog.String("error", err.Error()),
			slog.String("owner_id", ownerID),
			slog.String("task_id", taskID))
		return nil, MapError(err)
	}
	return task, nil
}
