package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/phrazzld/todo-api/internal/platform/logger"
	"github.com/phrazzld/todo-api/internal/store"
)

// DefaultScanPageSize is the number of ids fetched per ScanAll round trip
// when none is configured.
const DefaultScanPageSize = 500

// PostgresConnectionStore implements store.ConnectionStore.
type PostgresConnectionStore struct {
	db       store.DBTX
	pageSize int
	logger   *slog.Logger
}

// NewPostgresConnectionStore creates a connection store that scans in pages
// of pageSize ids. A non-positive pageSize selects DefaultScanPageSize.
func NewPostgresConnectionStore(db store.DBTX, pageSize int, logger *slog.Logger) *PostgresConnectionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if pageSize <= 0 {
		pageSize = DefaultScanPageSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresConnectionStore{
		db:       db,
		pageSize: pageSize,
		logger:   logger.With(slog.String("component", "connection_store")),
	}
}

// Ensure PostgresConnectionStore implements store.ConnectionStore interface
var _ store.ConnectionStore = (*PostgresConnectionStore)(nil)

// Put implements store.ConnectionStore.Put as an upsert.
func (s *PostgresConnectionStore) Put(ctx context.Context, id string, createdAt time.Time) error {
	query := `
		INSERT INTO connections (id, created_at) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET created_at = EXCLUDED.created_at
	`
	if _, err := s.db.ExecContext(ctx, query, id, createdAt.UTC()); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to put connection",
			slog.String("error", err.Error()),
			slog.String("connection_id", id))
		return MapError(err)
	}
	return nil
}

// Delete implements store.ConnectionStore.Delete. Deleting an absent id
// affects no rows and is not an error.
func (s *PostgresConnectionStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM connections WHERE id = $1`, id); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to delete connection",
			slog.String("error", err.Error()),
			slog.String("connection_id", id))
		return MapError(err)
	}
	return nil
}

// ScanAll implements store.ConnectionStore.ScanAll. Ids are read in pages
// using keyset pagination on id, so rows inserted or removed during the scan
// may or may not appear.
func (s *PostgresConnectionStore) ScanAll(ctx context.Context) ([]string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT id FROM connections WHERE id > $1 ORDER BY id LIMIT $2`

	var (
		ids   []string
		after string
		pages int
	)
	for {
		page, err := s.scanPage(ctx, query, after)
		if err != nil {
			log.Error("connection scan failed",
				slog.String("error", err.Error()),
				slog.Int("pages_read", pages))
			return nil, err
		}
		pages++
		ids = append(ids, page...)

		if len(page) < s.pageSize {
			break
		}
		after = page[len(page)-1]
	}

	log.Debug("connections scanned", slog.Int("count", len(ids)), slog.Int("pages", pages))
	return ids, nil
}

func (s *PostgresConnectionStore) scanPage(ctx context.Context, query, after string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, after, s.pageSize)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	page := make([]string, 0, s.pageSize)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, store.NewStoreError("connection", "scan", "failed to scan row", err)
		}
		page = append(page, id)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("connection", "scan", "row iteration failed", err)
	}
	return page, nil
}
