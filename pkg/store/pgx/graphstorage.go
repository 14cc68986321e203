package pgx

import (
	"context"
	"time"

	"github.com/OFFIS-RIT/graphloom/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
}

// GraphDBStorage implements the GraphStorage interface on PostgreSQL.
// Node deduplication relies on the unique constraint on nodes.name, so
// concurrent ingestions of the same name are safe without any locking.
type GraphDBStorage struct {
	conn pgxIConn
	opts store.Options
}

type GraphDBStorageOption func(*GraphDBStorage)

// WithAllowDuplicateEdges controls whether identical (source, target,
// label) relationships are stored more than once.
func WithAllowDuplicateEdges(allow bool) GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		s.opts.AllowDuplicateEdges = allow
	}
}

// WithQueryTimeout bounds every store call. Zero disables the bound.
func WithQueryTimeout(timeout time.Duration) GraphDBStorageOption {
	return func(s *GraphDBStorage) {
		s.opts.Timeout = timeout
	}
}

// NewGraphDBStorageWithConnection creates a new GraphDBStorage using an
// existing connection or pool. The schema is expected to be migrated
// already. The caller owns conn; Close does not close it.
func NewGraphDBStorageWithConnection(
	conn pgxIConn,
	opts ...GraphDBStorageOption,
) *GraphDBStorage {
	s := &GraphDBStorage{
		conn: conn,
		opts: store.DefaultOptions(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

func (s *GraphDBStorage) Close() error {
	return nil
}
