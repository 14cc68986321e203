package pgx

import (
	"context"
	"os"
	"testing"

	"github.com/OFFIS-RIT/graphloom/backend/internal/migrations"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/store"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/store/storetest"

	"github.com/jackc/pgx/v5/pgxpool"
)

// These tests need a disposable Postgres database; every test truncates
// the graph tables.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	if err := migrations.Up(url); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	pool, err := pgxpool.New(context.Background(), url)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestGraphDBStorage(t *testing.T) {
	pool := testPool(t)

	storetest.Run(t, func(t *testing.T, opts store.Options) store.GraphStorage {
		_, err := pool.Exec(context.Background(), `TRUNCATE relationships, nodes RESTART IDENTITY`)
		if err != nil {
			t.Fatalf("failed to truncate: %v", err)
		}
		return NewGraphDBStorageWithConnection(pool,
			WithAllowDuplicateEdges(opts.AllowDuplicateEdges),
			WithQueryTimeout(opts.Timeout),
		)
	})
}

func TestGraphDBStorage_SanitizedNamesResolve(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	if _, err := pool.Exec(ctx, `TRUNCATE relationships, nodes RESTART IDENTITY`); err != nil {
		t.Fatalf("failed to truncate: %v", err)
	}
	s := NewGraphDBStorageWithConnection(pool)

	raw := "Ada\x00 Lovelace"
	id, err := s.UpsertNode(ctx, raw, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.ResolveIDs(ctx, []string{raw})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[raw] != id {
		t.Fatalf("expected %q to resolve to %q, got %v", raw, id, got)
	}
}

func TestNewGraphDBStorageWithConnection_Defaults(t *testing.T) {
	s := NewGraphDBStorageWithConnection(nil)
	if !s.opts.AllowDuplicateEdges {
		t.Fatal("expected duplicate edges to be allowed by default")
	}
	if s.opts.Timeout <= 0 {
		t.Fatal("expected a default timeout")
	}

	s = NewGraphDBStorageWithConnection(nil, WithAllowDuplicateEdges(false), WithQueryTimeout(0), nil)
	if s.opts.AllowDuplicateEdges || s.opts.Timeout != 0 {
		t.Fatalf("expected options to apply, got %+v", s.opts)
	}
}
