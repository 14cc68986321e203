package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/graphloom/backend/pkg/common"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/logger"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/store"

	_ "modernc.org/sqlite"
)

const resolveChunk = 500

// GraphSQLiteStorage implements store.GraphStorage on an embedded SQLite
// database. It is meant for local runs and tests; SQLite serializes writers,
// so the pool is limited to a single connection.
type GraphSQLiteStorage struct {
	db   *sql.DB
	opts store.Options
}

// New opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func New(ctx context.Context, path string, opts store.Options) (*GraphSQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to sqlite: %w", err)
	}

	for _, pragma := range allPragmas() {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}
	for _, stmt := range allSchemaStatements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	logger.Debug("[Store][SQLite] Opened database", "path", path, "allow_duplicate_edges", opts.AllowDuplicateEdges)
	return &GraphSQLiteStorage{db: db, opts: opts}, nil
}

func (s *GraphSQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *GraphSQLiteStorage) UpsertNode(ctx context.Context, name string, typ string) (string, error) {
	ctx, cancel := s.opts.WithTimeout(ctx)
	defer cancel()

	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO nodes (name, type) VALUES (?, NULLIF(?, ''))
		 ON CONFLICT (name) DO NOTHING
		 RETURNING id`,
		name, typ,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		err = s.db.QueryRowContext(ctx, `SELECT id FROM nodes WHERE name = ?`, name).Scan(&id)
	}
	if err != nil {
		return "", store.Wrap("upsert node", err)
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *GraphSQLiteStorage) ResolveIDs(ctx context.Context, names []string) (map[string]string, error) {
	names = store.DedupeStrings(names)
	out := make(map[string]string, len(names))
	if len(names) == 0 {
		return out, nil
	}

	ctx, cancel := s.opts.WithTimeout(ctx)
	defer cancel()

	err := store.ChunkRange(len(names), resolveChunk, func(start, end int) error {
		part := names[start:end]
		args := make([]any, len(part))
		for i, n := range part {
			args[i] = n
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(part)), ",")

		rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM nodes WHERE name IN (`+placeholders+`)`, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var id int64
			var name string
			if err := rows.Scan(&id, &name); err != nil {
				return err
			}
			out[name] = strconv.FormatInt(id, 10)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, store.Wrap("resolve ids", err)
	}
	return out, nil
}

func (s *GraphSQLiteStorage) InsertRelationship(ctx context.Context, sourceID, targetID, label string) (string, bool, error) {
	src, err := strconv.ParseInt(sourceID, 10, 64)
	if err != nil {
		return "", false, store.Wrap("insert relationship", fmt.Errorf("invalid source id %q: %w", sourceID, err))
	}
	dst, err := strconv.ParseInt(targetID, 10, 64)
	if err != nil {
		return "", false, store.Wrap("insert relationship", fmt.Errorf("invalid target id %q: %w", targetID, err))
	}

	ctx, cancel := s.opts.WithTimeout(ctx)
	defer cancel()

	key := s.opts.DedupKey(sourceID, targetID, label)

	var id int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO relationships (source, target, label, dedup_key) VALUES (?, ?, ?, NULLIF(?, ''))
		 ON CONFLICT (dedup_key) DO NOTHING
		 RETURNING id`,
		src, dst, label, key,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) && key != "" {
		err = s.db.QueryRowContext(ctx, `SELECT id FROM relationships WHERE dedup_key = ?`, key).Scan(&id)
		if err != nil {
			return "", false, store.Wrap("insert relationship", err)
		}
		return strconv.FormatInt(id, 10), false, nil
	}
	if err != nil {
		return "", false, store.Wrap("insert relationship", err)
	}
	return strconv.FormatInt(id, 10), true, nil
}

func (s *GraphSQLiteStorage) ListNodes(ctx context.Context) ([]common.Node, error) {
	ctx, cancel := s.opts.WithTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, type FROM nodes`)
	if err != nil {
		return nil, store.Wrap("list nodes", err)
	}
	defer rows.Close()

	nodes := make([]common.Node, 0)
	for rows.Next() {
		var id int64
		var name string
		var typ sql.NullString
		if err := rows.Scan(&id, &name, &typ); err != nil {
			return nil, store.Wrap("list nodes", err)
		}
		nodes = append(nodes, common.Node{
			ID:   strconv.FormatInt(id, 10),
			Name: name,
			Type: typ.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap("list nodes", err)
	}
	return nodes, nil
}

func (s *GraphSQLiteStorage) ListRelationships(ctx context.Context) ([]common.Edge, error) {
	ctx, cancel := s.opts.WithTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT id, source, target, label FROM relationships`)
	if err != nil {
		return nil, store.Wrap("list relationships", err)
	}
	defer rows.Close()

	edges := make([]common.Edge, 0)
	for rows.Next() {
		var id, src, dst int64
		var label string
		if err := rows.Scan(&id, &src, &dst, &label); err != nil {
			return nil, store.Wrap("list relationships", err)
		}
		edges = append(edges, common.Edge{
			ID:       strconv.FormatInt(id, 10),
			SourceID: strconv.FormatInt(src, 10),
			TargetID: strconv.FormatInt(dst, 10),
			Label:    label,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap("list relationships", err)
	}
	return edges, nil
}
