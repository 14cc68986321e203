package pgx

import (
	"context"
	"errors"
	"strconv"

	"github.com/OFFIS-RIT/graphloom/backend/internal/util"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/common"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/logger"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const (
	upsertNodeSQL = `INSERT INTO nodes (name, type) VALUES ($1, NULLIF($2, ''))
ON CONFLICT (name) DO NOTHING
RETURNING id`
	getNodeIDSQL   = `SELECT id FROM nodes WHERE name = $1`
	resolveIDsSQL  = `SELECT id, name FROM nodes WHERE name = ANY($1)`
	listNodesSQL   = `SELECT id, name, type FROM nodes`
	resolveIDChunk = 1000
)

// UpsertNode inserts the node unless a node with the same name exists. The
// conflict path is a plain lookup and never touches the existing row.
func (s *GraphDBStorage) UpsertNode(ctx context.Context, name string, typ string) (string, error) {
	ctx, cancel := s.opts.WithTimeout(ctx)
	defer cancel()

	name = util.SanitizePostgresText(name)
	typ = util.SanitizePostgresText(typ)

	var id int64
	err := s.conn.QueryRow(ctx, upsertNodeSQL, name, typ).Scan(&id)
	if errors.Is(err, pgxv5.ErrNoRows) {
		logger.Debug("[Store][UpsertNode] Node exists", "name", name)
		err = s.conn.QueryRow(ctx, getNodeIDSQL, name).Scan(&id)
	}
	if err != nil {
		return "", store.Wrap("upsert node", err)
	}
	return strconv.FormatInt(id, 10), nil
}

// ResolveIDs looks up ids for the given names in chunks. Keys of the result
// are the names as passed in, before sanitizing.
func (s *GraphDBStorage) ResolveIDs(ctx context.Context, names []string) (map[string]string, error) {
	names = store.DedupeStrings(names)
	out := make(map[string]string, len(names))
	if len(names) == 0 {
		return out, nil
	}

	ctx, cancel := s.opts.WithTimeout(ctx)
	defer cancel()

	originals := make(map[string][]string, len(names))
	sanitized := make([]string, 0, len(names))
	for _, n := range names {
		clean := util.SanitizePostgresText(n)
		if _, ok := originals[clean]; !ok {
			sanitized = append(sanitized, clean)
		}
		originals[clean] = append(originals[clean], n)
	}

	err := store.ChunkRange(len(sanitized), resolveIDChunk, func(start, end int) error {
		rows, err := s.conn.Query(ctx, resolveIDsSQL, sanitized[start:end])
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
			for _, orig := range originals[name] {
				out[orig] = strconv.FormatInt(id, 10)
			}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, store.Wrap("resolve ids", err)
	}

	logger.Debug("[Store][ResolveIDs] Resolved names", "requested", len(names), "resolved", len(out))
	return out, nil
}

func (s *GraphDBStorage) ListNodes(ctx context.Context) ([]common.Node, error) {
	ctx, cancel := s.opts.WithTimeout(ctx)
	defer cancel()

	rows, err := s.conn.Query(ctx, listNodesSQL)
	if err != nil {
		return nil, store.Wrap("list nodes", err)
	}
	defer rows.Close()

	nodes := make([]common.Node, 0)
	for rows.Next() {
		var id int64
		var name string
		var typ *string
		if err := rows.Scan(&id, &name, &typ); err != nil {
			return nil, store.Wrap("list nodes", err)
		}
		n := common.Node{ID: strconv.FormatInt(id, 10), Name: name}
		if typ != nil {
			n.Type = *typ
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap("list nodes", err)
	}
	return nodes, nil
}
