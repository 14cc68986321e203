package pgx

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/OFFIS-RIT/graphloom/backend/internal/util"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/common"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

const (
	insertRelationshipSQL = `INSERT INTO relationships (source, target, label, dedup_key)
VALUES ($1, $2, $3, NULLIF($4, ''))
ON CONFLICT (dedup_key) DO NOTHING
RETURNING id`
	getRelationshipByKeySQL = `SELECT id FROM relationships WHERE dedup_key = $1`
	listRelationshipsSQL    = `SELECT id, source, target, label FROM relationships`
)

// InsertRelationship stores an edge. Referential integrity is enforced by
// the foreign keys on source and target.
func (s *GraphDBStorage) InsertRelationship(ctx context.Context, sourceID, targetID, label string) (string, bool, error) {
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

	label = util.SanitizePostgresText(label)
	key := s.opts.DedupKey(sourceID, targetID, label)

	var id int64
	err = s.conn.QueryRow(ctx, insertRelationshipSQL, src, dst, label, key).Scan(&id)
	if errors.Is(err, pgxv5.ErrNoRows) && key != "" {
		if err := s.conn.QueryRow(ctx, getRelationshipByKeySQL, key).Scan(&id); err != nil {
			return "", false, store.Wrap("insert relationship", err)
		}
		return strconv.FormatInt(id, 10), false, nil
	}
	if err != nil {
		return "", false, store.Wrap("insert relationship", err)
	}
	return strconv.FormatInt(id, 10), true, nil
}

func (s *GraphDBStorage) ListRelationships(ctx context.Context) ([]common.Edge, error) {
	ctx, cancel := s.opts.WithTimeout(ctx)
	defer cancel()

	rows, err := s.conn.Query(ctx, listRelationshipsSQL)
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
