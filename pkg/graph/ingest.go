package graph

import (
	"context"
	"fmt"
	"sync"

	"github.com/OFFIS-RIT/graphloom/backend/internal/util"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/common"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// IngestResult summarizes a single Ingest call.
type IngestResult struct {
	NodesSeen              int `json:"nodes_seen"`
	NodesCreated           int `json:"nodes_created"`
	RelationshipsCreated   int `json:"relationships_created"`
	RelationshipsDuplicate int `json:"relationships_duplicate"`
	RelationshipsDropped   int `json:"relationships_dropped"`
	MalformedNodes         int `json:"malformed_nodes"`
	MalformedRelationships int `json:"malformed_relationships"`
}

// batch holds the node side of one Ingest call.
type batch struct {
	rawIDs    []string
	canonical map[string]string // raw identifier -> canonical name
	names     []string          // distinct canonical names in input order
	types     map[string]string // canonical name -> first non-empty type
	ids       map[string]string // canonical name -> store id
}

// Ingest writes the nodes and relationships of records to the store.
//
// All node upserts finish before the first relationship is inserted, so a
// relationship only ever references nodes that exist. Relationships whose
// endpoints are not part of this batch are dropped. Node upserts and id
// lookups are retried; relationship inserts are not, since a retry after a
// lost acknowledgement would create a second edge.
//
// Nothing is rolled back when a store call fails midway: nodes written
// before the failure stay in place.
func (p *Pipeline) Ingest(ctx context.Context, records []common.RawRecord) (*IngestResult, error) {
	result := &IngestResult{}

	b := p.collectNodes(records, result)
	result.NodesSeen = len(b.rawIDs)

	existing, err := util.RetryWithContext(ctx, p.maxRetries, func(ctx context.Context) (map[string]string, error) {
		return p.store.ResolveIDs(ctx, b.names)
	})
	if err != nil {
		return nil, fmt.Errorf("resolving existing nodes: %w", err)
	}
	result.NodesCreated = len(b.names) - len(existing)

	if err := p.upsertNodes(ctx, b); err != nil {
		return nil, err
	}

	b.ids, err = util.RetryWithContext(ctx, p.maxRetries, func(ctx context.Context) (map[string]string, error) {
		return p.store.ResolveIDs(ctx, b.names)
	})
	if err != nil {
		return nil, fmt.Errorf("resolving node ids: %w", err)
	}

	if err := p.insertRelationships(ctx, records, b, result); err != nil {
		return nil, err
	}

	logger.Info("[Graph][Ingest] Batch ingested",
		"nodes_seen", result.NodesSeen,
		"nodes_created", result.NodesCreated,
		"relationships_created", result.RelationshipsCreated,
		"relationships_duplicate", result.RelationshipsDuplicate,
		"relationships_dropped", result.RelationshipsDropped,
		"malformed", result.MalformedNodes+result.MalformedRelationships,
	)
	return result, nil
}

func (p *Pipeline) collectNodes(records []common.RawRecord, result *IngestResult) *batch {
	b := &batch{
		canonical: make(map[string]string),
		types:     make(map[string]string),
	}
	explicit := make(map[string]string)

	for _, record := range records {
		for _, node := range record.Nodes {
			raw, ok := node.Identifier()
			if !ok {
				result.MalformedNodes++
				logger.Debug("[Graph][Ingest] Skipping node", "err", ErrMalformedRecord, "reason", "missing id and name")
				continue
			}
			if _, seen := b.canonical[raw]; seen {
				if explicit[raw] == "" {
					explicit[raw] = node.Type
				}
				continue
			}

			name, _ := Canonicalize(raw)
			if name == "" {
				result.MalformedNodes++
				logger.Debug("[Graph][Ingest] Skipping node", "err", ErrMalformedRecord, "reason", "blank identifier")
				continue
			}
			b.canonical[raw] = name
			b.rawIDs = append(b.rawIDs, raw)
			explicit[raw] = node.Type
		}
	}

	for _, raw := range b.rawIDs {
		name, typ := Canonicalize(raw)
		if typ == "" {
			typ = explicit[raw]
		}
		if _, seen := b.types[name]; !seen {
			b.names = append(b.names, name)
			b.types[name] = typ
			continue
		}
		if b.types[name] == "" {
			b.types[name] = typ
		}
	}
	return b
}

func (p *Pipeline) upsertNodes(ctx context.Context, b *batch) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelUpserts)

	var mu sync.Mutex
	upserted := 0
	for _, name := range b.names {
		typ := b.types[name]
		g.Go(func() error {
			_, err := util.RetryWithContext(gctx, p.maxRetries, func(ctx context.Context) (string, error) {
				return p.store.UpsertNode(ctx, name, typ)
			})
			if err != nil {
				return fmt.Errorf("upserting node %q: %w", name, err)
			}
			mu.Lock()
			upserted++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("[Graph][Ingest] Node upsert failed", "upserted", upserted, "total", len(b.names), "err", err)
		return err
	}
	return nil
}

func (p *Pipeline) insertRelationships(ctx context.Context, records []common.RawRecord, b *batch, result *IngestResult) error {
	for _, record := range records {
		for _, rel := range record.Relationships {
			source, target, ok := rel.Endpoints()
			if !ok {
				result.MalformedRelationships++
				logger.Debug("[Graph][Ingest] Skipping relationship", "err", ErrMalformedRecord, "reason", "missing endpoint")
				continue
			}

			sourceID, sourceOK := b.lookup(source)
			targetID, targetOK := b.lookup(target)
			if !sourceOK || !targetOK {
				result.RelationshipsDropped++
				logger.Debug("[Graph][Ingest] Dropping dangling relationship", "source", source, "target", target)
				continue
			}

			_, created, err := p.store.InsertRelationship(ctx, sourceID, targetID, rel.EdgeLabel())
			if err != nil {
				return fmt.Errorf("inserting relationship %q -> %q: %w", source, target, err)
			}
			if created {
				result.RelationshipsCreated++
			} else {
				result.RelationshipsDuplicate++
			}
		}
	}
	return nil
}

// lookup resolves a relationship endpoint to a store id. Only raw
// identifiers listed as nodes in this batch are known.
func (b *batch) lookup(raw string) (string, bool) {
	name, ok := b.canonical[raw]
	if !ok {
		return "", false
	}
	id, ok := b.ids[name]
	return id, ok && id != ""
}
