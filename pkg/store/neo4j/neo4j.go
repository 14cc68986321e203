package neo4j

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/graphloom/backend/pkg/common"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/logger"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/store"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

var errEndpointNotFound = errors.New("relationship endpoint not found")

var schemaStatements = []string{
	`CREATE CONSTRAINT entity_name_unique IF NOT EXISTS FOR (n:Entity) REQUIRE n.name IS UNIQUE`,
	`CREATE INDEX entity_id IF NOT EXISTS FOR (n:Entity) ON (n.id)`,
}

const (
	upsertNodeCypher = `
		MERGE (n:Entity {name: $name})
		ON CREATE SET n.id = $id, n.type = $type
		RETURN n.id AS id`
	resolveIDsCypher = `
		UNWIND $names AS name
		MATCH (n:Entity {name: name})
		RETURN n.name AS name, n.id AS id`
	createRelationshipCypher = `
		MATCH (a:Entity {id: $source})
		MATCH (b:Entity {id: $target})
		CREATE (a)-[r:RELATED {id: $id, label: $label}]->(b)
		RETURN r.id AS id, true AS created`
	mergeRelationshipCypher = `
		MATCH (a:Entity {id: $source})
		MATCH (b:Entity {id: $target})
		MERGE (a)-[r:RELATED {label: $label}]->(b)
		ON CREATE SET r.id = $id
		RETURN r.id AS id, r.id = $id AS created`
	listNodesCypher = `
		MATCH (n:Entity)
		RETURN n.id AS id, n.name AS name, n.type AS type`
	listRelationshipsCypher = `
		MATCH (a:Entity)-[r:RELATED]->(b:Entity)
		RETURN r.id AS id, a.id AS source, b.id AS target, r.label AS label`
)

// GraphNeo4jStorage implements store.GraphStorage on Neo4j. Nodes are
// (:Entity {id, name, type}) with a uniqueness constraint on name, which
// makes MERGE on name race free. Edges are [:RELATED {id, label}].
type GraphNeo4jStorage struct {
	driver   neo4j.DriverWithContext
	database string
	opts     store.Options
}

// New wraps an existing driver and ensures the schema constraints. The
// caller owns the driver; Close does not close it.
func New(ctx context.Context, driver neo4j.DriverWithContext, database string, opts store.Options) (*GraphNeo4jStorage, error) {
	s := &GraphNeo4jStorage{
		driver:   driver,
		database: database,
		opts:     opts,
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *GraphNeo4jStorage) ensureSchema(ctx context.Context) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	for _, stmt := range schemaStatements {
		result, err := session.Run(ctx, stmt, nil)
		if err != nil {
			return fmt.Errorf("creating neo4j schema: %w", err)
		}
		if _, err := result.Consume(ctx); err != nil {
			return fmt.Errorf("creating neo4j schema: %w", err)
		}
	}
	logger.Debug("[Store][Neo4j] Schema ensured", "database", s.database)
	return nil
}

func (s *GraphNeo4jStorage) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   mode,
	})
}

func (s *GraphNeo4jStorage) Close() error {
	return nil
}

func (s *GraphNeo4jStorage) UpsertNode(ctx context.Context, name string, typ string) (string, error) {
	ctx, cancel := s.opts.WithTimeout(ctx)
	defer cancel()

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	var typeParam any
	if typ != "" {
		typeParam = typ
	}

	id, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, upsertNodeCypher, map[string]any{
			"name": name,
			"id":   uuid.NewString(),
			"type": typeParam,
		})
		if err != nil {
			return nil, err
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, err
		}
		return stringValue(record, "id"), nil
	})
	if err != nil {
		return "", store.Wrap("upsert node", err)
	}
	return id.(string), nil
}

func (s *GraphNeo4jStorage) ResolveIDs(ctx context.Context, names []string) (map[string]string, error) {
	names = store.DedupeStrings(names)
	out := make(map[string]string, len(names))
	if len(names) == 0 {
		return out, nil
	}

	ctx, cancel := s.opts.WithTimeout(ctx)
	defer cancel()

	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	_, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, resolveIDsCypher, map[string]any{"names": names})
		if err != nil {
			return nil, err
		}
		for result.Next(ctx) {
			record := result.Record()
			out[stringValue(record, "name")] = stringValue(record, "id")
		}
		return nil, result.Err()
	})
	if err != nil {
		return nil, store.Wrap("resolve ids", err)
	}
	return out, nil
}

// InsertRelationship creates the edge, or merges it on (source, target,
// label) when duplicate edges are disallowed. MERGE locks both endpoints,
// so concurrent identical inserts collapse into one edge.
func (s *GraphNeo4jStorage) InsertRelationship(ctx context.Context, sourceID, targetID, label string) (string, bool, error) {
	ctx, cancel := s.opts.WithTimeout(ctx)
	defer cancel()

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	cypher := createRelationshipCypher
	if !s.opts.AllowDuplicateEdges {
		cypher = mergeRelationshipCypher
	}

	type inserted struct {
		id      string
		created bool
	}
	res, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"source": sourceID,
			"target": targetID,
			"label":  label,
			"id":     uuid.NewString(),
		})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %s -> %s", errEndpointNotFound, sourceID, targetID)
		}
		record := result.Record()
		created, _ := record.Get("created")
		ok, _ := created.(bool)
		return inserted{id: stringValue(record, "id"), created: ok}, nil
	})
	if err != nil {
		return "", false, store.Wrap("insert relationship", err)
	}
	r := res.(inserted)
	return r.id, r.created, nil
}

func (s *GraphNeo4jStorage) ListNodes(ctx context.Context) ([]common.Node, error) {
	ctx, cancel := s.opts.WithTimeout(ctx)
	defer cancel()

	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	res, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, listNodesCypher, nil)
		if err != nil {
			return nil, err
		}
		nodes := make([]common.Node, 0)
		for result.Next(ctx) {
			record := result.Record()
			nodes = append(nodes, common.Node{
				ID:   stringValue(record, "id"),
				Name: stringValue(record, "name"),
				Type: stringValue(record, "type"),
			})
		}
		return nodes, result.Err()
	})
	if err != nil {
		return nil, store.Wrap("list nodes", err)
	}
	return res.([]common.Node), nil
}

func (s *GraphNeo4jStorage) ListRelationships(ctx context.Context) ([]common.Edge, error) {
	ctx, cancel := s.opts.WithTimeout(ctx)
	defer cancel()

	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	res, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, listRelationshipsCypher, nil)
		if err != nil {
			return nil, err
		}
		edges := make([]common.Edge, 0)
		for result.Next(ctx) {
			record := result.Record()
			edges = append(edges, common.Edge{
				ID:       stringValue(record, "id"),
				SourceID: stringValue(record, "source"),
				TargetID: stringValue(record, "target"),
				Label:    stringValue(record, "label"),
			})
		}
		return edges, result.Err()
	})
	if err != nil {
		return nil, store.Wrap("list relationships", err)
	}
	return res.([]common.Edge), nil
}

// stringValue returns the string stored under key or "" for null and
// missing values.
func stringValue(record *neo4j.Record, key string) string {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
