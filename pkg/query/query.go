package query

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/graphloom/backend/pkg/common"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/graph"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/logger"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/store"

	"golang.org/x/sync/singleflight"
)

// GraphQueryClient reconstructs the stored graph for visualization clients.
type GraphQueryClient interface {
	GetGraph(ctx context.Context) (*common.GraphView, error)
}

// Service is the store-backed GraphQueryClient. Concurrent GetGraph calls
// share a single store read and receive the same view, which callers must
// not modify.
type Service struct {
	store store.GraphStorage
	group singleflight.Group
}

func NewService(s store.GraphStorage) *Service {
	return &Service{store: s}
}

// GetGraph returns every node and every edge whose endpoints are among the
// returned nodes.
//
// A node's type is read from its stored type. Rows written without one are
// treated as raw identifiers and split with graph.Canonicalize, so that
// "Ada Lovelace (Person)" is served as name "Ada Lovelace" with type "Person".
func (s *Service) GetGraph(ctx context.Context) (*common.GraphView, error) {
	// The shared read outlives any single caller; the store's own timeout
	// still bounds it.
	ch := s.group.DoChan("graph", func() (any, error) {
		return s.loadGraph(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			logger.Debug("[Query][GetGraph] Served shared graph read")
		}
		return res.Val.(*common.GraphView), nil
	}
}

func (s *Service) loadGraph(ctx context.Context) (*common.GraphView, error) {
	nodes, err := s.store.ListNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing nodes: %w", err)
	}
	edges, err := s.store.ListRelationships(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing relationships: %w", err)
	}

	view := &common.GraphView{
		Nodes: make([]common.NodeView, 0, len(nodes)),
		Edges: make([]common.EdgeView, 0, len(edges)),
	}

	known := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		known[n.ID] = struct{}{}
		view.Nodes = append(view.Nodes, nodeView(n))
	}

	dropped := 0
	for _, e := range edges {
		_, fromOK := known[e.SourceID]
		_, toOK := known[e.TargetID]
		if !fromOK || !toOK {
			dropped++
			continue
		}
		view.Edges = append(view.Edges, common.EdgeView{
			ID:    e.ID,
			From:  e.SourceID,
			To:    e.TargetID,
			Label: e.Label,
		})
	}
	if dropped > 0 {
		logger.Warn("[Query][GetGraph] Skipped edges with unknown endpoints", "count", dropped)
	}

	return view, nil
}

func nodeView(n common.Node) common.NodeView {
	name, typ := n.Name, n.Type
	if typ == "" {
		if split, splitType := graph.Canonicalize(n.Name); split != "" {
			name, typ = split, splitType
		}
	}

	v := common.NodeView{ID: n.ID, Name: name}
	if typ != "" {
		v.Type = &typ
	}
	return v
}
