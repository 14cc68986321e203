package query

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/OFFIS-RIT/graphloom/backend/pkg/common"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/graph"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/store"
	"github.com/OFFIS-RIT/graphloom/backend/pkg/store/sqlite"
)

// staticStore serves fixed rows, including rows a relational backend
// would reject.
type staticStore struct {
	nodes []common.Node
	edges []common.Edge
	err   error
}

func (s *staticStore) UpsertNode(ctx context.Context, name string, typ string) (string, error) {
	return "", errors.New("read only")
}

func (s *staticStore) ResolveIDs(ctx context.Context, names []string) (map[string]string, error) {
	return map[string]string{}, nil
}

func (s *staticStore) InsertRelationship(ctx context.Context, sourceID, targetID, label string) (string, bool, error) {
	return "", false, errors.New("read only")
}

func (s *staticStore) ListNodes(ctx context.Context) ([]common.Node, error) {
	return s.nodes, s.err
}

func (s *staticStore) ListRelationships(ctx context.Context) ([]common.Edge, error) {
	return s.edges, nil
}

func (s *staticStore) Close() error {
	return nil
}

func TestGetGraph_Scenario(t *testing.T) {
	ctx := context.Background()
	s, err := sqlite.New(ctx, ":memory:", store.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer s.Close()

	p, err := graph.NewPipeline(graph.NewPipelineParams{Store: s})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records := []common.RawRecord{{
		Nodes: []common.RawNode{{ID: "Ada Lovelace (Person)"}, {ID: "Analytical Engine (Invention)"}},
		Relationships: []common.RawRelationship{{
			Source: "Ada Lovelace (Person)", HasSource: true,
			Target: "Analytical Engine (Invention)", HasTarget: true,
			Label: "designed", HasLabel: true,
		}},
	}}
	if _, err := p.Ingest(ctx, records); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	view, err := NewService(s).GetGraph(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(view.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(view.Nodes))
	}
	ids := map[string]string{}
	for _, n := range view.Nodes {
		if n.Type == nil {
			t.Fatalf("expected typed node, got %+v", n)
		}
		ids[n.Name] = n.ID
		switch n.Name {
		case "Ada Lovelace":
			if *n.Type != "Person" {
				t.Fatalf("expected type Person, got %q", *n.Type)
			}
		case "Analytical Engine":
			if *n.Type != "Invention" {
				t.Fatalf("expected type Invention, got %q", *n.Type)
			}
		default:
			t.Fatalf("unexpected node %q", n.Name)
		}
	}

	if len(view.Edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(view.Edges))
	}
	e := view.Edges[0]
	if e.From != ids["Ada Lovelace"] || e.To != ids["Analytical Engine"] || e.Label != "designed" {
		t.Fatalf("unexpected edge: %+v", e)
	}
}

func TestGetGraph_FiltersDanglingEdges(t *testing.T) {
	s := &staticStore{
		nodes: []common.Node{{ID: "1", Name: "A"}, {ID: "2", Name: "B"}},
		edges: []common.Edge{
			{ID: "10", SourceID: "1", TargetID: "2", Label: "ok"},
			{ID: "11", SourceID: "1", TargetID: "3", Label: "gone"},
			{ID: "12", SourceID: "4", TargetID: "2", Label: "gone"},
		},
	}

	view, err := NewService(s).GetGraph(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(view.Edges) != 1 || view.Edges[0].ID != "10" {
		t.Fatalf("expected only edge 10, got %+v", view.Edges)
	}

	known := map[string]bool{}
	for _, n := range view.Nodes {
		known[n.ID] = true
	}
	for _, e := range view.Edges {
		if !known[e.From] || !known[e.To] {
			t.Fatalf("edge %s references unknown node", e.ID)
		}
	}
}

func TestGetGraph_NodeTypes(t *testing.T) {
	s := &staticStore{
		nodes: []common.Node{
			{ID: "1", Name: "Paris"},
			{ID: "2", Name: "Ada Lovelace", Type: "Person"},
			{ID: "3", Name: "Charles Babbage (Person)"},
			{ID: "4", Name: "Smith (Jones)", Type: "Person"},
			{ID: "5", Name: "(Person)"},
		},
	}

	view, err := NewService(s).GetGraph(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		id       string
		wantName string
		wantType string
	}{
		{id: "1", wantName: "Paris"},
		{id: "2", wantName: "Ada Lovelace", wantType: "Person"},
		{id: "3", wantName: "Charles Babbage", wantType: "Person"},
		{id: "4", wantName: "Smith (Jones)", wantType: "Person"},
		{id: "5", wantName: "(Person)"},
	}
	for i, tc := range tests {
		t.Run(tc.id, func(t *testing.T) {
			n := view.Nodes[i]
			if n.ID != tc.id || n.Name != tc.wantName {
				t.Fatalf("expected %s/%q, got %s/%q", tc.id, tc.wantName, n.ID, n.Name)
			}
			if tc.wantType == "" {
				if n.Type != nil {
					t.Fatalf("expected nil type, got %q", *n.Type)
				}
				return
			}
			if n.Type == nil || *n.Type != tc.wantType {
				t.Fatalf("expected type %q, got %v", tc.wantType, n.Type)
			}
		})
	}
}

func TestGetGraph_JSONShape(t *testing.T) {
	s := &staticStore{nodes: []common.Node{{ID: "1", Name: "Paris"}}}

	view, err := NewService(s).GetGraph(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := json.Marshal(view)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `{"nodes":[{"id":"1","name":"Paris","type":null}],"edges":[]}`
	if string(data) != want {
		t.Fatalf("expected %s, got %s", want, data)
	}
}

func TestGetGraph_StoreError(t *testing.T) {
	s := &staticStore{err: store.Wrap("list nodes", errors.New("connection reset"))}

	_, err := NewService(s).GetGraph(context.Background())
	if !errors.Is(err, store.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

// blockingStore holds ListNodes open until release is closed and reports
// the state of the read's context at that point.
type blockingStore struct {
	staticStore
	started chan struct{}
	release chan struct{}
	readErr chan error
}

func (s *blockingStore) ListNodes(ctx context.Context) ([]common.Node, error) {
	close(s.started)
	<-s.release
	s.readErr <- ctx.Err()
	return s.nodes, nil
}

func TestGetGraph_CallerCancelDoesNotAbortSharedRead(t *testing.T) {
	s := &blockingStore{
		staticStore: staticStore{nodes: []common.Node{{ID: "1", Name: "Paris"}}},
		started:     make(chan struct{}),
		release:     make(chan struct{}),
		readErr:     make(chan error, 1),
	}
	svc := NewService(s)

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := svc.GetGraph(ctx)
		errs <- err
	}()

	<-s.started
	cancel()
	if err := <-errs; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled for the cancelled caller, got %v", err)
	}

	close(s.release)
	if err := <-s.readErr; err != nil {
		t.Fatalf("expected the shared read to keep running, got %v", err)
	}
}
