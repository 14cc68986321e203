// Package storetest holds behaviour tests shared by all GraphStorage
// backends. Each backend calls Run from its own _test.go file.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/OFFIS-RIT/graphloom/backend/pkg/store"
)

// Factory returns an empty store configured with opts. The store is closed
// by the suite.
type Factory func(t *testing.T, opts store.Options) store.GraphStorage

// Run executes the shared suite against the backend produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("UpsertNodeIsIdempotent", func(t *testing.T) { testUpsertNodeIsIdempotent(t, newStore) })
	t.Run("UpsertNodeKeepsFirstType", func(t *testing.T) { testUpsertNodeKeepsFirstType(t, newStore) })
	t.Run("UpsertNodeConcurrent", func(t *testing.T) { testUpsertNodeConcurrent(t, newStore) })
	t.Run("ResolveIDsOmitsUnknown", func(t *testing.T) { testResolveIDsOmitsUnknown(t, newStore) })
	t.Run("InsertRelationshipRequiresNodes", func(t *testing.T) { testInsertRelationshipRequiresNodes(t, newStore) })
	t.Run("DuplicateEdgesAllowed", func(t *testing.T) { testDuplicateEdgesAllowed(t, newStore) })
	t.Run("DuplicateEdgesDisallowed", func(t *testing.T) { testDuplicateEdgesDisallowed(t, newStore) })
}

func open(t *testing.T, newStore Factory, allowDuplicates bool) store.GraphStorage {
	t.Helper()
	opts := store.DefaultOptions()
	opts.AllowDuplicateEdges = allowDuplicates
	s := newStore(t, opts)
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func testUpsertNodeIsIdempotent(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := open(t, newStore, true)

	first, err := s.UpsertNode(ctx, "Ada Lovelace", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := s.UpsertNode(ctx, "Ada Lovelace", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == "" || first != second {
		t.Fatalf("expected the same non-empty id twice, got %q and %q", first, second)
	}

	nodes, err := s.ListNodes(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}
	if nodes[0].ID != first || nodes[0].Name != "Ada Lovelace" {
		t.Fatalf("unexpected node: %+v", nodes[0])
	}
}

func testUpsertNodeKeepsFirstType(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := open(t, newStore, true)

	id, err := s.UpsertNode(ctx, "Paris", "City")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	again, err := s.UpsertNode(ctx, "Paris", "Person")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != again {
		t.Fatalf("expected id %q, got %q", id, again)
	}

	nodes, err := s.ListNodes(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nodes) != 1 || nodes[0].Type != "City" {
		t.Fatalf("expected a single node typed City, got %+v", nodes)
	}
}

func testUpsertNodeConcurrent(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := open(t, newStore, true)

	const workers = 8
	ids := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = s.UpsertNode(ctx, "Analytical Engine", "Invention")
		}(i)
	}
	wg.Wait()

	for i := range workers {
		if errs[i] != nil {
			t.Fatalf("worker %d: unexpected error: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("expected all workers to see id %q, worker %d got %q", ids[0], i, ids[i])
		}
	}

	nodes, err := s.ListNodes(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}
}

func testResolveIDsOmitsUnknown(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := open(t, newStore, true)

	want := make(map[string]string)
	for i := range 3 {
		name := fmt.Sprintf("Node %d", i)
		id, err := s.UpsertNode(ctx, name, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want[name] = id
	}

	got, err := s.ResolveIDs(ctx, []string{"Node 0", "Node 2", "Missing", "Node 0"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 resolved names, got %v", got)
	}
	for _, name := range []string{"Node 0", "Node 2"} {
		if got[name] != want[name] {
			t.Fatalf("expected %q -> %q, got %q", name, want[name], got[name])
		}
	}
	if _, ok := got["Missing"]; ok {
		t.Fatal("expected unknown name to be omitted")
	}

	empty, err := s.ResolveIDs(ctx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty result, got %v", empty)
	}
}

func testInsertRelationshipRequiresNodes(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := open(t, newStore, true)

	src, err := s.UpsertNode(ctx, "A", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, _, err = s.InsertRelationship(ctx, src, "999999", "related")
	if err == nil {
		t.Fatal("expected error for unknown target node")
	}
	if !errors.Is(err, store.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}

	edges, err := s.ListRelationships(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(edges) != 0 {
		t.Fatalf("expected no edges, got %+v", edges)
	}
}

func testDuplicateEdgesAllowed(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := open(t, newStore, true)
	src, dst := twoNodes(t, s)

	first, created, err := s.InsertRelationship(ctx, src, dst, "designed")
	if err != nil || !created {
		t.Fatalf("expected created edge, got created=%v err=%v", created, err)
	}
	second, created, err := s.InsertRelationship(ctx, src, dst, "designed")
	if err != nil || !created {
		t.Fatalf("expected created edge, got created=%v err=%v", created, err)
	}
	if first == second {
		t.Fatalf("expected distinct edge ids, got %q twice", first)
	}

	edges, err := s.ListRelationships(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(edges))
	}
	for _, e := range edges {
		if e.SourceID != src || e.TargetID != dst || e.Label != "designed" {
			t.Fatalf("unexpected edge: %+v", e)
		}
	}
}

func testDuplicateEdgesDisallowed(t *testing.T, newStore Factory) {
	ctx := context.Background()
	s := open(t, newStore, false)
	src, dst := twoNodes(t, s)

	first, created, err := s.InsertRelationship(ctx, src, dst, "designed")
	if err != nil || !created {
		t.Fatalf("expected created edge, got created=%v err=%v", created, err)
	}
	second, created, err := s.InsertRelationship(ctx, src, dst, "designed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Fatal("expected duplicate edge not to be created")
	}
	if second != first {
		t.Fatalf("expected existing edge id %q, got %q", first, second)
	}

	if _, created, err := s.InsertRelationship(ctx, src, dst, "inspired"); err != nil || !created {
		t.Fatalf("expected edge with new label to be created, got created=%v err=%v", created, err)
	}

	edges, err := s.ListRelationships(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(edges))
	}
}

func twoNodes(t *testing.T, s store.GraphStorage) (string, string) {
	t.Helper()
	ctx := context.Background()
	src, err := s.UpsertNode(ctx, "Ada Lovelace", "Person")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dst, err := s.UpsertNode(ctx, "Analytical Engine", "Invention")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return src, dst
}
