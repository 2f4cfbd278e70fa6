package graph

import (
	"context"
	"testing"
)

func seedTriangle(t *testing.T, m *Memory) {
	t.Helper()
	ctx := context.Background()
	if _, err := m.AddEntity(ctx, "a", "person", "Alice", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddEntity(ctx, "b", "person", "Bob", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddEntity(ctx, "c", "person", "Carol", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddRelationship(ctx, "a", "b", "knows", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddRelationship(ctx, "b", "c", "knows", nil); err != nil {
		t.Fatal(err)
	}
}

func TestTraverseRespectsMaxDepth(t *testing.T) {
	m := NewMemory()
	seedTriangle(t, m)
	sub, err := m.Traverse(context.Background(), "a", 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(sub.Nodes) != 2 {
		t.Fatalf("expected 2 nodes within depth 1, got %d", len(sub.Nodes))
	}
	sub, err = m.Traverse(context.Background(), "a", 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(sub.Nodes) != 3 {
		t.Fatalf("expected 3 nodes within depth 2, got %d", len(sub.Nodes))
	}
}

func TestShortestPathFindsRoute(t *testing.T) {
	m := NewMemory()
	seedTriangle(t, m)
	path, found, err := m.ShortestPath(context.Background(), "a", "c", 5)
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatalf("expected path to be found")
	}
	if len(path.Nodes) != 3 {
		t.Fatalf("expected 3-node path a->b->c, got %d nodes", len(path.Nodes))
	}
	if path.Nodes[0].ID != "a" || path.Nodes[len(path.Nodes)-1].ID != "c" {
		t.Fatalf("unexpected path endpoints: %+v", path.Nodes)
	}
}

func TestShortestPathUnreachable(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.AddEntity(ctx, "a", "person", "Alice", nil)
	m.AddEntity(ctx, "z", "person", "Zed", nil)
	_, found, err := m.ShortestPath(ctx, "a", "z", 5)
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatalf("expected no path between disconnected nodes")
	}
}

func TestDeleteEntityRequiresDetachWhenEdgesExist(t *testing.T) {
	m := NewMemory()
	seedTriangle(t, m)
	ok, err := m.DeleteEntity(context.Background(), "b", false)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("expected delete to fail without detach given existing edges")
	}
	ok, err = m.DeleteEntity(context.Background(), "b", true)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("expected detach delete to succeed")
	}
	if _, found, _ := m.GetEntity(context.Background(), "b"); found {
		t.Fatalf("entity b should be gone")
	}
}

func TestSemanticSearchMatchesByName(t *testing.T) {
	m := NewMemory()
	seedTriangle(t, m)
	results, err := m.SemanticSearch(context.Background(), "Alice", nil, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 || results[0].ID != "a" {
		t.Fatalf("expected Alice to rank first, got %+v", results)
	}
}

func TestStatisticsCountsByType(t *testing.T) {
	m := NewMemory()
	seedTriangle(t, m)
	st, err := m.Statistics(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if st.NodesByType["person"] != 3 {
		t.Fatalf("expected 3 person nodes, got %d", st.NodesByType["person"])
	}
	if st.RelationshipsByType["knows"] != 2 {
		t.Fatalf("expected 2 knows edges, got %d", st.RelationshipsByType["knows"])
	}
}
