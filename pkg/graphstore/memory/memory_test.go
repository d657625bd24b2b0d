package memory

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/fusegraph/fusegraph/pkg/common"
	"github.com/fusegraph/fusegraph/pkg/graphstore"
)

func seedStore(t *testing.T, nodes []common.Node, edges []common.Edge) *Store {
	t.Helper()
	s := New()
	ctx := context.Background()
	for _, n := range nodes {
		if err := s.UpsertNode(ctx, n); err != nil {
			t.Fatalf("UpsertNode(%s): %v", n.ID, err)
		}
	}
	for _, e := range edges {
		if err := s.UpsertEdge(ctx, e); err != nil {
			t.Fatalf("UpsertEdge(%s->%s): %v", e.From, e.To, err)
		}
	}
	return s
}

// a - b - c - d is a chain; e hangs off b with a different relation.
func chainStore(t *testing.T) *Store {
	t.Helper()
	return seedStore(t,
		[]common.Node{
			{ID: "a", Type: "person"},
			{ID: "b", Type: "company"},
			{ID: "c", Type: "company"},
			{ID: "d", Type: "person"},
			{ID: "e", Type: "place"},
		},
		[]common.Edge{
			{From: "a", To: "b", Relation: "FOUNDED"},
			{From: "b", To: "c", Relation: "OWNS"},
			{From: "c", To: "d", Relation: "EMPLOYS"},
			{From: "b", To: "e", Relation: "LOCATED_IN"},
		},
	)
}

func TestUpsertEdgeRequiresEndpoints(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	if err := s.UpsertNode(ctx, common.Node{ID: "a"}); err != nil {
		t.Fatalf("UpsertNode: %v", err)
	}

	err := s.UpsertEdge(ctx, common.Edge{From: "a", To: "ghost", Relation: "KNOWS"})
	if !errors.Is(err, graphstore.ErrMissingEndpoint) {
		t.Fatalf("got %v, want ErrMissingEndpoint", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Edges != 0 {
		t.Fatalf("edge was committed despite missing endpoint: %+v", stats)
	}
}

func TestTraverseDepthBound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		maxDepth  int
		wantNodes []string
	}{
		{
			name:      "depth_zero_returns_only_seed",
			maxDepth:  0,
			wantNodes: []string{"a"},
		},
		{
			name:      "depth_one_reaches_direct_neighbors",
			maxDepth:  1,
			wantNodes: []string{"a", "b"},
		},
		{
			name:      "depth_two_reaches_two_hops",
			maxDepth:  2,
			wantNodes: []string{"a", "b", "c", "e"},
		},
		{
			name:      "depth_three_reaches_whole_chain",
			maxDepth:  3,
			wantNodes: []string{"a", "b", "c", "d", "e"},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			s := chainStore(t)
			sub, err := s.Traverse(context.Background(), []string{"a"}, nil, tc.maxDepth, 0)
			if err != nil {
				t.Fatalf("Traverse: %v", err)
			}

			got := make([]string, 0, len(sub.Nodes))
			for _, n := range sub.Nodes {
				got = append(got, n.ID)
			}
			if !reflect.DeepEqual(got, tc.wantNodes) {
				t.Fatalf("got %v, want %v", got, tc.wantNodes)
			}
		})
	}
}

func TestTraverseNodeCeiling(t *testing.T) {
	t.Parallel()

	s := chainStore(t)
	sub, err := s.Traverse(context.Background(), []string{"a"}, nil, 10, 3)
	if err != nil {
		t.Fatalf("Traverse: %v", err)
	}

	if len(sub.Nodes) != 3 {
		t.Fatalf("got %d nodes, want 3", len(sub.Nodes))
	}
	// Seeds count toward the ceiling.
	if sub.Depth["a"] != 0 {
		t.Fatalf("seed depth: got %d, want 0", sub.Depth["a"])
	}
	// Every returned edge is fully inside the returned node set.
	for _, e := range sub.Edges {
		if _, ok := sub.Depth[e.From]; !ok {
			t.Fatalf("edge %s->%s leaves node set", e.From, e.To)
		}
		if _, ok := sub.Depth[e.To]; !ok {
			t.Fatalf("edge %s->%s leaves node set", e.From, e.To)
		}
	}
}

func TestTraverseRelationFilter(t *testing.T) {
	t.Parallel()

	s := chainStore(t)
	sub, err := s.Traverse(context.Background(), []string{"b"}, []string{"OWNS"}, 2, 0)
	if err != nil {
		t.Fatalf("Traverse: %v", err)
	}

	got := make([]string, 0, len(sub.Nodes))
	for _, n := range sub.Nodes {
		got = append(got, n.ID)
	}
	want := []string{"b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestTraversePathsAreHopChains(t *testing.T) {
	t.Parallel()

	s := chainStore(t)
	sub, err := s.Traverse(context.Background(), []string{"a"}, nil, 3, 0)
	if err != nil {
		t.Fatalf("Traverse: %v", err)
	}

	want := []common.Hop{
		{EntityID: "b", Relation: "FOUNDED"},
		{EntityID: "c", Relation: "OWNS"},
		{EntityID: "d", Relation: "EMPLOYS"},
	}
	if !reflect.DeepEqual(sub.Paths["d"], want) {
		t.Fatalf("got %v, want %v", sub.Paths["d"], want)
	}
	if len(sub.Paths["a"]) != 0 {
		t.Fatalf("seed path should be empty, got %v", sub.Paths["a"])
	}
}

func TestMatchNodesLongestNameFirst(t *testing.T) {
	t.Parallel()

	s := seedStore(t,
		[]common.Node{
			{ID: "acme", Attrs: map[string]string{"name": "Acme"}},
			{ID: "acme-corp", Attrs: map[string]string{"name": "Acme Corporation"}},
			{ID: "other", Attrs: map[string]string{"name": "Unrelated"}},
		},
		nil,
	)

	matched, err := s.MatchNodes(context.Background(), "Who founded Acme Corporation?", 10)
	if err != nil {
		t.Fatalf("MatchNodes: %v", err)
	}

	got := make([]string, 0, len(matched))
	for _, n := range matched {
		got = append(got, n.ID)
	}
	want := []string{"acme-corp", "acme"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestDeleteNodesRemovesTouchingEdges(t *testing.T) {
	t.Parallel()

	s := chainStore(t)
	ctx := context.Background()

	if err := s.DeleteNodes(ctx, []string{"b"}); err != nil {
		t.Fatalf("DeleteNodes: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Nodes != 4 {
		t.Fatalf("got %d nodes, want 4", stats.Nodes)
	}
	// Edges a->b, b->c and b->e all touched b.
	if stats.Edges != 1 {
		t.Fatalf("got %d edges, want 1", stats.Edges)
	}
}
