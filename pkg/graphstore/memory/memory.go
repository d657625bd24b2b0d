package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fusegraph/fusegraph/pkg/common"
	"github.com/fusegraph/fusegraph/pkg/graphstore"
)

// Store is an in-memory graphstore.Store. It is the authoritative
// reference for traversal semantics and backs the engine in tests and
// single-process deployments.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]common.Node
	edges map[string]common.Edge
}

func New() *Store {
	return &Store{
		nodes: make(map[string]common.Node),
		edges: make(map[string]common.Edge),
	}
}

func (s *Store) UpsertNode(ctx context.Context, node common.Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if node.UpdatedAt.IsZero() {
		node.UpdatedAt = time.Now().UTC()
	}
	s.nodes[node.ID] = node
	return nil
}

func (s *Store) UpsertEdge(ctx context.Context, edge common.Edge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[edge.From]; !ok {
		return graphstore.ErrMissingEndpoint
	}
	if _, ok := s.nodes[edge.To]; !ok {
		return graphstore.ErrMissingEndpoint
	}
	s.edges[edgeKey(edge)] = edge
	return nil
}

func (s *Store) Traverse(ctx context.Context, seeds []string, relationFilter []string, maxDepth, maxNodes int) (*graphstore.Subgraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return graphstore.Traverse(ctx, s.fetchEdges, s.fetchNodes, seeds, relationFilter, maxDepth, maxNodes)
}

func (s *Store) fetchEdges(ctx context.Context, frontier []string, relationFilter []string) ([]common.Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inFrontier := make(map[string]struct{}, len(frontier))
	for _, id := range frontier {
		inFrontier[id] = struct{}{}
	}

	out := make([]common.Edge, 0)
	for _, e := range s.edges {
		if len(relationFilter) > 0 && !slices.Contains(relationFilter, e.Relation) {
			continue
		}
		_, fromOk := inFrontier[e.From]
		_, toOk := inFrontier[e.To]
		if fromOk || toOk {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) fetchNodes(ctx context.Context, ids []string) ([]common.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]common.Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := s.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

// MatchNodes returns nodes whose name occurs in the given text,
// longest names first so the most specific entities win.
func (s *Store) MatchNodes(ctx context.Context, text string, limit int) ([]common.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	lower := strings.ToLower(text)
	matched := make([]common.Node, 0)
	for _, n := range s.nodes {
		name := strings.ToLower(graphstore.NodeName(n))
		if name != "" && strings.Contains(lower, name) {
			matched = append(matched, n)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		ni, nj := graphstore.NodeName(matched[i]), graphstore.NodeName(matched[j])
		if len(ni) != len(nj) {
			return len(ni) > len(nj)
		}
		return matched[i].ID < matched[j].ID
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *Store) DeleteNodes(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doomed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		doomed[id] = struct{}{}
		delete(s.nodes, id)
	}
	for key, e := range s.edges {
		if _, ok := doomed[e.From]; ok {
			delete(s.edges, key)
			continue
		}
		if _, ok := doomed[e.To]; ok {
			delete(s.edges, key)
		}
	}
	return nil
}

func (s *Store) Stats(ctx context.Context) (graphstore.Stats, error) {
	if err := ctx.Err(); err != nil {
		return graphstore.Stats{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return graphstore.Stats{
		Nodes: int64(len(s.nodes)),
		Edges: int64(len(s.edges)),
	}, nil
}

func edgeKey(e common.Edge) string {
	return e.From + "\x00" + e.Relation + "\x00" + e.To
}
