package graphstore

import (
	"context"
	"slices"
	"sort"

	"github.com/fusegraph/fusegraph/pkg/common"
)

// EdgeFetcher returns every edge touching any node of the frontier,
// restricted to the given relations when the filter is non-empty.
type EdgeFetcher func(ctx context.Context, frontier []string, relationFilter []string) ([]common.Edge, error)

// NodeFetcher returns the nodes for the given ids, skipping unknown ids.
type NodeFetcher func(ctx context.Context, ids []string) ([]common.Node, error)

// Traverse is the shared bounded breadth-first expansion used by every
// backend. Keeping the cap bookkeeping in one place means the
// depth/ceiling semantics are identical across memory and SQL stores.
//
// Invariants: no returned node is more than maxDepth hops from its
// nearest seed, and at most maxNodes nodes are returned (the seeds
// count toward the ceiling). maxNodes <= 0 means no ceiling. The output
// is deterministic for a given graph: nodes sorted by id, edges by
// (from, relation, to).
func Traverse(
	ctx context.Context,
	fetchEdges EdgeFetcher,
	fetchNodes NodeFetcher,
	seeds []string,
	relationFilter []string,
	maxDepth int,
	maxNodes int,
) (*Subgraph, error) {
	depth := make(map[string]int)
	paths := make(map[string][]common.Hop)

	sortedSeeds := slices.Clone(seeds)
	sort.Strings(sortedSeeds)
	sortedSeeds = slices.Compact(sortedSeeds)

	seedNodes, err := fetchNodes(ctx, sortedSeeds)
	if err != nil {
		return nil, err
	}

	frontier := make([]string, 0, len(seedNodes))
	for _, n := range seedNodes {
		if maxNodes > 0 && len(depth) >= maxNodes {
			break
		}
		depth[n.ID] = 0
		paths[n.ID] = nil
		frontier = append(frontier, n.ID)
	}

	collected := make(map[string]common.Edge)

	for d := 0; d < maxDepth && len(frontier) > 0; d++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		edges, err := fetchEdges(ctx, frontier, relationFilter)
		if err != nil {
			return nil, err
		}
		sort.Slice(edges, func(i, j int) bool {
			if edges[i].From != edges[j].From {
				return edges[i].From < edges[j].From
			}
			if edges[i].Relation != edges[j].Relation {
				return edges[i].Relation < edges[j].Relation
			}
			return edges[i].To < edges[j].To
		})

		next := make([]string, 0)
		for _, e := range edges {
			var from, to string
			if _, ok := depth[e.From]; ok {
				from, to = e.From, e.To
			} else {
				from, to = e.To, e.From
			}

			if _, seen := depth[to]; seen {
				collected[edgeKey(e)] = e
				continue
			}
			if maxNodes > 0 && len(depth) >= maxNodes {
				continue
			}

			depth[to] = d + 1
			hop := common.Hop{EntityID: to, Relation: e.Relation}
			base := paths[from]
			path := make([]common.Hop, 0, len(base)+1)
			path = append(path, base...)
			path = append(path, hop)
			paths[to] = path
			collected[edgeKey(e)] = e
			next = append(next, to)
		}
		frontier = next
	}

	ids := make([]string, 0, len(depth))
	for id := range depth {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	nodes, err := fetchNodes(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	out := &Subgraph{
		Nodes: nodes,
		Depth: depth,
		Paths: paths,
	}
	for _, e := range collected {
		// Keep only edges fully inside the returned node set.
		if _, ok := depth[e.From]; !ok {
			continue
		}
		if _, ok := depth[e.To]; !ok {
			continue
		}
		out.Edges = append(out.Edges, e)
	}
	sort.Slice(out.Edges, func(i, j int) bool {
		if out.Edges[i].From != out.Edges[j].From {
			return out.Edges[i].From < out.Edges[j].From
		}
		if out.Edges[i].Relation != out.Edges[j].Relation {
			return out.Edges[i].Relation < out.Edges[j].Relation
		}
		return out.Edges[i].To < out.Edges[j].To
	})

	return out, nil
}

func edgeKey(e common.Edge) string {
	return e.From + "\x00" + e.Relation + "\x00" + e.To
}
