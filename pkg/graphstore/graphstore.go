package graphstore

import (
	"context"
	"errors"

	"github.com/fusegraph/fusegraph/pkg/common"
)

// ErrMissingEndpoint is returned by UpsertEdge when one of the edge's
// endpoint nodes does not exist yet. Edges are only committed after
// both endpoints exist.
var ErrMissingEndpoint = errors.New("edge endpoint node does not exist")

// Stats summarizes the stored graph.
type Stats struct {
	Nodes int64 `json:"nodes"`
	Edges int64 `json:"edges"`
}

// Subgraph is the result of a bounded traversal. Depth maps each node
// to its hop distance from the nearest seed; Paths maps each node to
// the hop chain that reached it (empty for seeds).
type Subgraph struct {
	Nodes []common.Node
	Edges []common.Edge
	Depth map[string]int
	Paths map[string][]common.Hop
}

// Store wraps a capability to persist and traverse typed nodes and
// edges. The ingestion coordinator is the only writer; query-side
// components only read. Reads are snapshot-tolerant: they may observe a
// graph that is concurrently being updated and must not fail merely
// because of that race.
type Store interface {
	UpsertNode(ctx context.Context, node common.Node) error
	UpsertEdge(ctx context.Context, edge common.Edge) error

	// Traverse expands breadth-first from the seed nodes, following
	// edges in both directions. It never returns nodes beyond maxDepth
	// hops from any seed and never returns more than maxNodes nodes;
	// expansion stops early once the ceiling is reached. An empty
	// relationFilter matches every relation.
	Traverse(ctx context.Context, seeds []string, relationFilter []string, maxDepth, maxNodes int) (*Subgraph, error)

	// MatchNodes returns nodes whose name occurs in the given text,
	// used to seed traversal from a query span.
	MatchNodes(ctx context.Context, text string, limit int) ([]common.Node, error)

	// DeleteNodes removes the given nodes and every edge touching them.
	// Used by ingestion compensation.
	DeleteNodes(ctx context.Context, ids []string) error

	Stats(ctx context.Context) (Stats, error)
}

// NodeName returns the display name of a node: the name attribute when
// present, the identifier otherwise.
func NodeName(n common.Node) string {
	if name, ok := n.Attrs["name"]; ok && name != "" {
		return name
	}
	return n.ID
}
