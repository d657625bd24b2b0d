package engine

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/fusegraph/fusegraph/internal/util"
	"github.com/fusegraph/fusegraph/pkg/common"
	"github.com/fusegraph/fusegraph/pkg/graphstore"
	"github.com/fusegraph/fusegraph/pkg/link"
	"github.com/fusegraph/fusegraph/pkg/logger"
	"github.com/fusegraph/fusegraph/pkg/vectorindex"

	"golang.org/x/sync/errgroup"
)

// Retriever fans a planned query out over the vector index and the
// graph store. All lookups of one query run concurrently, each under
// its own timeout; a failing branch degrades to a coverage gap instead
// of aborting the query.
type Retriever struct {
	index    vectorindex.Index
	graph    graphstore.Store
	resolver link.Resolver
	cfg      Config
}

func NewRetriever(index vectorindex.Index, graph graphstore.Store, resolver link.Resolver, cfg Config) *Retriever {
	return &Retriever{
		index:    index,
		graph:    graph,
		resolver: resolver,
		cfg:      cfg,
	}
}

// Retrieve runs every branch of the query concurrently and returns the
// flat fragment sequence plus the coverage gaps. If ctx is cancelled
// before the fan-out completes, all partial results are discarded and
// the context error is returned.
func (r *Retriever) Retrieve(ctx context.Context, query *common.Query, budget Budget) ([]common.Fragment, []common.CoverageGap, error) {
	var (
		mu        sync.Mutex
		fragments []common.Fragment
		gaps      []common.CoverageGap
	)

	eg, gctx := errgroup.WithContext(ctx)

	for i, sub := range query.SubIntents {
		idx := i
		subIntent := sub

		eg.Go(func() error {
			frags, err := r.vectorBranch(gctx, query, idx, subIntent, budget)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				gaps = append(gaps, common.CoverageGap{
					SubIntent: idx,
					Modality:  common.ModalityVector,
					Reason:    err.Error(),
				})
				return nil
			}
			fragments = append(fragments, frags...)
			return nil
		})

		if subIntent.Intent != common.IntentRelational {
			continue
		}

		eg.Go(func() error {
			frags, err := r.graphBranch(gctx, idx, subIntent, budget)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				gaps = append(gaps, common.CoverageGap{
					SubIntent: idx,
					Modality:  common.ModalityGraph,
					Reason:    err.Error(),
				})
				return nil
			}
			fragments = append(fragments, frags...)
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		// Cancelled mid-flight: partial results are discarded.
		return nil, nil, err
	}

	logger.Debug("[Retrieve] Fan-out complete", "query_id", query.ID, "fragments", len(fragments), "gaps", len(gaps))

	return fragments, gaps, nil
}

func (r *Retriever) vectorBranch(ctx context.Context, query *common.Query, idx int, sub common.SubIntent, budget Budget) ([]common.Fragment, error) {
	bctx, cancel := context.WithTimeout(ctx, budget.BranchTimeout)
	defer cancel()

	filter := vectorindex.Filter{
		Sources:   query.Filters.Sources,
		NotBefore: query.Filters.NotBefore,
		NotAfter:  query.Filters.NotAfter,
	}

	results, err := util.RetryWithContext(bctx, r.cfg.ReadRetries, r.cfg.ReadBackoff, func(ctx context.Context) ([]vectorindex.Result, error) {
		return r.index.Search(ctx, sub.Embedding, budget.TopK, filter)
	})
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	frags := make([]common.Fragment, 0, len(results))
	for _, res := range results {
		start := metaInt(res.Record.Metadata, "chunk_start")
		end := metaInt(res.Record.Metadata, "chunk_end")
		frags = append(frags, common.Fragment{
			ID:        "v:" + res.ID,
			Modality:  common.ModalityVector,
			SubIntent: idx,
			Text:      res.Record.Text,
			Score:     res.Score,
			Document:  res.Record.RefID,
			Prov: common.Provenance{
				Chunk: &common.ChunkRef{
					DocumentID: res.Record.RefID,
					Start:      start,
					End:        end,
				},
			},
		})
	}
	return frags, nil
}

func (r *Retriever) graphBranch(ctx context.Context, idx int, sub common.SubIntent, budget Budget) ([]common.Fragment, error) {
	bctx, cancel := context.WithTimeout(ctx, budget.BranchTimeout)
	defer cancel()

	seeds, err := util.RetryWithContext(bctx, r.cfg.ReadRetries, r.cfg.ReadBackoff, func(ctx context.Context) ([]string, error) {
		return r.resolver.Resolve(ctx, sub.Text)
	})
	if err != nil {
		return nil, fmt.Errorf("entity linking failed: %w", err)
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("no seed entities resolved")
	}

	subgraph, err := util.RetryWithContext(bctx, r.cfg.ReadRetries, r.cfg.ReadBackoff, func(ctx context.Context) (*graphstore.Subgraph, error) {
		return r.graph.Traverse(ctx, seeds, nil, budget.MaxDepth, budget.MaxNodes)
	})
	if err != nil {
		return nil, fmt.Errorf("graph traversal failed: %w", err)
	}

	names := make(map[string]string, len(subgraph.Nodes))
	for _, n := range subgraph.Nodes {
		names[n.ID] = graphstore.NodeName(n)
	}

	frags := make([]common.Fragment, 0, len(subgraph.Edges))
	for _, e := range subgraph.Edges {
		// The nearer endpoint anchors the provenance chain; ties break
		// on the lexically smaller id for determinism.
		near, far := e.From, e.To
		if subgraph.Depth[far] < subgraph.Depth[near] ||
			(subgraph.Depth[far] == subgraph.Depth[near] && far < near) {
			near, far = far, near
		}

		hops := make([]common.Hop, 0, len(subgraph.Paths[near])+1)
		hops = append(hops, subgraph.Paths[near]...)
		hops = append(hops, common.Hop{EntityID: far, Relation: e.Relation})

		text := fmt.Sprintf("%s -[%s]-> %s", names[e.From], e.Relation, names[e.To])
		if desc := e.Attrs["description"]; desc != "" {
			text += ": " + desc
		}

		frags = append(frags, common.Fragment{
			ID:        "g:" + e.From + ":" + e.Relation + ":" + e.To,
			Modality:  common.ModalityGraph,
			SubIntent: idx,
			Text:      text,
			Score:     1.0 / float64(1+subgraph.Depth[near]),
			Entities:  [2]string{e.From, e.To},
			Relation:  e.Relation,
			Prov: common.Provenance{
				Hops: hops,
			},
		})
	}
	return frags, nil
}

func metaInt(metadata map[string]string, key string) int {
	if metadata == nil {
		return 0
	}
	n, err := strconv.Atoi(metadata[key])
	if err != nil {
		return 0
	}
	return n
}
