package link

import (
	"context"

	"github.com/fusegraph/fusegraph/pkg/graphstore"
)

// Resolver maps a text span to candidate entity identifiers. It is the
// capability retrieval uses to seed graph traversal.
type Resolver interface {
	Resolve(ctx context.Context, span string) ([]string, error)
}

// LexicalResolver resolves entities by matching known node names
// against the span. It is the default resolver; deployments can swap in
// a dedicated entity-linking service behind the same interface.
type LexicalResolver struct {
	store graphstore.Store
	limit int
}

func NewLexicalResolver(store graphstore.Store, limit int) *LexicalResolver {
	if limit <= 0 {
		limit = 8
	}
	return &LexicalResolver{store: store, limit: limit}
}

func (r *LexicalResolver) Resolve(ctx context.Context, span string) ([]string, error) {
	nodes, err := r.store.MatchNodes(ctx, span, r.limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids, nil
}
