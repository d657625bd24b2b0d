package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/fusegraph/fusegraph/pkg/common"
	graphmem "github.com/fusegraph/fusegraph/pkg/graphstore/memory"
	"github.com/fusegraph/fusegraph/pkg/vectorindex"
)

type fakeIndex struct {
	results []vectorindex.Result
	err     error
}

func (f *fakeIndex) Insert(context.Context, common.VectorRecord) error { return nil }
func (f *fakeIndex) Delete(context.Context, []string) error            { return nil }
func (f *fakeIndex) Dimension() int                                    { return 4 }

func (f *fakeIndex) Search(context.Context, []float32, int, vectorindex.Filter) ([]vectorindex.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeResolver struct {
	seeds []string
	err   error
}

func (f *fakeResolver) Resolve(context.Context, string) ([]string, error) {
	return f.seeds, f.err
}

func foundersGraph(t *testing.T) *graphmem.Store {
	t.Helper()
	s := graphmem.New()
	ctx := context.Background()
	nodes := []common.Node{
		{ID: "jane", Type: "person", Attrs: map[string]string{"name": "Jane Doe"}},
		{ID: "acme", Type: "company", Attrs: map[string]string{"name": "Acme"}},
	}
	for _, n := range nodes {
		if err := s.UpsertNode(ctx, n); err != nil {
			t.Fatalf("UpsertNode: %v", err)
		}
	}
	if err := s.UpsertEdge(ctx, common.Edge{From: "jane", To: "acme", Relation: "FOUNDED"}); err != nil {
		t.Fatalf("UpsertEdge: %v", err)
	}
	return s
}

func relationalQuery() *common.Query {
	return &common.Query{
		ID:   "q1",
		Text: "Who founded Acme?",
		SubIntents: []common.SubIntent{
			{Text: "Who founded Acme?", Intent: common.IntentRelational, Embedding: []float32{1, 0, 0, 0}},
		},
	}
}

func TestRetrieveFansOutBothModalities(t *testing.T) {
	t.Parallel()

	index := &fakeIndex{
		results: []vectorindex.Result{
			{
				ID:    "rec-1",
				Score: 0.9,
				Record: common.VectorRecord{
					ID:       "rec-1",
					RefID:    "doc-1",
					Text:     "Jane Doe founded Acme in 1999.",
					Metadata: map[string]string{"chunk_start": "0", "chunk_end": "100"},
				},
			},
		},
	}

	r := NewRetriever(index, foundersGraph(t), &fakeResolver{seeds: []string{"acme"}}, DefaultConfig())

	fragments, gaps, err := r.Retrieve(context.Background(), relationalQuery(), DefaultConfig().Budget)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(gaps) != 0 {
		t.Fatalf("unexpected gaps: %v", gaps)
	}

	var vectorCount, graphCount int
	for _, frag := range fragments {
		switch frag.Modality {
		case common.ModalityVector:
			vectorCount++
			if frag.Prov.Chunk == nil || frag.Prov.Chunk.Start != 0 || frag.Prov.Chunk.End != 100 {
				t.Fatalf("vector provenance wrong: %+v", frag.Prov)
			}
		case common.ModalityGraph:
			graphCount++
			if len(frag.Prov.Hops) == 0 {
				t.Fatalf("graph fragment without hops: %+v", frag)
			}
			if frag.ID != "g:jane:FOUNDED:acme" {
				t.Fatalf("graph fragment id: got %q", frag.ID)
			}
		}
	}
	if vectorCount != 1 || graphCount != 1 {
		t.Fatalf("got %d vector / %d graph fragments, want 1 / 1", vectorCount, graphCount)
	}
}

func TestRetrieveSkipsGraphForFactualIntent(t *testing.T) {
	t.Parallel()

	index := &fakeIndex{}
	r := NewRetriever(index, foundersGraph(t), &fakeResolver{seeds: []string{"acme"}}, DefaultConfig())

	query := relationalQuery()
	query.SubIntents[0].Intent = common.IntentFactual

	fragments, gaps, err := r.Retrieve(context.Background(), query, DefaultConfig().Budget)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	for _, frag := range fragments {
		if frag.Modality == common.ModalityGraph {
			t.Fatalf("graph branch ran for factual intent: %+v", frag)
		}
	}
	if len(gaps) != 0 {
		t.Fatalf("unexpected gaps: %v", gaps)
	}
}

func TestRetrieveDegradesFailedBranchToGap(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.ReadRetries = 1

	index := &fakeIndex{err: errors.New("index offline")}
	r := NewRetriever(index, foundersGraph(t), &fakeResolver{seeds: []string{"acme"}}, cfg)

	fragments, gaps, err := r.Retrieve(context.Background(), relationalQuery(), cfg.Budget)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	// The graph branch still delivered.
	if len(fragments) == 0 {
		t.Fatal("no fragments despite healthy graph branch")
	}
	if len(gaps) != 1 {
		t.Fatalf("got %d gaps, want 1", len(gaps))
	}
	if gaps[0].Modality != common.ModalityVector || gaps[0].SubIntent != 0 {
		t.Fatalf("gap wrong: %+v", gaps[0])
	}
}

func TestRetrieveRecordsGapWhenNoSeedsResolve(t *testing.T) {
	t.Parallel()

	index := &fakeIndex{}
	r := NewRetriever(index, foundersGraph(t), &fakeResolver{seeds: nil}, DefaultConfig())

	_, gaps, err := r.Retrieve(context.Background(), relationalQuery(), DefaultConfig().Budget)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(gaps) != 1 || gaps[0].Modality != common.ModalityGraph {
		t.Fatalf("got %v, want one graph gap", gaps)
	}
}

func TestRetrieveDiscardsPartialsOnCancellation(t *testing.T) {
	t.Parallel()

	index := &fakeIndex{
		results: []vectorindex.Result{
			{ID: "rec-1", Score: 0.9, Record: common.VectorRecord{ID: "rec-1", RefID: "doc-1"}},
		},
	}
	r := NewRetriever(index, foundersGraph(t), &fakeResolver{seeds: []string{"acme"}}, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fragments, gaps, err := r.Retrieve(ctx, relationalQuery(), DefaultConfig().Budget)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if fragments != nil || gaps != nil {
		t.Fatalf("partial results leaked: %v, %v", fragments, gaps)
	}
}
