package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/fusegraph/fusegraph/pkg/common"
	vecmem "github.com/fusegraph/fusegraph/pkg/vectorindex/memory"

	"github.com/fusegraph/fusegraph/pkg/link"
)

type constGateway struct {
	dimension int
}

func (g constGateway) Dimension() int {
	return g.dimension
}

func (g constGateway) Embed(context.Context, string) ([]float32, error) {
	out := make([]float32, g.dimension)
	for i := range out {
		out[i] = 1
	}
	return out, nil
}

func TestEngineAnswersWithCitedEvidence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	graph := foundersGraph(t)

	index := vecmem.New(4)
	err := index.Insert(ctx, common.VectorRecord{
		ID:        "rec-1",
		Embedding: []float32{1, 1, 1, 1},
		RefID:     "doc-1",
		Text:      "Jane Doe founded Acme in 1999.",
		Metadata:  map[string]string{"chunk_start": "0", "chunk_end": "100"},
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	cfg := DefaultConfig()
	gateway := constGateway{dimension: 4}
	planner := NewPlanner(gateway, nil, cfg)
	retriever := NewRetriever(index, graph, link.NewLexicalResolver(graph, 0), cfg)
	eng := New(planner, retriever, nil, cfg)

	answer, err := eng.Query(ctx, "Who founded Acme?", common.Filters{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}

	payload := answer.Payload
	if payload == nil || len(payload.Evidence) == 0 {
		t.Fatal("no evidence in answer")
	}
	if len(payload.Citations) == 0 {
		t.Fatal("no citations in answer")
	}

	var sawGraph, sawVector bool
	for _, item := range payload.Evidence {
		switch item.Modality {
		case common.ModalityGraph:
			sawGraph = true
		case common.ModalityVector:
			sawVector = true
		}
		if len(item.Citations) == 0 {
			t.Fatalf("evidence item without citations: %+v", item)
		}
	}
	if !sawGraph || !sawVector {
		t.Fatalf("expected evidence from both modalities, graph=%v vector=%v", sawGraph, sawVector)
	}
}

func TestEngineReturnsErrorWithoutEvidence(t *testing.T) {
	t.Parallel()

	graph := foundersGraph(t)
	index := vecmem.New(4)

	cfg := DefaultConfig()
	planner := NewPlanner(constGateway{dimension: 4}, nil, cfg)
	// The resolver finds no entities in the query, so both branches come
	// back empty.
	retriever := NewRetriever(index, graph, &fakeResolver{}, cfg)
	eng := New(planner, retriever, nil, cfg)

	_, err := eng.Query(context.Background(), "something entirely unrelated", common.Filters{})
	if !errors.Is(err, common.ErrInsufficientEvidence) {
		t.Fatalf("got %v, want ErrInsufficientEvidence", err)
	}
}

func TestEngineAbortsOnCancelledContext(t *testing.T) {
	t.Parallel()

	graph := foundersGraph(t)
	index := vecmem.New(4)

	cfg := DefaultConfig()
	planner := NewPlanner(constGateway{dimension: 4}, nil, cfg)
	retriever := NewRetriever(index, graph, link.NewLexicalResolver(graph, 0), cfg)
	eng := New(planner, retriever, nil, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	answer, err := eng.Query(ctx, "Who founded Acme?", common.Filters{})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if answer != nil {
		t.Fatalf("payload produced despite cancellation: %+v", answer)
	}
}
