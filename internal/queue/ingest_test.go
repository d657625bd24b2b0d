package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/fusegraph/fusegraph/pkg/common"
	graphmem "github.com/fusegraph/fusegraph/pkg/graphstore/memory"
	"github.com/fusegraph/fusegraph/pkg/ingest"
	vecmem "github.com/fusegraph/fusegraph/pkg/vectorindex/memory"
)

func TestProcessIngestMessageAppliesBatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	graph := graphmem.New()
	coordinator := ingest.NewCoordinator(graph, vecmem.New(2), nil)

	msg := BatchMessage{
		Message: "test",
		Batch: common.Batch{
			Key: "batch-1",
			Nodes: []common.Node{
				{ID: "jane", Type: "person"},
			},
		},
	}
	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	if err := ProcessIngestMessage(ctx, coordinator, string(body)); err != nil {
		t.Fatalf("ProcessIngestMessage: %v", err)
	}

	stats, err := graph.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Nodes != 1 {
		t.Fatalf("got %d nodes, want 1", stats.Nodes)
	}
}

func TestProcessIngestMessageRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	coordinator := ingest.NewCoordinator(graphmem.New(), vecmem.New(2), nil)

	err := ProcessIngestMessage(context.Background(), coordinator, "{not json")
	// Malformed payloads are permanent failures and must not be
	// requeued.
	if !errors.Is(err, common.ErrIngestionConflict) {
		t.Fatalf("got %v, want ErrIngestionConflict", err)
	}
}
