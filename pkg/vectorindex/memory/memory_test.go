package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fusegraph/fusegraph/pkg/common"
	"github.com/fusegraph/fusegraph/pkg/vectorindex"
)

func TestInsertRejectsDimensionMismatch(t *testing.T) {
	t.Parallel()

	idx := New(3)
	ctx := context.Background()

	err := idx.Insert(ctx, common.VectorRecord{
		ID:        "v1",
		Embedding: []float32{1, 0},
	})
	if !errors.Is(err, common.ErrDimensionMismatch) {
		t.Fatalf("got %v, want ErrDimensionMismatch", err)
	}

	// The index is left unchanged.
	results, err := idx.Search(ctx, []float32{1, 0, 0}, 10, vectorindex.Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("got %d results, want 0", len(results))
	}
}

func TestSearchRanksByCosineSimilarity(t *testing.T) {
	t.Parallel()

	idx := New(2)
	ctx := context.Background()

	records := []common.VectorRecord{
		{ID: "aligned", Embedding: []float32{1, 0}},
		{ID: "diagonal", Embedding: []float32{1, 1}},
		{ID: "orthogonal", Embedding: []float32{0, 1}},
	}
	for _, rec := range records {
		if err := idx.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert(%s): %v", rec.ID, err)
		}
	}

	results, err := idx.Search(ctx, []float32{1, 0}, 2, vectorindex.Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].ID != "aligned" || results[1].ID != "diagonal" {
		t.Fatalf("got order %s, %s; want aligned, diagonal", results[0].ID, results[1].ID)
	}
	if results[0].Score <= results[1].Score {
		t.Fatalf("scores not descending: %f, %f", results[0].Score, results[1].Score)
	}
}

func TestSearchAppliesFilters(t *testing.T) {
	t.Parallel()

	old := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	idx := New(2)
	ctx := context.Background()

	records := []common.VectorRecord{
		{ID: "old-a", Embedding: []float32{1, 0}, RefID: "doc-a", CreatedAt: old},
		{ID: "new-a", Embedding: []float32{1, 0}, RefID: "doc-a", CreatedAt: recent},
		{ID: "new-b", Embedding: []float32{1, 0}, RefID: "doc-b", CreatedAt: recent},
	}
	for _, rec := range records {
		if err := idx.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert(%s): %v", rec.ID, err)
		}
	}

	tests := []struct {
		name   string
		filter vectorindex.Filter
		want   []string
	}{
		{
			name:   "unfiltered_returns_all",
			filter: vectorindex.Filter{},
			want:   []string{"new-a", "new-b", "old-a"},
		},
		{
			name:   "source_allowlist",
			filter: vectorindex.Filter{Sources: []string{"doc-b"}},
			want:   []string{"new-b"},
		},
		{
			name:   "not_before_cutoff",
			filter: vectorindex.Filter{NotBefore: &cutoff},
			want:   []string{"new-a", "new-b"},
		},
		{
			name:   "not_after_cutoff",
			filter: vectorindex.Filter{NotAfter: &cutoff},
			want:   []string{"old-a"},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			results, err := idx.Search(ctx, []float32{1, 0}, 10, tc.filter)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			got := make([]string, 0, len(results))
			for _, r := range results {
				got = append(got, r.ID)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("got %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestDeleteRemovesRecords(t *testing.T) {
	t.Parallel()

	idx := New(2)
	ctx := context.Background()

	for _, id := range []string{"v1", "v2"} {
		if err := idx.Insert(ctx, common.VectorRecord{ID: id, Embedding: []float32{1, 0}}); err != nil {
			t.Fatalf("Insert(%s): %v", id, err)
		}
	}
	if err := idx.Delete(ctx, []string{"v1"}); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	results, err := idx.Search(ctx, []float32{1, 0}, 10, vectorindex.Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "v2" {
		t.Fatalf("got %v, want only v2", results)
	}
}
