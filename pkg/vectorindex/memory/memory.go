package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/fusegraph/fusegraph/pkg/common"
	"github.com/fusegraph/fusegraph/pkg/vectorindex"
)

// Index is an in-memory vectorindex.Index using exact cosine
// similarity. It backs the engine in tests and single-process
// deployments.
type Index struct {
	dimension int

	mu      sync.RWMutex
	records map[string]common.VectorRecord
}

func New(dimension int) *Index {
	return &Index{
		dimension: dimension,
		records:   make(map[string]common.VectorRecord),
	}
}

func (i *Index) Dimension() int {
	return i.dimension
}

func (i *Index) Insert(ctx context.Context, rec common.VectorRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(rec.Embedding) != i.dimension {
		return common.ErrDimensionMismatch
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	i.records[rec.ID] = rec
	return nil
}

func (i *Index) Search(ctx context.Context, vector []float32, topK int, filter vectorindex.Filter) ([]vectorindex.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	results := make([]vectorindex.Result, 0, len(i.records))
	for _, rec := range i.records {
		if !filter.Matches(rec) {
			continue
		}
		results = append(results, vectorindex.Result{
			ID:     rec.ID,
			Score:  cosine(vector, rec.Embedding),
			Record: rec,
		})
	}

	sort.Slice(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		return results[a].ID < results[b].ID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (i *Index) Delete(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	for _, id := range ids {
		delete(i.records, id)
	}
	return nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for idx := range a {
		dot += float64(a[idx]) * float64(b[idx])
		normA += float64(a[idx]) * float64(a[idx])
		normB += float64(b[idx]) * float64(b[idx])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
