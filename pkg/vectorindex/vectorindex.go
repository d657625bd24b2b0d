package vectorindex

import (
	"context"
	"time"

	"github.com/fusegraph/fusegraph/pkg/common"
)

// Filter restricts a search to records from certain source documents
// and/or a creation time range. The zero value matches everything.
type Filter struct {
	Sources   []string
	NotBefore *time.Time
	NotAfter  *time.Time
}

// Result is one ranked hit of a similarity search. Score is a
// modality-local similarity (higher is better).
type Result struct {
	ID     string
	Score  float64
	Record common.VectorRecord
}

// Index wraps an approximate nearest-neighbor capability. Insert fails
// with common.ErrDimensionMismatch and leaves the index unchanged when
// the vector length differs from the configured dimensionality. The
// ingestion coordinator is the only writer.
type Index interface {
	Insert(ctx context.Context, rec common.VectorRecord) error
	Search(ctx context.Context, vector []float32, topK int, filter Filter) ([]Result, error)
	Delete(ctx context.Context, ids []string) error
	Dimension() int
}

// Matches reports whether a record passes the filter. Shared by
// backends that filter client-side.
func (f Filter) Matches(rec common.VectorRecord) bool {
	if len(f.Sources) > 0 {
		found := false
		for _, s := range f.Sources {
			if rec.RefID == s || rec.Metadata["source"] == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.NotBefore != nil && rec.CreatedAt.Before(*f.NotBefore) {
		return false
	}
	if f.NotAfter != nil && rec.CreatedAt.After(*f.NotAfter) {
		return false
	}
	return true
}
