package embed

import (
	"context"
)

// Gateway wraps a text-to-vector capability. Implementations return
// vectors of a fixed dimensionality shared with the vector index; a
// failing or timed-out backend surfaces as common.ErrEmbeddingUnavailable
// so callers can abort planning with a typed error.
type Gateway interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// FitDimension truncates or zero-pads vec to dim. Backends use it to
// normalize model output to the deployment dimensionality.
func FitDimension(vec []float32, dim int) []float32 {
	if len(vec) == dim {
		return vec
	}
	out := make([]float32, dim)
	copy(out, vec)
	return out
}
