package engine

import (
	"sort"

	"github.com/fusegraph/fusegraph/pkg/common"
)

// Fuser merges the fragments of a fan-out into a deduplicated, ranked
// result list. Fusion is a pure function of its input set: permuting
// the input fragments never changes the output ordering.
type Fuser struct {
	cfg Config
}

func NewFuser(cfg Config) *Fuser {
	return &Fuser{cfg: cfg}
}

type cluster struct {
	key        string
	modality   common.Modality
	fragments  []common.Fragment
	subIntents map[int]struct{}
	bestNorm   float64
	minProv    int
}

// Fuse deduplicates fragments by source key, normalizes scores within
// each modality, rewards clusters that multiple sub-intents converged
// on, and returns at most cfg.MaxResults results in descending score
// order.
func (f *Fuser) Fuse(fragments []common.Fragment, subIntentCount int) []common.FusedResult {
	if len(fragments) == 0 {
		return nil
	}

	norms := normalizeByModality(fragments)

	clusters := make(map[string]*cluster)
	for i, frag := range fragments {
		key := frag.SourceKey()
		c, ok := clusters[key]
		if !ok {
			c = &cluster{
				key:        key,
				modality:   frag.Modality,
				subIntents: make(map[int]struct{}),
				minProv:    frag.Prov.Length(),
			}
			clusters[key] = c
		}
		c.fragments = append(c.fragments, frag)
		c.subIntents[frag.SubIntent] = struct{}{}
		if norms[i] > c.bestNorm {
			c.bestNorm = norms[i]
		}
		if l := frag.Prov.Length(); l < c.minProv {
			c.minProv = l
		}
	}

	results := make([]common.FusedResult, 0, len(clusters))
	for _, c := range clusters {
		convergence := 0.0
		if subIntentCount > 1 {
			convergence = float64(len(c.subIntents)-1) / float64(subIntentCount-1)
		}
		score := f.cfg.Fusion.VectorWeight*c.bestNorm + f.cfg.Fusion.ConvergenceWeight*convergence

		// Canonical member order within the cluster so the retained
		// text and provenance do not depend on arrival order.
		sort.Slice(c.fragments, func(a, b int) bool {
			fa, fb := c.fragments[a], c.fragments[b]
			if fa.Score != fb.Score {
				return fa.Score > fb.Score
			}
			return fa.ID < fb.ID
		})

		ids := make([]string, 0, len(c.fragments))
		prov := make([]common.Provenance, 0, len(c.fragments))
		seen := make(map[string]struct{}, len(c.fragments))
		for _, frag := range c.fragments {
			if _, dup := seen[frag.ID]; dup {
				continue
			}
			seen[frag.ID] = struct{}{}
			ids = append(ids, frag.ID)
			prov = append(prov, frag.Prov)
		}

		results = append(results, common.FusedResult{
			Key:         c.key,
			Score:       score,
			Modality:    c.modality,
			Text:        c.fragments[0].Text,
			FragmentIDs: ids,
			Provenance:  prov,
		})
	}

	minProv := func(r common.FusedResult) int {
		m := r.Provenance[0].Length()
		for _, p := range r.Provenance[1:] {
			if l := p.Length(); l < m {
				m = l
			}
		}
		return m
	}

	sort.Slice(results, func(a, b int) bool {
		ra, rb := results[a], results[b]
		if ra.Score != rb.Score {
			return ra.Score > rb.Score
		}
		// Tie-break: shorter provenance, then graph over vector, then
		// the lexically smaller key.
		pa, pb := minProv(ra), minProv(rb)
		if pa != pb {
			return pa < pb
		}
		if ra.Modality != rb.Modality {
			return ra.Modality == common.ModalityGraph
		}
		return ra.Key < rb.Key
	})

	if f.cfg.MaxResults > 0 && len(results) > f.cfg.MaxResults {
		results = results[:f.cfg.MaxResults]
	}
	return results
}

// normalizeByModality min-max scales raw scores within each modality so
// that cosine similarities and depth-derived graph scores become
// comparable. A modality with a single distinct score maps to 1.
func normalizeByModality(fragments []common.Fragment) []float64 {
	type bounds struct {
		min, max float64
		set      bool
	}
	byModality := make(map[common.Modality]*bounds)
	for _, frag := range fragments {
		b, ok := byModality[frag.Modality]
		if !ok {
			b = &bounds{}
			byModality[frag.Modality] = b
		}
		if !b.set {
			b.min, b.max, b.set = frag.Score, frag.Score, true
			continue
		}
		if frag.Score < b.min {
			b.min = frag.Score
		}
		if frag.Score > b.max {
			b.max = frag.Score
		}
	}

	norms := make([]float64, len(fragments))
	for i, frag := range fragments {
		b := byModality[frag.Modality]
		if b.max == b.min {
			norms[i] = 1
			continue
		}
		norms[i] = (frag.Score - b.min) / (b.max - b.min)
	}
	return norms
}
