package engine

import (
	"fmt"

	"github.com/fusegraph/fusegraph/pkg/common"
	"github.com/fusegraph/fusegraph/pkg/logger"

	"github.com/pkoukk/tiktoken-go"
)

// Assembler turns ranked fused results into the structured answer
// payload handed to the language-generation boundary. Citations are
// numbered in order of first use across the evidence list.
type Assembler struct {
	cfg     Config
	encoder *tiktoken.Tiktoken
}

func NewAssembler(cfg Config) *Assembler {
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		// Token clipping is an optimization, not a correctness
		// requirement. Run without it when the encoding is unavailable.
		logger.Warn("[Assembler] Token encoder unavailable, evidence will not be clipped", "err", err)
		encoder = nil
	}
	return &Assembler{cfg: cfg, encoder: encoder}
}

// Assemble builds the answer payload for a query from its fused
// results. An empty result set is an error: synthesis never fabricates
// an answer without evidence.
func (a *Assembler) Assemble(query *common.Query, results []common.FusedResult, gaps []common.CoverageGap) (*common.AnswerPayload, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no fused results for query %s", common.ErrInsufficientEvidence, query.ID)
	}

	payload := &common.AnswerPayload{
		QueryID:  query.ID,
		Question: query.Text,
		Evidence: make([]common.EvidenceItem, 0, len(results)),
		Gaps:     gaps,
	}

	ordinals := make(map[string]int)
	for _, res := range results {
		item := common.EvidenceItem{
			Text:       a.clip(res.Text),
			Score:      res.Score,
			Modality:   res.Modality,
			Provenance: res.Provenance,
		}

		seen := make(map[int]struct{})
		for _, prov := range res.Provenance {
			ref := prov.CitationRef()
			if ref == "" {
				continue
			}
			ord, ok := ordinals[ref]
			if !ok {
				ord = len(ordinals) + 1
				ordinals[ref] = ord
				payload.Citations = append(payload.Citations, common.Citation{
					Ordinal: ord,
					Ref:     ref,
				})
			}
			if _, dup := seen[ord]; dup {
				continue
			}
			seen[ord] = struct{}{}
			item.Citations = append(item.Citations, ord)
		}

		payload.Evidence = append(payload.Evidence, item)
	}

	return payload, nil
}

// clip truncates evidence text to the configured token budget.
func (a *Assembler) clip(text string) string {
	if a.encoder == nil || a.cfg.EvidenceTokenBudget <= 0 {
		return text
	}
	tokens := a.encoder.Encode(text, nil, nil)
	if len(tokens) <= a.cfg.EvidenceTokenBudget {
		return text
	}
	return a.encoder.Decode(tokens[:a.cfg.EvidenceTokenBudget])
}
