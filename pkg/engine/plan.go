package engine

import (
	"fmt"
	"strings"

	"context"

	"github.com/fusegraph/fusegraph/pkg/common"
	"github.com/fusegraph/fusegraph/pkg/embed"
	"github.com/fusegraph/fusegraph/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Planner turns raw query text into an immutable, embedded Query. It
// never partially succeeds: any embedding failure aborts the plan.
type Planner struct {
	gateway    embed.Gateway
	classifier IntentClassifier
	cfg        Config
}

func NewPlanner(gateway embed.Gateway, classifier IntentClassifier, cfg Config) *Planner {
	if classifier == nil {
		classifier = LexicalClassifier{}
	}
	return &Planner{
		gateway:    gateway,
		classifier: classifier,
		cfg:        cfg,
	}
}

// Plan validates the text and filters, classifies intent, expands the
// query into sub-intents and embeds each of them.
func (p *Planner) Plan(ctx context.Context, queryText string, filters common.Filters) (*common.Query, error) {
	text := strings.TrimSpace(queryText)
	if text == "" {
		return nil, fmt.Errorf("%w: empty query text", common.ErrInvalidFilter)
	}
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	classification, err := p.classifier.Classify(ctx, text)
	if err != nil {
		// The classifier is an auxiliary capability; fall back to the
		// deterministic lexical rules rather than failing the query.
		logger.Warn("[Planner] Classifier failed, falling back to lexical rules", "err", err)
		classification, _ = LexicalClassifier{}.Classify(ctx, text)
	}

	texts := expandSubIntents(text, classification.Expansions, p.cfg.MaxSubIntents)

	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate query id: %w", err)
	}

	query := &common.Query{
		ID:         id,
		Text:       text,
		Filters:    filters,
		SubIntents: make([]common.SubIntent, 0, len(texts)),
	}

	for _, t := range texts {
		embedding, err := p.gateway.Embed(ctx, t)
		if err != nil {
			// Planning does not partially succeed.
			return nil, fmt.Errorf("failed to embed sub-intent %q: %w", t, err)
		}
		query.SubIntents = append(query.SubIntents, common.SubIntent{
			Text:      t,
			Intent:    classification.Intent,
			Embedding: embedding,
		})
	}

	logger.Debug("[Planner] Planned query", "query_id", query.ID, "sub_intents", len(query.SubIntents), "intent", string(classification.Intent))

	return query, nil
}

func validateFilters(filters common.Filters) error {
	if filters.NotBefore != nil && filters.NotAfter != nil && filters.NotBefore.After(*filters.NotAfter) {
		return fmt.Errorf("%w: not_before is after not_after", common.ErrInvalidFilter)
	}
	for _, src := range filters.Sources {
		if strings.TrimSpace(src) == "" {
			return fmt.Errorf("%w: empty source in allowlist", common.ErrInvalidFilter)
		}
	}
	return nil
}

// expandSubIntents merges the original text with the classifier's
// paraphrases, dropping duplicates and capping the total. The original
// text is always the first sub-intent.
func expandSubIntents(text string, expansions []string, maxSubIntents int) []string {
	if maxSubIntents <= 0 {
		maxSubIntents = 1
	}

	out := []string{text}
	seen := map[string]struct{}{strings.ToLower(text): {}}

	for _, e := range expansions {
		if len(out) >= maxSubIntents {
			break
		}
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		key := strings.ToLower(e)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}
	return out
}
