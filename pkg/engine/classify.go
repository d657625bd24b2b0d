package engine

import (
	"context"
	"strings"

	"github.com/fusegraph/fusegraph/pkg/common"
)

// Classification is the result of intent classification: the overall
// intent of the query plus paraphrase expansions used as additional
// sub-intents.
type Classification struct {
	Intent     common.Intent `json:"intent" jsonschema_description:"One of factual, relational or summary."`
	Expansions []string      `json:"expansions" jsonschema_description:"Short paraphrases of the query, each a standalone search phrase."`
}

// IntentClassifier is the pluggable classifier capability of the
// planner.
type IntentClassifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

var relationalMarkers = []string{
	"founded", "founder", "related", "relationship", "between",
	"connection", "connected", "works for", "owns", "owned by",
	"member of", "part of", "acquired", "parent", "subsidiary",
	"who is", "who was", "who founded", "link", "linked",
}

var summaryMarkers = []string{
	"summarize", "summarise", "summary", "overview", "describe",
	"explain", "tell me about",
}

var questionPrefixes = []string{
	"who founded", "who owns", "who is", "who was", "who are",
	"what is", "what are", "what was", "when did", "when was",
	"where is", "where was", "why did", "why is", "how did",
	"how does", "how is", "which",
	"who", "what", "when", "where", "why", "how",
}

// LexicalClassifier is the default classifier: keyword rules for the
// intent and question-prefix stripping for expansion. It needs no
// external service and is fully deterministic.
type LexicalClassifier struct{}

func (LexicalClassifier) Classify(_ context.Context, text string) (Classification, error) {
	lower := strings.ToLower(strings.TrimSpace(text))

	intent := common.IntentFactual
	for _, marker := range summaryMarkers {
		if strings.Contains(lower, marker) {
			intent = common.IntentSummary
			break
		}
	}
	if intent == common.IntentFactual {
		for _, marker := range relationalMarkers {
			if strings.Contains(lower, marker) {
				intent = common.IntentRelational
				break
			}
		}
	}

	expansions := make([]string, 0, 2)
	stripped := strings.TrimSuffix(lower, "?")
	for _, prefix := range questionPrefixes {
		if strings.HasPrefix(stripped, prefix+" ") {
			rest := strings.TrimSpace(strings.TrimPrefix(stripped, prefix))
			if rest != "" && rest != stripped {
				expansions = append(expansions, rest)
			}
			break
		}
	}
	if stripped != lower && stripped != "" {
		expansions = append(expansions, stripped)
	}

	return Classification{
		Intent:     intent,
		Expansions: expansions,
	}, nil
}
