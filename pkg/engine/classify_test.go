package engine

import (
	"context"
	"testing"

	"github.com/fusegraph/fusegraph/pkg/common"
)

func TestLexicalClassifierIntent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want common.Intent
	}{
		{
			name: "founder_question_is_relational",
			text: "Who founded Acme Corporation?",
			want: common.IntentRelational,
		},
		{
			name: "connection_question_is_relational",
			text: "What is the connection between Acme and Globex?",
			want: common.IntentRelational,
		},
		{
			name: "summary_request",
			text: "Summarize the history of Acme.",
			want: common.IntentSummary,
		},
		{
			name: "tell_me_about_is_summary",
			text: "Tell me about the Berlin office",
			want: common.IntentSummary,
		},
		{
			name: "plain_lookup_is_factual",
			text: "When was the Berlin office opened?",
			want: common.IntentFactual,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got, err := LexicalClassifier{}.Classify(context.Background(), tc.text)
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if got.Intent != tc.want {
				t.Fatalf("got %s, want %s", got.Intent, tc.want)
			}
		})
	}
}

func TestLexicalClassifierExpansions(t *testing.T) {
	t.Parallel()

	got, err := LexicalClassifier{}.Classify(context.Background(), "Who founded Acme Corporation?")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if len(got.Expansions) == 0 {
		t.Fatal("no expansions produced")
	}
	// Question-prefix stripping yields the bare entity span.
	if got.Expansions[0] != "acme corporation" {
		t.Fatalf("got %q, want %q", got.Expansions[0], "acme corporation")
	}
}
