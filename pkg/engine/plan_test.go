package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/fusegraph/fusegraph/pkg/common"
)

type fakeGateway struct {
	dimension int
	failAfter int
	calls     int
}

func (g *fakeGateway) Dimension() int {
	return g.dimension
}

func (g *fakeGateway) Embed(_ context.Context, text string) ([]float32, error) {
	g.calls++
	if g.failAfter > 0 && g.calls > g.failAfter {
		return nil, fmt.Errorf("%w: backend down", common.ErrEmbeddingUnavailable)
	}
	out := make([]float32, g.dimension)
	for i, r := range text {
		out[i%g.dimension] += float32(r)
	}
	return out, nil
}

func TestPlanValidatesInput(t *testing.T) {
	t.Parallel()

	early := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		text    string
		filters common.Filters
	}{
		{
			name: "empty_text",
			text: "   ",
		},
		{
			name:    "inverted_time_range",
			text:    "who founded acme",
			filters: common.Filters{NotBefore: &late, NotAfter: &early},
		},
		{
			name:    "empty_source_in_allowlist",
			text:    "who founded acme",
			filters: common.Filters{Sources: []string{"doc-1", " "}},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			p := NewPlanner(&fakeGateway{dimension: 4}, nil, DefaultConfig())
			_, err := p.Plan(context.Background(), tc.text, tc.filters)
			if !errors.Is(err, common.ErrInvalidFilter) {
				t.Fatalf("got %v, want ErrInvalidFilter", err)
			}
		})
	}
}

func TestPlanEmbedsEverySubIntent(t *testing.T) {
	t.Parallel()

	p := NewPlanner(&fakeGateway{dimension: 4}, nil, DefaultConfig())

	query, err := p.Plan(context.Background(), "Who founded Acme Corporation?", common.Filters{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}

	if query.ID == "" {
		t.Fatal("query has no id")
	}
	if query.Text != "Who founded Acme Corporation?" {
		t.Fatalf("query text changed: %q", query.Text)
	}
	if len(query.SubIntents) == 0 {
		t.Fatal("no sub-intents planned")
	}
	if query.SubIntents[0].Text != query.Text {
		t.Fatalf("first sub-intent is not the original text: %q", query.SubIntents[0].Text)
	}
	for i, sub := range query.SubIntents {
		if sub.Intent != common.IntentRelational {
			t.Fatalf("sub-intent %d intent: got %s, want relational", i, sub.Intent)
		}
		if len(sub.Embedding) != 4 {
			t.Fatalf("sub-intent %d has no embedding", i)
		}
	}
}

func TestPlanNeverPartiallySucceeds(t *testing.T) {
	t.Parallel()

	// The second embedding call fails; the whole plan must fail.
	p := NewPlanner(&fakeGateway{dimension: 4, failAfter: 1}, nil, DefaultConfig())

	_, err := p.Plan(context.Background(), "Who founded Acme Corporation?", common.Filters{})
	if !errors.Is(err, common.ErrEmbeddingUnavailable) {
		t.Fatalf("got %v, want ErrEmbeddingUnavailable", err)
	}
}

type failingClassifier struct{}

func (failingClassifier) Classify(context.Context, string) (Classification, error) {
	return Classification{}, errors.New("model unavailable")
}

func TestPlanFallsBackToLexicalClassifier(t *testing.T) {
	t.Parallel()

	p := NewPlanner(&fakeGateway{dimension: 4}, failingClassifier{}, DefaultConfig())

	query, err := p.Plan(context.Background(), "Who founded Acme Corporation?", common.Filters{})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if query.SubIntents[0].Intent != common.IntentRelational {
		t.Fatalf("fallback classification: got %s, want relational", query.SubIntents[0].Intent)
	}
}

func TestExpandSubIntents(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		text          string
		expansions    []string
		maxSubIntents int
		want          []string
	}{
		{
			name:          "original_always_first",
			text:          "who founded acme",
			expansions:    []string{"acme founders"},
			maxSubIntents: 4,
			want:          []string{"who founded acme", "acme founders"},
		},
		{
			name:          "duplicates_dropped_case_insensitively",
			text:          "who founded acme",
			expansions:    []string{"Who Founded Acme", "acme founders", "acme founders"},
			maxSubIntents: 4,
			want:          []string{"who founded acme", "acme founders"},
		},
		{
			name:          "capped_at_max",
			text:          "q",
			expansions:    []string{"a", "b", "c", "d"},
			maxSubIntents: 3,
			want:          []string{"q", "a", "b"},
		},
		{
			name:          "blank_expansions_skipped",
			text:          "q",
			expansions:    []string{"  ", "", "a"},
			maxSubIntents: 4,
			want:          []string{"q", "a"},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := expandSubIntents(tc.text, tc.expansions, tc.maxSubIntents)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}
