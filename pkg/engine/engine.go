package engine

import (
	"context"
	"fmt"

	"github.com/fusegraph/fusegraph/pkg/common"
	"github.com/fusegraph/fusegraph/pkg/gen"
	"github.com/fusegraph/fusegraph/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Answer is the engine's response to a query: the structured evidence
// payload and, when a generator is configured, the generated prose.
type Answer struct {
	Payload *common.AnswerPayload `json:"payload"`
	Text    string                `json:"text,omitempty"`
}

// Engine wires planner, retriever, fuser and assembler into the query
// pipeline. The generator is optional; without one the engine returns
// the structured payload only.
type Engine struct {
	planner   *Planner
	retriever *Retriever
	fuser     *Fuser
	assembler *Assembler
	generator gen.Generator
	cfg       Config
	tracer    trace.Tracer
}

func New(planner *Planner, retriever *Retriever, generator gen.Generator, cfg Config) *Engine {
	return &Engine{
		planner:   planner,
		retriever: retriever,
		fuser:     NewFuser(cfg),
		assembler: NewAssembler(cfg),
		generator: generator,
		cfg:       cfg,
		tracer:    otel.Tracer("fusegraph/engine"),
	}
}

// Query runs the full pipeline for one question. A cancelled context
// aborts the query without producing a payload.
func (e *Engine) Query(ctx context.Context, text string, filters common.Filters) (*Answer, error) {
	ctx, span := e.tracer.Start(ctx, "engine.query")
	defer span.End()

	query, err := e.planner.Plan(ctx, text, filters)
	if err != nil {
		return nil, fmt.Errorf("planning failed: %w", err)
	}
	span.SetAttributes(
		attribute.String("query.id", query.ID),
		attribute.Int("query.sub_intents", len(query.SubIntents)),
	)

	fragments, gaps, err := e.retriever.Retrieve(ctx, query, e.cfg.Budget)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}

	results := e.fuser.Fuse(fragments, len(query.SubIntents))
	span.SetAttributes(
		attribute.Int("query.fragments", len(fragments)),
		attribute.Int("query.results", len(results)),
		attribute.Int("query.gaps", len(gaps)),
	)

	payload, err := e.assembler.Assemble(query, results, gaps)
	if err != nil {
		return nil, err
	}

	answer := &Answer{Payload: payload}
	if e.generator != nil {
		answerText, err := e.generator.Generate(ctx, payload)
		if err != nil {
			// Evidence survives a generation failure; callers still get
			// the cited payload.
			logger.Warn("[Engine] Generation failed, returning evidence only", "query_id", query.ID, "err", err)
		} else {
			answer.Text = answerText
		}
	}

	logger.Info("[Engine] Query answered", "query_id", query.ID, "evidence", len(payload.Evidence), "citations", len(payload.Citations), "gaps", len(gaps))

	return answer, nil
}
