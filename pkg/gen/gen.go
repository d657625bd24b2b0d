package gen

import (
	"context"

	"github.com/fusegraph/fusegraph/pkg/common"
)

// Generator turns an assembled answer payload into prose. The flow is
// strictly one-directional: generators consume the evidence list and
// citation map and never feed back into retrieval, so a downstream
// model cannot introduce citations the assembler did not produce.
type Generator interface {
	Generate(ctx context.Context, payload *common.AnswerPayload) (string, error)
}
