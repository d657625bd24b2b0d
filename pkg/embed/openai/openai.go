package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fusegraph/fusegraph/pkg/common"
	"github.com/fusegraph/fusegraph/pkg/embed"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

const defaultTimeout = 2 * time.Minute

// Gateway implements embed.Gateway against an OpenAI-compatible
// embeddings endpoint.
type Gateway struct {
	model     string
	dimension int
	timeout   time.Duration

	reqLock *semaphore.Weighted

	Client *openai.Client
}

// NewGatewayParams contains configuration options for creating a Gateway.
type NewGatewayParams struct {
	Model     string
	Dimension int

	BaseURL string
	ApiKey  string

	Timeout               time.Duration
	MaxConcurrentRequests int64
}

// NewGateway creates an OpenAI-backed embedding gateway.
func NewGateway(params NewGatewayParams) (*Gateway, error) {
	if params.ApiKey == "" {
		return nil, fmt.Errorf("openai embedding gateway requires an API key")
	}
	if params.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", params.Dimension)
	}

	options := []option.RequestOption{
		option.WithAPIKey(params.ApiKey),
	}
	if params.BaseURL != "" {
		options = append(options, option.WithBaseURL(params.BaseURL))
	}
	client := openai.NewClient(options...)

	maxConcurrent := params.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Gateway{
		model:     params.Model,
		dimension: params.Dimension,
		timeout:   timeout,
		reqLock:   semaphore.NewWeighted(maxConcurrent),
		Client:    &client,
	}, nil
}

// Dimension returns the configured vector dimensionality.
func (g *Gateway) Dimension() int {
	return g.dimension
}

// Embed creates a vector embedding for the given text. Empty input
// yields a zero vector without a backend call. Backend failures are
// wrapped as common.ErrEmbeddingUnavailable.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return make([]float32, g.dimension), nil
	}

	rCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.reqLock.Acquire(rCtx, 1); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrEmbeddingUnavailable, err)
	}
	defer g.reqLock.Release(1)

	body := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		Model: g.model,
	}

	response, err := g.Client.Embeddings.New(rCtx, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrEmbeddingUnavailable, err)
	}
	if len(response.Data) != 1 {
		return nil, fmt.Errorf("%w: unexpected embedding response size %d", common.ErrEmbeddingUnavailable, len(response.Data))
	}

	out := make([]float32, 0, len(response.Data[0].Embedding))
	for _, v := range response.Data[0].Embedding {
		out = append(out, float32(v))
	}
	return embed.FitDimension(out, g.dimension), nil
}
