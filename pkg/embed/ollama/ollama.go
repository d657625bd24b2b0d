package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fusegraph/fusegraph/pkg/common"
	"github.com/fusegraph/fusegraph/pkg/embed"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

const defaultTimeout = 2 * time.Minute

// Gateway implements embed.Gateway using a locally-hosted Ollama server.
type Gateway struct {
	model     string
	dimension int
	timeout   time.Duration

	reqLock *semaphore.Weighted

	Client *api.Client
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

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewGateway creates an Ollama-backed embedding gateway. It connects to
// the server at BaseURL (or the Ollama default if empty) and uses the
// configured model for all embedding requests.
func NewGateway(params NewGatewayParams) (*Gateway, error) {
	var (
		u   *url.URL
		err error
	)

	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	httpClient := http.DefaultClient
	if params.ApiKey != "" {
		httpClient = &http.Client{
			Transport: &headerTransport{
				headers: map[string]string{
					"Authorization": "Bearer " + params.ApiKey,
				},
				rt: http.DefaultTransport,
			},
		}
	}

	var client *api.Client
	if u != nil {
		client = api.NewClient(u, httpClient)
	} else {
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, err
		}
	}

	maxConcurrent := params.MaxConcurrentRequests
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if params.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", params.Dimension)
	}

	return &Gateway{
		model:     params.Model,
		dimension: params.Dimension,
		timeout:   timeout,
		reqLock:   semaphore.NewWeighted(maxConcurrent),
		Client:    client,
	}, nil
}

// Dimension returns the configured vector dimensionality.
func (g *Gateway) Dimension() int {
	return g.dimension
}

// Embed creates a vector embedding for the given text using the
// configured model. Empty input yields a zero vector without a backend
// call. Backend failures are wrapped as common.ErrEmbeddingUnavailable.
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

	req := &api.EmbedRequest{
		Model: g.model,
		Input: text,
	}

	res, err := g.Client.Embed(rCtx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrEmbeddingUnavailable, err)
	}
	if len(res.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", common.ErrEmbeddingUnavailable)
	}

	out := make([]float32, 0, len(res.Embeddings[0]))
	for _, v := range res.Embeddings[0] {
		out = append(out, float32(v))
	}
	return embed.FitDimension(out, g.dimension), nil
}
