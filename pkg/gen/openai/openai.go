package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/fusegraph/fusegraph/pkg/common"
	"github.com/fusegraph/fusegraph/pkg/gen"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const answerPrompt = `You answer questions using ONLY the numbered evidence below.
Cite evidence inline with its bracketed number, e.g. [1].
If the evidence does not answer the question, say so. Never invent
facts or citation numbers that are not in the evidence list.`

// ChatGenerator implements gen.Generator against an OpenAI-compatible
// chat endpoint.
type ChatGenerator struct {
	client *openai.Client
	model  string
}

var _ gen.Generator = (*ChatGenerator)(nil)

// NewChatGeneratorParams contains configuration for a ChatGenerator.
type NewChatGeneratorParams struct {
	Model   string
	BaseURL string
	ApiKey  string
}

func NewChatGenerator(params NewChatGeneratorParams) (*ChatGenerator, error) {
	if params.ApiKey == "" {
		return nil, fmt.Errorf("chat generator requires an API key")
	}

	options := []option.RequestOption{
		option.WithAPIKey(params.ApiKey),
	}
	if params.BaseURL != "" {
		options = append(options, option.WithBaseURL(params.BaseURL))
	}
	client := openai.NewClient(options...)

	return &ChatGenerator{
		client: &client,
		model:  params.Model,
	}, nil
}

func (g *ChatGenerator) Generate(ctx context.Context, payload *common.AnswerPayload) (string, error) {
	body := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(answerPrompt),
			openai.UserMessage(formatEvidence(payload)),
		},
		Temperature: openai.Float(0.2),
	}

	response, err := g.client.Chat.Completions.New(ctx, body)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("generation returned no choices")
	}
	return response.Choices[0].Message.Content, nil
}

// formatEvidence renders the payload as a numbered evidence block. Each
// evidence item carries the citation ordinals the model may use.
func formatEvidence(payload *common.AnswerPayload) string {
	var b strings.Builder

	b.WriteString("Question: " + payload.Question + "\n\n")
	b.WriteString("Evidence:\n")
	for _, item := range payload.Evidence {
		refs := make([]string, 0, len(item.Citations))
		for _, ord := range item.Citations {
			refs = append(refs, fmt.Sprintf("[%d]", ord))
		}
		b.WriteString(fmt.Sprintf("- %s %s\n", item.Text, strings.Join(refs, "")))
	}

	b.WriteString("\nSources:\n")
	for _, citation := range payload.Citations {
		b.WriteString(fmt.Sprintf("[%d] %s\n", citation.Ordinal, citation.Ref))
	}

	return b.String()
}
