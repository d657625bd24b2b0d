package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/fusegraph/fusegraph/pkg/common"

	"github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonrepair"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const classifierPrompt = `You classify a search query for a hybrid retrieval system.
Decide the intent:
- "factual": a direct lookup of a fact or definition
- "relational": asks how entities relate (founders, ownership, membership, connections)
- "summary": asks for an overview or summary of a topic
Also produce up to three short paraphrases of the query, each a standalone search phrase.`

// ChatClassifier classifies intent with an OpenAI-compatible chat model
// using structured output. Malformed model JSON is repaired before
// parsing.
type ChatClassifier struct {
	client *openai.Client
	model  string
}

// NewChatClassifierParams contains configuration for a ChatClassifier.
type NewChatClassifierParams struct {
	Model   string
	BaseURL string
	ApiKey  string
}

func NewChatClassifier(params NewChatClassifierParams) (*ChatClassifier, error) {
	if params.ApiKey == "" {
		return nil, fmt.Errorf("chat classifier requires an API key")
	}

	options := []option.RequestOption{
		option.WithAPIKey(params.ApiKey),
	}
	if params.BaseURL != "" {
		options = append(options, option.WithBaseURL(params.BaseURL))
	}
	client := openai.NewClient(options...)

	return &ChatClassifier{
		client: &client,
		model:  params.Model,
	}, nil
}

func (c *ChatClassifier) Classify(ctx context.Context, text string) (Classification, error) {
	var out Classification

	schemaParam := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        "query_classification",
		Description: openai.String("Intent and paraphrase expansions of a search query."),
		Schema:      generateSchema(out),
		Strict:      openai.Bool(true),
	}

	body := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(classifierPrompt),
			openai.UserMessage(text),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: schemaParam,
			},
		},
		Temperature: openai.Float(0.1),
	}

	response, err := c.client.Chat.Completions.New(ctx, body)
	if err != nil {
		return Classification{}, fmt.Errorf("classifier request failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return Classification{}, fmt.Errorf("classifier returned no choices")
	}

	if err := unmarshalFlexible(response.Choices[0].Message.Content, &out); err != nil {
		return Classification{}, fmt.Errorf("failed to parse classifier output: %w", err)
	}

	switch out.Intent {
	case common.IntentFactual, common.IntentRelational, common.IntentSummary:
	default:
		out.Intent = common.IntentFactual
	}
	return out, nil
}

func generateSchema(value any) any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	t := reflect.TypeOf(value)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	v := reflect.New(t).Interface()
	return reflector.Reflect(v)
}

// unmarshalFlexible parses model-generated JSON, falling back to repair
// for malformed output.
func unmarshalFlexible(input string, out any) error {
	input = strings.TrimSpace(input)

	if err := json.Unmarshal([]byte(input), out); err == nil {
		return nil
	}

	repaired, err := jsonrepair.JSONRepair(input)
	if err != nil {
		return fmt.Errorf("json repair failed: %w", err)
	}
	return json.Unmarshal([]byte(repaired), out)
}
