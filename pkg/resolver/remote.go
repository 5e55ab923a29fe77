package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

const DefaultModel = openai.ChatModelGPT4o

// OpenAIClient classifies user intent through the OpenAI responses API.
type OpenAIClient struct {
	client openai.Client
	model  openai.ChatModel
}

// NewOpenAIClient builds a remote classifier. Model falls back to
// DefaultModel when empty.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	m := openai.ChatModel(model)
	if model == "" {
		m = DefaultModel
	}

	return &OpenAIClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  m,
	}
}

type classifyInput struct {
	Query      string      `json:"query"`
	Candidates []Candidate `json:"candidates"`
	Locale     string      `json:"locale"`
}

func (c *OpenAIClient) Classify(ctx context.Context, query string, candidates []Candidate, locale string) (json.RawMessage, error) {
	input, err := json.Marshal(classifyInput{
		Query:      query,
		Candidates: candidates,
		Locale:     locale,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal classification input: %w", err)
	}

	response, err := c.client.Responses.New(ctx, responses.ResponseNewParams{
		Model:        c.model,
		Instructions: openai.String(classifyInstructions(locale)),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(string(input)),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return nil, fmt.Errorf("classification request failed: %w", err)
	}

	text := strings.TrimSpace(response.OutputText())
	if text == "" {
		return nil, fmt.Errorf("classification returned empty output")
	}

	// Some models wrap JSON output in a markdown fence.
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	return json.RawMessage(strings.TrimSpace(text)), nil
}

// classifyInstructions describes the three-outcome contract to the model.
// The wording is not part of the external contract; the response shape is.
func classifyInstructions(locale string) string {
	return fmt.Sprintf(`You route operator requests to pre-registered actions.
You receive a JSON object with "query", "candidates" (id, name, description, kind, tags) and "locale".
Choose exactly one outcome:
1. Direct match: one candidate clearly fits and your confidence is at least 0.7. Set matchedConfigId to its id and suggestedConfigIds to null.
2. Ambiguous or broad request: several candidates are relevant. Set matchedConfigId to null and suggestedConfigIds to every relevant candidate id, most relevant first.
3. No match: nothing fits. Set both matchedConfigId and suggestedConfigIds to null.
Reply with JSON only, no prose around it:
{"matchedConfigId": string|null, "suggestedConfigIds": string[]|null, "reply": string, "confidence": number}
"reply" is a short answer for the operator written in the "%s" locale. "confidence" is in [0,1].
Never invent ids that are not in candidates.`, locale)
}
