// Package llm adds an optional natural-language layer on top of computed
// facts. The model only ever rephrases numbers it is given; every figure
// in the output must already exist in the facts payload.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"monobudget/internal/analytics"
)

// Result is the strict JSON contract the model must return.
type Result struct {
	Summary  string   `json:"summary"`
	Insights []string `json:"insights"`
	NextStep string   `json:"next_step"`
}

// chatClient is the slice of the OpenAI API the enricher uses, split out
// so tests can fake completions.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Enricher turns a facts object into a short Ukrainian narrative.
type Enricher struct {
	client chatClient
	model  string
}

func New(apiKey, model string) (*Enricher, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm: api key is not set")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Enricher{client: openai.NewClient(apiKey), model: model}, nil
}

const systemPrompt = "Ти — помічник з фінансової грамотності. " +
	"Ти аналізуєш ТІЛЬКИ надані цифри (facts JSON). " +
	"Не вигадуй дані та не припускай того, чого немає у facts. " +
	"Не давай інвестиційних, медичних або юридичних порад. " +
	"Не обіцяй гарантованих результатів."

const responseSchema = `{"summary": "string (2-4 речення)", ` +
	`"insights": ["string (3-7 пунктів, кожен має містити конкретну цифру/відсоток із facts)"], ` +
	`"next_step": "string (1 конкретна дія на 7 днів)"}`

// GenerateReport asks the model for a summary of the period's facts.
// Malformed or incomplete model output is an error: the caller falls back
// to the numeric report.
func (e *Enricher) GenerateReport(ctx context.Context, facts *analytics.Facts, periodLabel string) (*Result, error) {
	factsJSON, err := json.Marshal(facts)
	if err != nil {
		return nil, fmt.Errorf("llm: marshal facts: %w", err)
	}

	user := fmt.Sprintf(
		"Період: %s\nЗгенеруй короткий аналіз витрат та конкретні рекомендації.\n"+
			"Поверни ВИКЛЮЧНО валідний JSON (без markdown).\nJSON schema: %s\n\nfacts: %s",
		periodLabel, responseSchema, factsJSON,
	)

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("llm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("llm: empty completion")
	}

	return parseResult(resp.Choices[0].Message.Content)
}

func parseResult(content string) (*Result, error) {
	var out Result
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &out); err != nil {
		snippet := content
		if len(snippet) > 300 {
			snippet = snippet[:300]
		}
		return nil, fmt.Errorf("llm: non-JSON output: %s", snippet)
	}

	out.Summary = strings.TrimSpace(out.Summary)
	out.NextStep = strings.TrimSpace(out.NextStep)

	insights := out.Insights[:0]
	for _, in := range out.Insights {
		if s := strings.TrimSpace(in); s != "" {
			insights = append(insights, s)
		}
	}
	out.Insights = insights

	if out.Summary == "" || out.NextStep == "" || len(out.Insights) == 0 {
		return nil, fmt.Errorf("llm: JSON missing fields")
	}
	return &out, nil
}
