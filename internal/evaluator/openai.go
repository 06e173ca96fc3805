// Package evaluator scores short answers with an OpenAI-compatible chat
// completion API.
package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mind-engage/mindengage-practice/internal/grading"
)

const (
	DefaultBaseURL = "https://api.deepseek.com/v1"
	DefaultModel   = "deepseek-chat"
)

var ErrNoAPIKey = errors.New("evaluator: api key is required")

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

// OpenAI implements grading.Evaluator.
type OpenAI struct {
	client *openai.Client
	model  string
}

func New(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = DefaultBaseURL
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &OpenAI{client: openai.NewClientWithConfig(config), model: model}, nil
}

var prompt = template.Must(template.New("grade").Parse(`You are an experienced teacher grading a student's short answer.

Reference answer:
{{.ReferenceAnswer}}

Student answer:
{{.Answer}}

Reply with JSON only, in this form:
{"score": 85, "feedback": "Mostly correct, all key points covered...", "suggestions": ["suggestion 1", "suggestion 2"]}

Scoring guide:
- 90-100: complete and accurate, clearly expressed
- 80-89: essentially correct with minor flaws
- 70-79: partly correct, misses key points
- 60-69: incomplete or partly misunderstood
- below 60: wrong or off topic`))

func (e *OpenAI) Evaluate(ctx context.Context, req grading.EvalRequest) (grading.Evaluation, error) {
	var sb strings.Builder
	if err := prompt.Execute(&sb, req); err != nil {
		return grading.Evaluation{}, err
	}
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: sb.String()}},
		Temperature: 0.3,
		MaxTokens:   1000,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return grading.Evaluation{}, fmt.Errorf("evaluator: status %d: %w", apiErr.HTTPStatusCode, err)
		}
		return grading.Evaluation{}, fmt.Errorf("evaluator: %w", err)
	}
	if len(resp.Choices) == 0 {
		return grading.Evaluation{}, errors.New("evaluator: no choices in response")
	}
	return Parse(resp.Choices[0].Message.Content), nil
}

// Parse decodes the model's reply. Anything that is not a JSON evaluation is
// returned verbatim as feedback with a zero score.
func Parse(text string) grading.Evaluation {
	body := strings.TrimSpace(text)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	var ev grading.Evaluation
	if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &ev); err != nil {
		return grading.Evaluation{Feedback: text, Suggestions: []string{}}
	}
	if ev.Suggestions == nil {
		ev.Suggestions = []string{}
	}
	return ev
}
