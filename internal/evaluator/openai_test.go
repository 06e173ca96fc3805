package evaluator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-practice/internal/grading"
)

func chatServer(t *testing.T, status int, content string, seen *string) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			b, _ := io.ReadAll(r.Body)
			*seen = string(b)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "boom", "type": "server_error"}})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id": "chatcmpl-test", "object": "chat.completion", "created": 1, "model": "deepseek-chat",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	ev, err := New(Config{BaseURL: srv.URL + "/v1", APIKey: "test-key"})
	require.NoError(t, err)
	return ev
}

func TestEvaluateJSONReply(t *testing.T) {
	var body string
	ev := chatServer(t, http.StatusOK, `{"score":85,"feedback":"good","suggestions":["cite the law"]}`, &body)

	got, err := ev.Evaluate(context.Background(), grading.EvalRequest{
		QuestionID: "q1", Answer: "F equals m a", ReferenceAnswer: "F = ma",
	})
	require.NoError(t, err)
	assert.Equal(t, grading.Evaluation{Score: 85, Feedback: "good", Suggestions: []string{"cite the law"}}, got)
	assert.Contains(t, body, "F equals m a")
	assert.Contains(t, body, `"model":"deepseek-chat"`)
}

func TestEvaluatePlainTextReply(t *testing.T) {
	ev := chatServer(t, http.StatusOK, "Looks right to me.", nil)
	got, err := ev.Evaluate(context.Background(), grading.EvalRequest{Answer: "x", ReferenceAnswer: "y"})
	require.NoError(t, err)
	assert.Zero(t, got.Score)
	assert.Equal(t, "Looks right to me.", got.Feedback)
	assert.Empty(t, got.Suggestions)
}

func TestEvaluateServerError(t *testing.T) {
	ev := chatServer(t, http.StatusInternalServerError, "", nil)
	_, err := ev.Evaluate(context.Background(), grading.EvalRequest{Answer: "x", ReferenceAnswer: "y"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "500"))
}

func TestParseFencedJSON(t *testing.T) {
	got := Parse("```json\n{\"score\": 72, \"feedback\": \"partial\"}\n```")
	assert.Equal(t, 72.0, got.Score)
	assert.Equal(t, "partial", got.Feedback)
	assert.Equal(t, []string{}, got.Suggestions)
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}
