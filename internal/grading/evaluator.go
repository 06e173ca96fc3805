package grading

import "context"

// MaxShortAnswerLen bounds the text forwarded to the evaluator.
const MaxShortAnswerLen = 5000

type EvalRequest struct {
	QuestionID      string
	Answer          string
	ReferenceAnswer string
}

// Evaluation is passed through to the caller unchanged.
type Evaluation struct {
	Score       float64  `json:"score"`
	Feedback    string   `json:"feedback"`
	Suggestions []string `json:"suggestions"`
}

// Evaluator scores free-text answers against a reference answer.
type Evaluator interface {
	Evaluate(ctx context.Context, req EvalRequest) (Evaluation, error)
}
