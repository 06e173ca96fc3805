package grading

import (
	"context"
	"sort"

	"github.com/mind-engage/mindengage-practice/internal/catalog"
)

// Submission is what a learner hands in for one question. Only the field
// matching the question type is read.
type Submission struct {
	Labels []string          // SINGLE, MULTIPLE, JUDGE
	Blanks map[string]string // FILL_IN_BLANK, keyed by blank id
	Text   string            // SHORT_ANSWER
}

// BlankDetail is the per-blank outcome of a fill-in-blank grading.
type BlankDetail struct {
	BlankID         string   `json:"blankId"`
	UserAnswer      string   `json:"userAnswer"`
	IsCorrect       bool     `json:"isCorrect"`
	AcceptedAnswers []string `json:"acceptedAnswers"`
}

// Result is the outcome of grading a single submission.
type Result struct {
	IsCorrect bool `json:"isCorrect"`
	// Score is a 0-100 scale: 100/0 for choice questions, the blank ratio for
	// fill-in-blank and the evaluator's number for short answers.
	Score       float64       `json:"score"`
	Correct     int           `json:"correct,omitempty"`
	Total       int           `json:"total,omitempty"`
	Details     []BlankDetail `json:"details,omitempty"`
	NeedsManual bool          `json:"needsManual,omitempty"` // short answer with no evaluator
	Feedback    string        `json:"feedback,omitempty"`
	Suggestions []string      `json:"suggestions,omitempty"`
}

// Strategy grades a single question type.
type Strategy interface {
	Grade(ctx context.Context, q catalog.Question, sub Submission) (Result, error)
}

// Grader routes by question type to the correct Strategy. Grading of the
// automatic types never fails; only the short-answer evaluator may return an error.
type Grader interface {
	Grade(ctx context.Context, q catalog.Question, sub Submission) (Result, error)
}

type defaultGrader struct {
	strategies map[catalog.QuestionType]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q catalog.Question, sub Submission) (Result, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{NeedsManual: true, Feedback: "no strategy available"}, nil
	}
	return s.Grade(ctx, q, sub)
}

type Option func(*config)

type config struct {
	evaluator Evaluator
}

// WithEvaluator installs the external short-answer evaluator.
func WithEvaluator(e Evaluator) Option { return func(c *config) { c.evaluator = e } }

// NewDefaultGrader installs built-in strategies.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}
	return &defaultGrader{
		strategies: map[catalog.QuestionType]Strategy{
			catalog.TypeSingle:      singleStrategy{},
			catalog.TypeJudge:       singleStrategy{},
			catalog.TypeMultiple:    multipleStrategy{},
			catalog.TypeFillInBlank: fillBlankStrategy{},
			catalog.TypeShortAnswer: shortAnswerStrategy{evaluator: cfg.evaluator},
		},
	}
}

// --- Strategies ---

type singleStrategy struct{}

func (singleStrategy) Grade(_ context.Context, q catalog.Question, sub Submission) (Result, error) {
	if len(sub.Labels) != 1 || len(q.Answer) != 1 {
		return Result{}, nil
	}
	return choiceResult(sub.Labels[0] == q.Answer[0]), nil
}

type multipleStrategy struct{}

func (multipleStrategy) Grade(_ context.Context, q catalog.Question, sub Submission) (Result, error) {
	return choiceResult(MatchesLabels(sub.Labels, q.Answer)), nil
}

type fillBlankStrategy struct{}

func (fillBlankStrategy) Grade(_ context.Context, q catalog.Question, sub Submission) (Result, error) {
	return GradeBlanks(q.Blanks, sub.Blanks), nil
}

type shortAnswerStrategy struct{ evaluator Evaluator }

func (s shortAnswerStrategy) Grade(ctx context.Context, q catalog.Question, sub Submission) (Result, error) {
	if s.evaluator == nil || q.ReferenceAnswer == "" {
		return Result{NeedsManual: true, Feedback: "manual grading required"}, nil
	}
	ev, err := s.evaluator.Evaluate(ctx, EvalRequest{
		QuestionID:      q.ID,
		Answer:          sub.Text,
		ReferenceAnswer: q.ReferenceAnswer,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Score: ev.Score, Feedback: ev.Feedback, Suggestions: ev.Suggestions}, nil
}

// helpers

func choiceResult(ok bool) Result {
	if ok {
		return Result{IsCorrect: true, Score: 100}
	}
	return Result{}
}

// Canonical returns the sorted, deduplicated label set.
func Canonical(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// MatchesLabels compares two label sets ignoring order and repetition.
func MatchesLabels(submitted, answer []string) bool {
	a, b := Canonical(submitted), Canonical(answer)
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
