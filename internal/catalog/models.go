package catalog

import (
	"context"
	"errors"
)

type QuestionType string

const (
	TypeSingle      QuestionType = "SINGLE"
	TypeMultiple    QuestionType = "MULTIPLE"
	TypeJudge       QuestionType = "JUDGE"
	TypeFillInBlank QuestionType = "FILL_IN_BLANK"
	TypeShortAnswer QuestionType = "SHORT_ANSWER"
)

// IsChoice reports whether answers are option labels.
func (t QuestionType) IsChoice() bool {
	return t == TypeSingle || t == TypeMultiple || t == TypeJudge
}

type Blank struct {
	ID              string   `json:"id"`
	AcceptedAnswers []string `json:"acceptedAnswers"`
	CaseSensitive   bool     `json:"caseSensitive,omitempty"`
}

// Question is immutable once loaded. Answer holds one label for SINGLE/JUDGE
// and the full label set for MULTIPLE.
type Question struct {
	ID              string       `json:"id"`
	BankID          string       `json:"bankId"`
	Type            QuestionType `json:"type"`
	Options         []string     `json:"options,omitempty"`
	Answer          []string     `json:"answer,omitempty"`
	Blanks          []Blank      `json:"blanks,omitempty"`
	ReferenceAnswer string       `json:"referenceAnswer,omitempty"`
}

// ScoreTable is the bank-configured weight per question type used by mock exams.
type ScoreTable map[QuestionType]float64

// DefaultScoreTable applies when a bank carries no score configuration.
func DefaultScoreTable() ScoreTable {
	return ScoreTable{TypeSingle: 1, TypeMultiple: 2, TypeJudge: 1}
}

type Bank struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	ScoreConfig ScoreTable `json:"scoreConfig,omitempty"`
}

// Scores returns the bank's table or the default one.
func (b Bank) Scores() ScoreTable {
	if len(b.ScoreConfig) == 0 {
		return DefaultScoreTable()
	}
	return b.ScoreConfig
}

var ErrNotFound = errors.New("catalog: not found")

// Catalog is the read-only question source.
type Catalog interface {
	Bank(ctx context.Context, id string) (Bank, error)
	Question(ctx context.Context, id string) (Question, error)
	// BankQuestions returns a bank's questions in catalog order, optionally
	// narrowed to the given types.
	BankQuestions(ctx context.Context, bankID string, types ...QuestionType) ([]Question, error)
	// Questions resolves ids in the given order; unknown ids are skipped.
	Questions(ctx context.Context, ids []string) ([]Question, error)
}
