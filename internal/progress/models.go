// Package progress persists practice progress, exam attempts, spaced
// repetition state and the mistake book.
package progress

import (
	"context"
	"errors"
	"time"

	"github.com/mind-engage/mindengage-practice/internal/session"
	"github.com/mind-engage/mindengage-practice/internal/srs"
)

var (
	ErrNotFound        = errors.New("progress: not found")
	ErrDuplicate       = errors.New("progress: record already exists")
	ErrAttemptFinished = errors.New("progress: exam attempt is finished")
	ErrForbidden       = errors.New("progress: record belongs to another learner")
)

// Key identifies the single non-custom record per learner, bank and mode.
// Custom sessions are addressed by their record id instead.
type Key struct {
	LearnerID string
	BankID    string
	Mode      session.Mode
	IsCustom  bool
	RecordID  string // custom sessions only
}

func (k Key) String() string {
	if k.IsCustom {
		return "custom:" + k.LearnerID + ":" + k.RecordID
	}
	return "practice:" + k.LearnerID + ":" + k.BankID + ":" + string(k.Mode)
}

type PracticeRecord struct {
	ID           string              `json:"id"`
	LearnerID    string              `json:"learnerId"`
	BankID       string              `json:"bankId"`
	BankName     string              `json:"bankName,omitempty"`
	Mode         session.Mode        `json:"mode"`
	IsCustom     bool                `json:"isCustom"`
	CurrentIndex int                 `json:"currentIndex"`
	UserAnswers  map[string][]string `json:"userAnswers"`
	QuestionIDs  []string            `json:"questionOrder,omitempty"`
	ConfirmedIDs []string            `json:"confirmedIds,omitempty"`
	Count        int                 `json:"count"`
	LastUpdated  time.Time           `json:"lastUpdated"`
}

func (r PracticeRecord) Key() Key {
	k := Key{LearnerID: r.LearnerID, BankID: r.BankID, Mode: r.Mode, IsCustom: r.IsCustom}
	if r.IsCustom {
		k.RecordID = r.ID
	}
	return k
}

// Progress is the mutable part of a practice record. An empty QuestionIDs
// keeps the stored order.
type Progress struct {
	CurrentIndex int                 `json:"currentIndex"`
	UserAnswers  map[string][]string `json:"userAnswers"`
	QuestionIDs  []string            `json:"questionOrder,omitempty"`
	ConfirmedIDs []string            `json:"confirmedIds,omitempty"`
	LastUpdated  time.Time           `json:"lastUpdated"`
}

type ExamAttempt struct {
	ID                 string              `json:"id"`
	LearnerID          string              `json:"learnerId"`
	ExamID             string              `json:"examId"`
	ExamTitle          string              `json:"examTitle,omitempty"`
	BankID             string              `json:"bankId"`
	Score              float64             `json:"score"`
	TotalScore         float64             `json:"totalScore"`
	PassScore          float64             `json:"passScore"`
	Passed             bool                `json:"passed"`
	TimeUsedSeconds    int                 `json:"timeUsed"`
	WrongQuestionIDs   []string            `json:"wrongQuestionIds"`
	UserAnswers        map[string][]string `json:"userAnswers"`
	OrderedQuestionIDs []string            `json:"orderedQuestionIds"`
	CurrentIndex       int                 `json:"currentIndex"`
	IsFinished         bool                `json:"isFinished"`
	SubmitTime         time.Time           `json:"submitTime"`
}

// FinalFields are written once when an attempt is submitted.
type FinalFields struct {
	Score            float64             `json:"score"`
	TotalScore       float64             `json:"totalScore"`
	PassScore        float64             `json:"passScore"`
	Passed           bool                `json:"passed"`
	TimeUsedSeconds  int                 `json:"timeUsed"`
	WrongQuestionIDs []string            `json:"wrongQuestionIds"`
	UserAnswers      map[string][]string `json:"userAnswers"`
	SubmitTime       time.Time           `json:"submitTime"`
}

// Store is the durable side of practice state. All methods scope reads and
// writes to the given learner.
type Store interface {
	CreatePracticeRecord(ctx context.Context, rec PracticeRecord) error
	// UpdatePracticeRecord returns the number of affected rows; zero means the
	// record vanished or belongs to someone else.
	UpdatePracticeRecord(ctx context.Context, learnerID, id string, p Progress) (int64, error)
	FindPracticeRecord(ctx context.Context, learnerID, bankID string, mode session.Mode, isCustom bool) (PracticeRecord, error)
	GetPracticeRecord(ctx context.Context, learnerID, id string) (PracticeRecord, error)
	ListPracticeRecords(ctx context.Context, learnerID string) ([]PracticeRecord, error)
	DeletePracticeRecord(ctx context.Context, learnerID, id string) error

	GetSrsRecord(ctx context.Context, learnerID, questionID string) (srs.Record, error)
	PutSrsRecord(ctx context.Context, rec srs.Record) error
	ListSrsRecords(ctx context.Context, learnerID string) ([]srs.Record, error)
	// PromoteMastered marks active records at or past the interval as mastered
	// and reports how many changed.
	PromoteMastered(ctx context.Context, minIntervalDays int) (int64, error)

	AddMistake(ctx context.Context, learnerID, questionID string) (bool, error)
	ListMistakes(ctx context.Context, learnerID string) ([]string, error)

	// PutExamAttempt inserts or replaces an unfinished attempt.
	PutExamAttempt(ctx context.Context, a ExamAttempt) error
	FinalizeExamAttempt(ctx context.Context, learnerID, id string, f FinalFields) (ExamAttempt, error)
	GetExamAttempt(ctx context.Context, learnerID, id string) (ExamAttempt, error)
	ListExamAttempts(ctx context.Context, learnerID string) ([]ExamAttempt, error)
	ListAllExamAttempts(ctx context.Context) ([]ExamAttempt, error)

	IncrementDailyProgress(ctx context.Context, learnerID string, day time.Time) (int, error)
	DailyProgress(ctx context.Context, learnerID string, day time.Time) (int, error)

	// ResetLearner removes every record the learner owns.
	ResetLearner(ctx context.Context, learnerID string) error
}
