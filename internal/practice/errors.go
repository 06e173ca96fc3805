package practice

import (
	"errors"
	"fmt"

	"github.com/mind-engage/mindengage-practice/internal/progress"
)

var (
	ErrCatalogEmpty           = errors.New("practice: no questions for this session")
	ErrResumeDecisionRequired = errors.New("practice: existing progress needs a continue or restart decision")
	ErrForbidden              = errors.New("practice: session belongs to another learner")
	ErrSessionNotFound        = errors.New("practice: session not found")
	ErrSessionClosed          = errors.New("practice: session closed")
	ErrNotMock                = errors.New("practice: only mock sessions can be finished")
)

// ResumeRequiredError carries the stored record the learner must decide on.
type ResumeRequiredError struct {
	Record progress.PracticeRecord
}

func (e *ResumeRequiredError) Error() string {
	return fmt.Sprintf("%v: record %s at question %d", ErrResumeDecisionRequired, e.Record.ID, e.Record.CurrentIndex+1)
}

func (e *ResumeRequiredError) Unwrap() error { return ErrResumeDecisionRequired }
