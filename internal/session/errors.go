package session

import (
	"errors"
	"strings"
)

// ValidationError rejects an action without touching the state.
type ValidationError struct {
	Message string
	Fields  []string // offending blank ids or input names
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Fields, ", ")
}

func invalid(msg string, fields ...string) error {
	return &ValidationError{Message: msg, Fields: fields}
}

var (
	// ErrSchedulingInput is returned when difficulty is graded on a question
	// that is not locked yet.
	ErrSchedulingInput   = errors.New("session: question is not answered")
	ErrNotAnswerable     = errors.New("session: action not available in this mode")
	ErrWrongType         = errors.New("session: action does not match question type")
	ErrAlreadyLocked     = errors.New("session: answer already locked")
	ErrAlreadyGraded     = errors.New("session: difficulty already graded")
	ErrSessionFinished   = errors.New("session: finished")
	ErrNeedsConfirmation = errors.New("session: submitting the attempt needs confirmation")
	ErrEmpty             = errors.New("session: no questions")
)
