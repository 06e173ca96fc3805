// Package session is the in-memory state machine for one practice attempt.
package session

import (
	"fmt"
	"strings"
)

// Mode is one of the five practice modes. The zero value is invalid.
type Mode string

const (
	Sequential  Mode = "SEQUENTIAL"
	Memory      Mode = "MEMORY"
	Mock        Mode = "MOCK"
	Mistake     Mode = "MISTAKE"
	SmartReview Mode = "SMART_REVIEW"
)

var modes = []Mode{Sequential, Memory, Mock, Mistake, SmartReview}

func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(strings.TrimSpace(s)))
	for _, v := range modes {
		if v == m {
			return m, nil
		}
	}
	return "", fmt.Errorf("session: unknown mode %q", s)
}

func (m Mode) String() string { return string(m) }

// GradesOnAnswer reports whether locking an answer grades it right away.
func (m Mode) GradesOnAnswer() bool {
	switch m {
	case Sequential, Mistake, SmartReview:
		return true
	default:
		return false
	}
}

// PromptsDifficulty reports whether a graded answer is followed by a
// HARD/GOOD/EASY prompt.
func (m Mode) PromptsDifficulty() bool {
	switch m {
	case Mistake, SmartReview:
		return true
	default:
		return false
	}
}

// AllowsEdits reports whether submitted answers stay editable until the
// attempt itself is submitted.
func (m Mode) AllowsEdits() bool { return m == Mock }

// RecordsViewed reports whether skipping a question leaves the viewed marker.
func (m Mode) RecordsViewed() bool { return m == Memory }

// ExplanationFirst reports whether explanations are visible before answering.
func (m Mode) ExplanationFirst() bool { return m == Memory }

// Review reports whether the mode was entered from the review list.
func (m Mode) Review() bool { return m == Mistake || m == SmartReview }
