// Package srs implements the spaced-repetition scheduler: an SM-2 variant
// keyed on a three-level learner difficulty grade.
package srs

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

type Grade string

const (
	Hard Grade = "HARD"
	Good Grade = "GOOD"
	Easy Grade = "EASY"
)

// ParseGrade accepts the level names case-insensitively.
func ParseGrade(s string) (Grade, error) {
	switch g := Grade(strings.ToUpper(strings.TrimSpace(s))); g {
	case Hard, Good, Easy:
		return g, nil
	}
	return "", fmt.Errorf("srs: unknown grade %q", s)
}

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusMastered Status = "MASTERED"
)

const (
	MinEase     = 1.3
	MaxEase     = 2.5
	DefaultEase = 2.5
)

// DateLayout is the wire and storage form of review dates.
const DateLayout = "2006-01-02"

type Record struct {
	ID             string    `json:"id"`
	LearnerID      string    `json:"learnerId"`
	QuestionID     string    `json:"questionId"`
	IntervalDays   int       `json:"interval"`
	EaseFactor     float64   `json:"easeFactor"`
	Repetitions    int       `json:"repetitions"`
	NextReviewDate time.Time `json:"-"`
	Status         Status    `json:"status"`
}

// Next returns the review date in DateLayout.
func (r Record) Next() string { return r.NextReviewDate.Format(DateLayout) }

func (r Record) MarshalJSON() ([]byte, error) {
	type alias Record
	return json.Marshal(struct {
		alias
		NextReviewDate string `json:"nextReviewDate"`
	}{alias(r), r.Next()})
}

func (r *Record) UnmarshalJSON(b []byte) error {
	type alias Record
	var aux struct {
		alias
		NextReviewDate string `json:"nextReviewDate"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*r = Record(aux.alias)
	if aux.NextReviewDate != "" {
		t, err := time.Parse(DateLayout, aux.NextReviewDate)
		if err != nil {
			return fmt.Errorf("srs: nextReviewDate: %w", err)
		}
		r.NextReviewDate = t
	}
	return nil
}

// DueOn reports whether the record is due on the given day.
func (r Record) DueOn(today time.Time) bool {
	return r.Next() <= today.Format(DateLayout)
}

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Schedule computes the record that results from grading a question today.
// existing may be nil for a first grading. It reads no clock and keeps the
// identity fields of existing.
func Schedule(existing *Record, g Grade, today time.Time) (Record, error) {
	reps0, ease0, interval0 := 0, DefaultEase, 0
	var out Record
	if existing != nil {
		out = *existing
		reps0, interval0 = existing.Repetitions, existing.IntervalDays
		if existing.EaseFactor > 0 {
			ease0 = existing.EaseFactor
		}
	}

	reps, ease, interval := reps0, ease0, 0
	switch g {
	case Hard:
		reps = 0
		ease = math.Max(MinEase, ease0-0.2)
		interval = 0
	case Good:
		reps = reps0 + 1
		switch reps {
		case 1:
			interval = 1
		case 2:
			interval = 6
		default:
			interval = roundDays(float64(orDefault(interval0, 6)) * ease0)
		}
	case Easy:
		reps = reps0 + 1
		ease = math.Min(MaxEase, ease0+0.15)
		interval = roundDays(float64(orDefault(interval0, 1)) * ease * 1.3)
	default:
		return Record{}, fmt.Errorf("srs: unknown grade %q", g)
	}

	out.Repetitions = reps
	out.EaseFactor = clampEase(ease)
	out.IntervalDays = interval
	out.NextReviewDate = Day(today).AddDate(0, 0, interval)
	out.Status = StatusActive
	return out, nil
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func roundDays(f float64) int { return int(math.Floor(f + 0.5)) }

// stored ease factors outside the domain are pulled back in
func clampEase(e float64) float64 {
	return math.Min(MaxEase, math.Max(MinEase, e))
}
