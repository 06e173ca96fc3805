package srs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDueQuestionIDs(t *testing.T) {
	today := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	records := []Record{
		{QuestionID: "past", NextReviewDate: today.AddDate(0, 0, -2), Status: StatusActive},
		{QuestionID: "today", NextReviewDate: Day(today), Status: StatusActive},
		{QuestionID: "future", NextReviewDate: today.AddDate(0, 0, 3), Status: StatusActive},
		{QuestionID: "done", NextReviewDate: today.AddDate(0, 0, -30), Status: StatusMastered},
	}
	mistakes := []string{"future", "never", "never", "past"}

	assert.Equal(t, []string{"past", "today", "never"}, DueQuestionIDs(records, mistakes, today))
}

func TestHardIsDueSameDay(t *testing.T) {
	today := time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC)
	r, err := Schedule(&Record{QuestionID: "q", IntervalDays: 15, EaseFactor: 2.1, Repetitions: 4}, Hard, today)
	assert.NoError(t, err)
	assert.Equal(t, []string{"q"}, DueQuestionIDs([]Record{r}, nil, today))
}

func TestMasteryPolicy(t *testing.T) {
	r := Record{IntervalDays: 30, Status: StatusActive}
	assert.Equal(t, StatusActive, MasteryPolicy{}.Apply(r).Status)
	assert.Equal(t, StatusActive, MasteryPolicy{IntervalDays: 31}.Apply(r).Status)
	assert.Equal(t, StatusMastered, MasteryPolicy{IntervalDays: 30}.Apply(r).Status)
}
