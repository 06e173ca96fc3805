package grading_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mind-engage/mindengage-practice/internal/catalog"
	"github.com/mind-engage/mindengage-practice/internal/grading"
)

func TestGradeBlanksCasePolicy(t *testing.T) {
	insensitive := []catalog.Blank{{ID: "b1", AcceptedAnswers: []string{"Paris"}}}
	for _, in := range []string{"paris", "PARIS", " Paris "} {
		res := grading.GradeBlanks(insensitive, map[string]string{"b1": in})
		assert.True(t, res.IsCorrect, "input %q", in)
		assert.Equal(t, 100.0, res.Score)
	}

	sensitive := []catalog.Blank{{ID: "b1", AcceptedAnswers: []string{"Paris"}, CaseSensitive: true}}
	assert.True(t, grading.GradeBlanks(sensitive, map[string]string{"b1": " Paris"}).IsCorrect)
	assert.False(t, grading.GradeBlanks(sensitive, map[string]string{"b1": "paris"}).IsCorrect)
}

func TestGradeBlanksPartialScore(t *testing.T) {
	blanks := []catalog.Blank{
		{ID: "b1", AcceptedAnswers: []string{"H2O", "water"}},
		{ID: "b2", AcceptedAnswers: []string{"100"}},
		{ID: "b3", AcceptedAnswers: []string{"boil"}},
	}
	res := grading.GradeBlanks(blanks, map[string]string{"b1": "Water", "b2": "90"})

	assert.Equal(t, 1, res.Correct)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 33.33, res.Score)
	assert.False(t, res.IsCorrect)
	if assert.Len(t, res.Details, 3) {
		assert.True(t, res.Details[0].IsCorrect)
		assert.False(t, res.Details[1].IsCorrect)
		assert.Equal(t, "", res.Details[2].UserAnswer)
		assert.False(t, res.Details[2].IsCorrect)
	}

	res = grading.GradeBlanks(blanks[:3], map[string]string{"b1": "h2o", "b2": "100", "b3": "x"})
	assert.Equal(t, 66.67, res.Score)
}

func TestGradeBlanksEmpty(t *testing.T) {
	res := grading.GradeBlanks(nil, nil)
	assert.Equal(t, 0, res.Total)
	assert.False(t, res.IsCorrect)
}
