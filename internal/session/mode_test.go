package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	m, err := ParseMode("smart_review")
	require.NoError(t, err)
	assert.Equal(t, SmartReview, m)

	_, err = ParseMode("exam")
	assert.Error(t, err)
}

func TestModeBehaviour(t *testing.T) {
	cases := []struct {
		mode                     Mode
		grades, prompts, edits   bool
		viewed, explanationFirst bool
	}{
		{Sequential, true, false, false, false, false},
		{Memory, false, false, false, true, true},
		{Mock, false, false, true, false, false},
		{Mistake, true, true, false, false, false},
		{SmartReview, true, true, false, false, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.grades, c.mode.GradesOnAnswer(), c.mode)
		assert.Equal(t, c.prompts, c.mode.PromptsDifficulty(), c.mode)
		assert.Equal(t, c.edits, c.mode.AllowsEdits(), c.mode)
		assert.Equal(t, c.viewed, c.mode.RecordsViewed(), c.mode)
		assert.Equal(t, c.explanationFirst, c.mode.ExplanationFirst(), c.mode)
	}
}
