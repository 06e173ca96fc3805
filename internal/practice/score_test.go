package practice_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mind-engage/mindengage-practice/internal/catalog"
	"github.com/mind-engage/mindengage-practice/internal/grading"
	"github.com/mind-engage/mindengage-practice/internal/practice"
	"github.com/mind-engage/mindengage-practice/internal/session"
)

func TestScoreUsesBankTable(t *testing.T) {
	qs := []catalog.Question{
		{ID: "a", Type: catalog.TypeSingle, Answer: []string{"A"}},
		{ID: "b", Type: catalog.TypeMultiple, Answer: []string{"A", "B"}},
		{ID: "c", Type: catalog.TypeFillInBlank, Blanks: []catalog.Blank{{ID: "x", AcceptedAnswers: []string{"1"}}}},
		{ID: "d", Type: catalog.TypeShortAnswer},
		{ID: "e", Type: catalog.TypeJudge, Answer: []string{"B"}},
		{ID: "f", Type: catalog.TypeSingle, Answer: []string{"A"}},
	}
	answers := map[string][]string{
		"a": {"A"},
		"b": {"B", "A"},
		"c": {"1"},
		"d": {"anything"},
		"e": {"A"},
		"f": {session.Viewed},
	}
	table := catalog.ScoreTable{catalog.TypeSingle: 5, catalog.TypeMultiple: 10, catalog.TypeFillInBlank: 3, catalog.TypeJudge: 2}

	score, wrong := practice.Score(context.Background(), grading.NewDefaultGrader(), qs, answers, table)
	assert.Equal(t, 18.0, score)
	assert.Equal(t, []string{"e", "f"}, wrong)
}
