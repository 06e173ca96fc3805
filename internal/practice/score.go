package practice

import (
	"context"

	"github.com/mind-engage/mindengage-practice/internal/catalog"
	"github.com/mind-engage/mindengage-practice/internal/grading"
	"github.com/mind-engage/mindengage-practice/internal/session"
)

// Score sums the table weight of every correctly answered question. Short
// answers are graded by hand, so they count neither way; every other
// question that is not correct is listed as wrong.
func Score(ctx context.Context, g grading.Grader, qs []catalog.Question, answers map[string][]string, table catalog.ScoreTable) (float64, []string) {
	var score float64
	wrong := []string{}
	for _, q := range qs {
		if q.Type == catalog.TypeShortAnswer {
			continue
		}
		tokens := answers[q.ID]
		correct := false
		if session.IsRealAnswer(tokens) {
			res, err := g.Grade(ctx, q, submissionFor(q, tokens))
			correct = err == nil && res.IsCorrect
		}
		if correct {
			score += table[q.Type]
		} else {
			wrong = append(wrong, q.ID)
		}
	}
	return score, wrong
}
