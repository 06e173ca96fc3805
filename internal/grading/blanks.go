package grading

import (
	"math"
	"strings"

	"github.com/mind-engage/mindengage-practice/internal/catalog"
)

// GradeBlanks scores each blank independently. A missing answer counts as an
// empty, incorrect one.
func GradeBlanks(blanks []catalog.Blank, answers map[string]string) Result {
	res := Result{Total: len(blanks), Details: make([]BlankDetail, 0, len(blanks))}
	if len(blanks) == 0 {
		return res
	}
	for _, b := range blanks {
		ans := answers[b.ID]
		ok := matchBlank(ans, b)
		if ok {
			res.Correct++
		}
		res.Details = append(res.Details, BlankDetail{
			BlankID:         b.ID,
			UserAnswer:      ans,
			IsCorrect:       ok,
			AcceptedAnswers: b.AcceptedAnswers,
		})
	}
	res.Score = math.Round(float64(res.Correct)/float64(res.Total)*100*100) / 100
	res.IsCorrect = res.Correct == res.Total
	return res
}

func matchBlank(answer string, b catalog.Blank) bool {
	got := strings.TrimSpace(answer)
	if got == "" {
		return false
	}
	for _, accepted := range b.AcceptedAnswers {
		want := strings.TrimSpace(accepted)
		if b.CaseSensitive {
			if got == want {
				return true
			}
		} else if strings.EqualFold(got, want) {
			return true
		}
	}
	return false
}
