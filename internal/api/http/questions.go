package http

import (
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-practice/internal/catalog"
	"github.com/mind-engage/mindengage-practice/internal/grading"
	"github.com/mind-engage/mindengage-practice/internal/session"
)

type fillBlankResponse struct {
	Correct      int                   `json:"correct"`
	Total        int                   `json:"total"`
	Score        float64               `json:"score"`
	Percentage   float64               `json:"percentage"`
	Details      []grading.BlankDetail `json:"details"`
	IsAllCorrect bool                  `json:"isAllCorrect"`
}

// POST /api/questions/{questionID}/grade-fill-blank  {"answers": {"b1": "..."}}
// Stateless: nothing is saved.
func GradeFillBlankHandler(cat catalog.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Answers     map[string]string `json:"answers"`
			UserAnswers map[string]string `json:"userAnswers"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		q, err := cat.Question(r.Context(), chi.URLParam(r, "questionID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		if q.Type != catalog.TypeFillInBlank {
			respondError(w, r, &session.ValidationError{Message: "question is not fill-in-blank", Fields: []string{"questionId"}})
			return
		}
		if req.Answers == nil {
			req.Answers = req.UserAnswers
		}
		res := grading.GradeBlanks(q.Blanks, req.Answers)
		pct := 0.0
		if res.Total > 0 {
			pct = math.Round(float64(res.Correct) / float64(res.Total) * 100)
		}
		respondJSON(w, http.StatusOK, fillBlankResponse{
			Correct:      res.Correct,
			Total:        res.Total,
			Score:        res.Score,
			Percentage:   pct,
			Details:      res.Details,
			IsAllCorrect: res.IsCorrect,
		})
	}
}
