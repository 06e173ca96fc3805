package http

import (
	"net/http"

	auth "github.com/mind-engage/mindengage-practice/internal/auth/middleware"
	"github.com/mind-engage/mindengage-practice/internal/practice"
	"github.com/mind-engage/mindengage-practice/internal/progress"
	"github.com/mind-engage/mindengage-practice/internal/session"
	"github.com/mind-engage/mindengage-practice/internal/srs"
)

// POST /api/srs/update  {"questionId": "...", "grade": "HARD|GOOD|EASY"}
// The server owns the clock, so clients never send dates.
func UpdateSrsHandler(svc *practice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			QuestionID string `json:"questionId"`
			Grade      string `json:"grade"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		g, err := srs.ParseGrade(req.Grade)
		if err != nil {
			respondError(w, r, &session.ValidationError{Message: err.Error(), Fields: []string{"grade"}})
			return
		}
		rec, err := svc.UpdateSrs(r.Context(), auth.LearnerID(r.Context()), req.QuestionID, g)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, rec)
	}
}

// GET /api/srs/due
func DueSrsHandler(svc *practice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := svc.DueQuestions(r.Context(), auth.LearnerID(r.Context()))
		if err != nil {
			respondError(w, r, err)
			return
		}
		if ids == nil {
			ids = []string{}
		}
		respondJSON(w, http.StatusOK, map[string]any{"questionIds": ids})
	}
}

func ListSrsRecordsHandler(store progress.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListSrsRecords(r.Context(), auth.LearnerID(r.Context()))
		if err != nil {
			respondError(w, r, err)
			return
		}
		if list == nil {
			list = []srs.Record{}
		}
		respondJSON(w, http.StatusOK, list)
	}
}

func ListMistakesHandler(store progress.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := store.ListMistakes(r.Context(), auth.LearnerID(r.Context()))
		if err != nil {
			respondError(w, r, err)
			return
		}
		if ids == nil {
			ids = []string{}
		}
		respondJSON(w, http.StatusOK, map[string]any{"questionIds": ids})
	}
}
