package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	auth "github.com/mind-engage/mindengage-practice/internal/auth/middleware"
	"github.com/mind-engage/mindengage-practice/internal/progress"
)

// POST /api/exams/history
// Inserts or replaces an unfinished attempt owned by the caller.
func SaveExamAttemptHandler(store progress.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var a progress.ExamAttempt
		if !decodeJSON(w, r, &a) {
			return
		}
		a.LearnerID = auth.LearnerID(r.Context())
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		// only the finalize route may finish an attempt
		a.IsFinished = false
		if a.UserAnswers == nil {
			a.UserAnswers = map[string][]string{}
		}
		a.SubmitTime = time.Now()
		if err := store.PutExamAttempt(r.Context(), a); err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"id": a.ID})
	}
}

// PUT /api/exams/history/{attemptID}/finalize
func FinalizeExamAttemptHandler(store progress.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var f progress.FinalFields
		if !decodeJSON(w, r, &f) {
			return
		}
		if f.SubmitTime.IsZero() {
			f.SubmitTime = time.Now()
		}
		if f.UserAnswers == nil {
			f.UserAnswers = map[string][]string{}
		}
		f.Passed = f.Score >= f.PassScore
		a, err := store.FinalizeExamAttempt(r.Context(), auth.LearnerID(r.Context()), chi.URLParam(r, "attemptID"), f)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, a)
	}
}

// GET /api/exams/history?status=finished|unfinished
func ListExamAttemptsHandler(store progress.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListExamAttempts(r.Context(), auth.LearnerID(r.Context()))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, filterAttempts(list, r))
	}
}

func GetExamAttemptHandler(store progress.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := store.GetExamAttempt(r.Context(), auth.LearnerID(r.Context()), chi.URLParam(r, "attemptID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, a)
	}
}

// GET /api/admin/exam-history?learner_id=&status=&limit=50&offset=0
func ListAllExamAttemptsHandler(store progress.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListAllExamAttempts(r.Context())
		if err != nil {
			respondError(w, r, err)
			return
		}
		if learner := strings.TrimSpace(r.URL.Query().Get("learner_id")); learner != "" {
			kept := list[:0]
			for _, a := range list {
				if a.LearnerID == learner {
					kept = append(kept, a)
				}
			}
			list = kept
		}
		respondJSON(w, http.StatusOK, filterAttempts(list, r))
	}
}

func filterAttempts(list []progress.ExamAttempt, r *http.Request) []progress.ExamAttempt {
	q := r.URL.Query()
	out := make([]progress.ExamAttempt, 0, len(list))
	for _, a := range list {
		switch q.Get("status") {
		case "finished":
			if !a.IsFinished {
				continue
			}
		case "unfinished":
			if a.IsFinished {
				continue
			}
		}
		out = append(out, a)
	}
	offset := max(parseIntDefault(q.Get("offset"), 0), 0)
	limit := parseIntDefault(q.Get("limit"), 50)
	if offset >= len(out) {
		return []progress.ExamAttempt{}
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}
