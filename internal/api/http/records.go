package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	auth "github.com/mind-engage/mindengage-practice/internal/auth/middleware"
	"github.com/mind-engage/mindengage-practice/internal/progress"
	"github.com/mind-engage/mindengage-practice/internal/session"
)

// POST /api/practice-records
// The owner is always the caller, whatever the body says.
func CreatePracticeRecordHandler(store progress.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rec progress.PracticeRecord
		if !decodeJSON(w, r, &rec) {
			return
		}
		mode, err := session.ParseMode(string(rec.Mode))
		if err != nil {
			respondError(w, r, &session.ValidationError{Message: err.Error(), Fields: []string{"mode"}})
			return
		}
		if strings.TrimSpace(rec.BankID) == "" {
			respondError(w, r, &session.ValidationError{Message: "bankId is required", Fields: []string{"bankId"}})
			return
		}
		rec.Mode = mode
		rec.LearnerID = auth.LearnerID(r.Context())
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		if rec.UserAnswers == nil {
			rec.UserAnswers = map[string][]string{}
		}
		if rec.Count == 0 {
			rec.Count = len(rec.QuestionIDs)
		}
		rec.LastUpdated = time.Now()
		if err := store.CreatePracticeRecord(r.Context(), rec); err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, map[string]string{"id": rec.ID})
	}
}

// PUT /api/practice-records/{recordID}
// Zero changes tells the client the record vanished or is not theirs.
func UpdatePracticeRecordHandler(store progress.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p progress.Progress
		if !decodeJSON(w, r, &p) {
			return
		}
		if p.LastUpdated.IsZero() {
			p.LastUpdated = time.Now()
		}
		n, err := store.UpdatePracticeRecord(r.Context(), auth.LearnerID(r.Context()), chi.URLParam(r, "recordID"), p)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]int64{"changes": n})
	}
}

// GET /api/practice-records/find?bankId=&mode=&isCustom=
func FindPracticeRecordHandler(store progress.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		mode, err := session.ParseMode(q.Get("mode"))
		if err != nil {
			respondError(w, r, &session.ValidationError{Message: err.Error(), Fields: []string{"mode"}})
			return
		}
		isCustom, _ := strconv.ParseBool(q.Get("isCustom"))
		rec, err := store.FindPracticeRecord(r.Context(), auth.LearnerID(r.Context()), q.Get("bankId"), mode, isCustom)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, rec)
	}
}

func GetPracticeRecordHandler(store progress.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := store.GetPracticeRecord(r.Context(), auth.LearnerID(r.Context()), chi.URLParam(r, "recordID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, rec)
	}
}

func ListPracticeRecordsHandler(store progress.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListPracticeRecords(r.Context(), auth.LearnerID(r.Context()))
		if err != nil {
			respondError(w, r, err)
			return
		}
		if list == nil {
			list = []progress.PracticeRecord{}
		}
		respondJSON(w, http.StatusOK, list)
	}
}

func DeletePracticeRecordHandler(store progress.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeletePracticeRecord(r.Context(), auth.LearnerID(r.Context()), chi.URLParam(r, "recordID")); err != nil {
			respondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
