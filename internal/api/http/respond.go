package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mind-engage/mindengage-practice/internal/catalog"
	"github.com/mind-engage/mindengage-practice/internal/practice"
	"github.com/mind-engage/mindengage-practice/internal/progress"
	"github.com/mind-engage/mindengage-practice/internal/session"
)

type errorBody struct {
	Error  string                   `json:"error"`
	Fields []string                 `json:"fields,omitempty"`
	Record *progress.PracticeRecord `json:"record,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "bad json: " + err.Error()})
		return false
	}
	return true
}

// respondError maps domain errors onto status codes. Unknown errors are
// logged and reported as 500 without their text.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *session.ValidationError
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusUnprocessableEntity, errorBody{Error: verr.Message, Fields: verr.Fields})
		return
	}
	var resume *practice.ResumeRequiredError
	if errors.As(err, &resume) {
		rec := resume.Record
		respondJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Record: &rec})
		return
	}

	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	respondJSON(w, status, errorBody{Error: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, practice.ErrCatalogEmpty),
		errors.Is(err, practice.ErrSessionNotFound),
		errors.Is(err, progress.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, session.ErrEmpty):
		return http.StatusNotFound
	case errors.Is(err, practice.ErrForbidden), errors.Is(err, progress.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, progress.ErrDuplicate),
		errors.Is(err, progress.ErrAttemptFinished),
		errors.Is(err, practice.ErrSessionClosed),
		errors.Is(err, session.ErrAlreadyLocked),
		errors.Is(err, session.ErrAlreadyGraded),
		errors.Is(err, session.ErrSessionFinished),
		errors.Is(err, session.ErrNeedsConfirmation):
		return http.StatusConflict
	case errors.Is(err, session.ErrNotAnswerable),
		errors.Is(err, session.ErrWrongType),
		errors.Is(err, session.ErrSchedulingInput),
		errors.Is(err, practice.ErrNotMock):
		return http.StatusUnprocessableEntity
	case errors.Is(err, progress.ErrRetriesExhausted):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
