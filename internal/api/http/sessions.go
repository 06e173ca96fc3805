package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	auth "github.com/mind-engage/mindengage-practice/internal/auth/middleware"
	"github.com/mind-engage/mindengage-practice/internal/catalog"
	"github.com/mind-engage/mindengage-practice/internal/practice"
	"github.com/mind-engage/mindengage-practice/internal/session"
	"github.com/mind-engage/mindengage-practice/internal/srs"
)

type startSessionReq struct {
	BankID      string                 `json:"bankId"`
	Mode        session.Mode           `json:"mode"`
	Types       []catalog.QuestionType `json:"types,omitempty"`
	QuestionIDs []string               `json:"questionIds,omitempty"`
	RecordID    string                 `json:"recordId,omitempty"`
	AttemptID   string                 `json:"attemptId,omitempty"`
	Decision    practice.Decision      `json:"decision,omitempty"`
}

// POST /api/sessions
// 409 carries the stored record when the learner must choose to continue
// or restart.
func StartSessionHandler(svc *practice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req startSessionReq
		if !decodeJSON(w, r, &req) {
			return
		}
		sess, err := svc.Start(r.Context(), practice.StartRequest{
			LearnerID:   auth.LearnerID(r.Context()),
			BankID:      req.BankID,
			Mode:        req.Mode,
			Types:       req.Types,
			QuestionIDs: req.QuestionIDs,
			RecordID:    req.RecordID,
			AttemptID:   req.AttemptID,
			Decision:    req.Decision,
		})
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, sess.View())
	}
}

// GET /api/sessions/resumable?bankId=&mode=
func ResumableHandler(svc *practice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode, err := session.ParseMode(r.URL.Query().Get("mode"))
		if err != nil {
			respondError(w, r, &session.ValidationError{Message: err.Error(), Fields: []string{"mode"}})
			return
		}
		rec, err := svc.Resumable(r.Context(), auth.LearnerID(r.Context()), r.URL.Query().Get("bankId"), mode)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"record": rec})
	}
}

// sessionAction resolves the caller's live session and hands it to fn.
func sessionAction(svc *practice.Service, fn func(r *http.Request, s *practice.Session) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := svc.Get(auth.LearnerID(r.Context()), chi.URLParam(r, "sessionID"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		out, err := fn(r, sess)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, out)
	}
}

// decodeBody is decodeJSON for actions whose body is optional.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return &session.ValidationError{Message: "bad json: " + err.Error()}
	}
	return nil
}

func GetSessionHandler(svc *practice.Service) http.HandlerFunc {
	return sessionAction(svc, func(_ *http.Request, s *practice.Session) (any, error) {
		return s.View(), nil
	})
}

func SelectOptionHandler(svc *practice.Service) http.HandlerFunc {
	return sessionAction(svc, func(r *http.Request, s *practice.Session) (any, error) {
		var req struct {
			Label string `json:"label"`
		}
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		return s.SelectOption(r.Context(), req.Label)
	})
}

func ConfirmHandler(svc *practice.Service) http.HandlerFunc {
	return sessionAction(svc, func(r *http.Request, s *practice.Session) (any, error) {
		return s.ConfirmMultiple(r.Context())
	})
}

func FillBlankHandler(svc *practice.Service) http.HandlerFunc {
	return sessionAction(svc, func(r *http.Request, s *practice.Session) (any, error) {
		var req struct {
			Answers map[string]string `json:"answers"`
		}
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		return s.SubmitFillBlank(r.Context(), req.Answers)
	})
}

func ShortAnswerHandler(svc *practice.Service) http.HandlerFunc {
	return sessionAction(svc, func(r *http.Request, s *practice.Session) (any, error) {
		var req struct {
			Text string `json:"text"`
		}
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		return s.SubmitShortAnswer(r.Context(), req.Text)
	})
}

func DifficultyHandler(svc *practice.Service) http.HandlerFunc {
	return sessionAction(svc, func(r *http.Request, s *practice.Session) (any, error) {
		var req struct {
			Grade string `json:"grade"`
		}
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		g, err := srs.ParseGrade(req.Grade)
		if err != nil {
			return nil, &session.ValidationError{Message: err.Error(), Fields: []string{"grade"}}
		}
		return s.GradeDifficulty(r.Context(), g)
	})
}

func NextHandler(svc *practice.Service) http.HandlerFunc {
	return sessionAction(svc, func(r *http.Request, s *practice.Session) (any, error) {
		var req struct {
			Confirm bool `json:"confirm"`
		}
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		return s.Next(r.Context(), req.Confirm)
	})
}

func PreviousHandler(svc *practice.Service) http.HandlerFunc {
	return sessionAction(svc, func(_ *http.Request, s *practice.Session) (any, error) {
		return s.Previous()
	})
}

func JumpHandler(svc *practice.Service) http.HandlerFunc {
	return sessionAction(svc, func(r *http.Request, s *practice.Session) (any, error) {
		var req struct {
			Index int `json:"index"`
		}
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		return s.Jump(req.Index)
	})
}

func ExitHandler(svc *practice.Service) http.HandlerFunc {
	return sessionAction(svc, func(r *http.Request, s *practice.Session) (any, error) {
		return s.Exit(r.Context())
	})
}

func FinishHandler(svc *practice.Service) http.HandlerFunc {
	return sessionAction(svc, func(r *http.Request, s *practice.Session) (any, error) {
		return s.Finish(r.Context())
	})
}

// POST /api/user/logout
func LogoutHandler(svc *practice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Logout(r.Context(), auth.LearnerID(r.Context())); err != nil {
			respondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /api/user/reset
func ResetHandler(svc *practice.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Reset(r.Context(), auth.LearnerID(r.Context())); err != nil {
			respondError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
