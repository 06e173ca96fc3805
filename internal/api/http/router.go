// Package http exposes the persistence interfaces and live session actions
// over a chi router. Every /api route requires a bearer token; the token's
// subject is the only learner a request can read or write.
package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	auth "github.com/mind-engage/mindengage-practice/internal/auth/middleware"
	"github.com/mind-engage/mindengage-practice/internal/catalog"
	"github.com/mind-engage/mindengage-practice/internal/practice"
	"github.com/mind-engage/mindengage-practice/internal/progress"
	"github.com/mind-engage/mindengage-practice/internal/rbac"
)

type Deps struct {
	Practice *practice.Service
	Store    progress.Store
	Catalog  catalog.Catalog
	Auth     *auth.AuthService
	RBAC     *rbac.Checker

	CORSOrigins []string
	// Timeout bounds each request; zero means 30s.
	Timeout time.Duration
	// AccessLog turns on chi's request logger.
	AccessLog bool
}

func NewRouter(d Deps) chi.Router {
	if d.RBAC == nil {
		d.RBAC = rbac.NewChecker(nil)
	}
	if d.Timeout <= 0 {
		d.Timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP)
	if d.AccessLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer, middleware.Timeout(d.Timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Route("/api", func(ar chi.Router) {
		ar.Use(auth.JWTMiddleware(d.Auth))

		ar.Group(func(pr chi.Router) {
			pr.Use(d.RBAC.Require(rbac.PermPractice))

			pr.Route("/practice-records", func(rr chi.Router) {
				rr.Get("/", ListPracticeRecordsHandler(d.Store))
				rr.Post("/", CreatePracticeRecordHandler(d.Store))
				rr.Get("/find", FindPracticeRecordHandler(d.Store))
				rr.Get("/{recordID}", GetPracticeRecordHandler(d.Store))
				rr.Put("/{recordID}", UpdatePracticeRecordHandler(d.Store))
				rr.Delete("/{recordID}", DeletePracticeRecordHandler(d.Store))
			})

			pr.Post("/srs/update", UpdateSrsHandler(d.Practice))
			pr.Get("/srs/due", DueSrsHandler(d.Practice))
			pr.Get("/srs/records", ListSrsRecordsHandler(d.Store))
			pr.Get("/mistakes", ListMistakesHandler(d.Store))

			pr.Post("/exams/history", SaveExamAttemptHandler(d.Store))
			pr.Put("/exams/history/{attemptID}/finalize", FinalizeExamAttemptHandler(d.Store))
			pr.With(d.RBAC.Require(rbac.PermAttemptViewOwn)).Get("/exams/history", ListExamAttemptsHandler(d.Store))
			pr.With(d.RBAC.Require(rbac.PermAttemptViewOwn)).Get("/exams/history/{attemptID}", GetExamAttemptHandler(d.Store))

			pr.Post("/questions/{questionID}/grade-fill-blank", GradeFillBlankHandler(d.Catalog))

			pr.Route("/sessions", func(sr chi.Router) {
				sr.Post("/", StartSessionHandler(d.Practice))
				sr.Get("/resumable", ResumableHandler(d.Practice))
				sr.Route("/{sessionID}", func(one chi.Router) {
					one.Get("/", GetSessionHandler(d.Practice))
					one.Post("/select", SelectOptionHandler(d.Practice))
					one.Post("/confirm", ConfirmHandler(d.Practice))
					one.Post("/fill-blank", FillBlankHandler(d.Practice))
					one.Post("/short-answer", ShortAnswerHandler(d.Practice))
					one.Post("/difficulty", DifficultyHandler(d.Practice))
					one.Post("/next", NextHandler(d.Practice))
					one.Post("/previous", PreviousHandler(d.Practice))
					one.Post("/jump", JumpHandler(d.Practice))
					one.Post("/exit", ExitHandler(d.Practice))
					one.Post("/finish", FinishHandler(d.Practice))
				})
			})

			pr.Post("/user/logout", LogoutHandler(d.Practice))
			pr.With(d.RBAC.Require(rbac.PermLearnerReset)).Post("/user/reset", ResetHandler(d.Practice))
		})

		ar.With(d.RBAC.Require(rbac.PermAttemptViewAll)).
			Get("/admin/exam-history", ListAllExamAttemptsHandler(d.Store))
	})
	return r
}
