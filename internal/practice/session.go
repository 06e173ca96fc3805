package practice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mind-engage/mindengage-practice/internal/catalog"
	"github.com/mind-engage/mindengage-practice/internal/events"
	"github.com/mind-engage/mindengage-practice/internal/grading"
	"github.com/mind-engage/mindengage-practice/internal/progress"
	"github.com/mind-engage/mindengage-practice/internal/session"
	"github.com/mind-engage/mindengage-practice/internal/srs"
)

// Route tells the caller where to go once a session is over.
type Route string

const (
	RouteHome     Route = "home"
	RouteMistakes Route = "mistakes"
	RouteResult   Route = "result"
)

// Session is one live practice attempt. Its methods are safe for concurrent
// use; actions on one session are applied one at a time.
type Session struct {
	ID        string
	LearnerID string
	Bank      catalog.Bank
	Mode      session.Mode
	IsCustom  bool

	svc          *Service
	key          string
	attemptID    string
	baseTimeUsed int
	started      time.Time

	mu      sync.Mutex
	state   *session.State
	results map[string]grading.Result
	counted map[string]bool // daily progress
	advance *time.Timer
	closed  bool

	// written from the writer's goroutines and the event watcher
	statusMu sync.Mutex
	recordID string
	stale    bool
	saveErr  error
}

type NextResult struct {
	View     View                  `json:"session"`
	Finished bool                  `json:"finished"`
	Route    Route                 `json:"route,omitempty"`
	Attempt  *progress.ExamAttempt `json:"attempt,omitempty"`
}

type ExitResult struct {
	Route     Route  `json:"route"`
	RecordID  string `json:"recordId,omitempty"`
	AttemptID string `json:"attemptId,omitempty"`
}

type DifficultyResult struct {
	Record srs.Record `json:"record"`
	View   View       `json:"session"`
}

// View returns the learner-facing state of the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view()
}

// SelectOption clicks an option on the current choice question.
func (s *Session) SelectOption(ctx context.Context, label string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return View{}, ErrSessionClosed
	}
	out, err := s.state.Select(label)
	if err != nil {
		return View{}, err
	}
	return s.afterAnswer(ctx, out), nil
}

// ConfirmMultiple locks the current multi-select answer.
func (s *Session) ConfirmMultiple(ctx context.Context) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return View{}, ErrSessionClosed
	}
	out, err := s.state.Confirm()
	if err != nil {
		return View{}, err
	}
	return s.afterAnswer(ctx, out), nil
}

// SubmitFillBlank submits every blank of the current question at once.
func (s *Session) SubmitFillBlank(ctx context.Context, answers map[string]string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return View{}, ErrSessionClosed
	}
	out, err := s.state.SubmitBlanks(answers)
	if err != nil {
		return View{}, err
	}
	return s.afterAnswer(ctx, out), nil
}

// SubmitShortAnswer submits free text; grading goes to the evaluator.
func (s *Session) SubmitShortAnswer(ctx context.Context, text string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return View{}, ErrSessionClosed
	}
	out, err := s.state.SubmitText(text)
	if err != nil {
		return View{}, err
	}
	return s.afterAnswer(ctx, out), nil
}

func (s *Session) afterAnswer(ctx context.Context, out session.Outcome) View {
	if out.Grade {
		s.grade(ctx, s.state.Current())
	}
	s.persist(out.Save)
	return s.view()
}

func (s *Session) grade(ctx context.Context, q catalog.Question) {
	res, err := s.svc.grader.Grade(ctx, q, submissionFor(q, s.state.Answer(q.ID)))
	if err != nil {
		s.svc.logger.Warn("grading failed", "session", s.ID, "question", q.ID, "error", err)
		res = grading.Result{NeedsManual: true, Feedback: "evaluation is unavailable right now"}
	}
	s.results[q.ID] = res

	if q.Type != catalog.TypeShortAnswer && !res.IsCorrect {
		if _, err := s.svc.store.AddMistake(ctx, s.LearnerID, q.ID); err != nil {
			s.svc.logger.Warn("add mistake failed", "learner", s.LearnerID, "question", q.ID, "error", err)
		}
	}
	if !s.counted[q.ID] {
		s.counted[q.ID] = true
		if _, err := s.svc.store.IncrementDailyProgress(ctx, s.LearnerID, s.svc.now()); err != nil {
			s.svc.logger.Warn("daily progress failed", "learner", s.LearnerID, "error", err)
		}
	}
}

// GradeDifficulty schedules the current question for review and moves on
// after the configured delay.
func (s *Session) GradeDifficulty(ctx context.Context, g srs.Grade) (DifficultyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return DifficultyResult{}, ErrSessionClosed
	}
	if err := s.state.CanRateDifficulty(); err != nil {
		return DifficultyResult{}, err
	}
	qid := s.state.Current().ID
	rec, err := s.svc.UpdateSrs(ctx, s.LearnerID, qid, g)
	if err != nil {
		return DifficultyResult{}, err
	}
	if _, err := s.state.RateDifficulty(); err != nil {
		return DifficultyResult{}, err
	}

	if d := s.svc.cfg.AdvanceDelay; d > 0 {
		s.stopAdvance()
		s.advance = time.AfterFunc(d, func() { s.autoAdvance(qid) })
	} else if _, err := s.next(ctx, false); err != nil {
		return DifficultyResult{}, err
	}
	return DifficultyResult{Record: rec, View: s.view()}, nil
}

func (s *Session) autoAdvance(qid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance = nil
	if s.closed || s.state.Finished() || s.state.Current().ID != qid {
		return
	}
	if _, err := s.next(context.Background(), false); err != nil {
		s.svc.logger.Warn("auto advance failed", "session", s.ID, "error", err)
	}
}

// Next moves forward. Past the last question a mock session is scored and
// submitted, which needs confirm; other modes simply end.
func (s *Session) Next(ctx context.Context, confirm bool) (NextResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return NextResult{}, ErrSessionClosed
	}
	return s.next(ctx, confirm)
}

func (s *Session) next(ctx context.Context, confirm bool) (NextResult, error) {
	s.stopAdvance()
	out, err := s.state.Next(confirm)
	if err != nil {
		return NextResult{}, err
	}
	if !out.Finished {
		s.persist(out.Save)
		return NextResult{View: s.view()}, nil
	}
	if s.Mode == session.Mock {
		a, err := s.finish(ctx)
		if err != nil {
			return NextResult{}, err
		}
		return NextResult{View: s.view(), Finished: true, Route: RouteResult, Attempt: &a}, nil
	}
	res, err := s.exit(ctx)
	if err != nil {
		return NextResult{}, err
	}
	return NextResult{View: s.view(), Finished: true, Route: res.Route}, nil
}

func (s *Session) Previous() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return View{}, ErrSessionClosed
	}
	s.stopAdvance()
	out, err := s.state.Previous()
	if err != nil {
		return View{}, err
	}
	s.persist(out.Save)
	return s.view(), nil
}

// Jump moves to an arbitrary question.
func (s *Session) Jump(index int) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return View{}, ErrSessionClosed
	}
	s.stopAdvance()
	out, err := s.state.Jump(index)
	if err != nil {
		return View{}, err
	}
	s.persist(out.Save)
	return s.view(), nil
}

// Exit saves the latest state and closes the session. A mock session is
// suspended as an unfinished attempt. When the save fails the session stays
// open so the learner can retry.
func (s *Session) Exit(ctx context.Context) (ExitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ExitResult{}, ErrSessionClosed
	}
	return s.exit(ctx)
}

func (s *Session) exit(ctx context.Context) (ExitResult, error) {
	s.stopAdvance()
	if err := await(ctx, s.svc.writer.SaveNow(s.key, s.saveFunc())); err != nil {
		return ExitResult{}, fmt.Errorf("save progress: %w", err)
	}
	s.close()
	res := ExitResult{Route: RouteHome}
	if s.Mode.Review() {
		res.Route = RouteMistakes
	}
	if s.Mode == session.Mock {
		res.AttemptID = s.attemptID
	} else {
		res.RecordID = s.currentRecordID()
	}
	s.svc.logger.Info("session exited", "session", s.ID, "learner", s.LearnerID, "route", res.Route)
	return res, nil
}

// Finish scores and submits a mock attempt.
func (s *Session) Finish(ctx context.Context) (progress.ExamAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return progress.ExamAttempt{}, ErrSessionClosed
	}
	if s.Mode != session.Mock {
		return progress.ExamAttempt{}, ErrNotMock
	}
	return s.finish(ctx)
}

func (s *Session) finish(ctx context.Context) (progress.ExamAttempt, error) {
	s.stopAdvance()
	// the attempt row must exist before it can be finalized
	if err := await(ctx, s.svc.writer.SaveNow(s.key, s.saveFunc())); err != nil {
		return progress.ExamAttempt{}, fmt.Errorf("save attempt: %w", err)
	}

	snap := s.state.Snapshot()
	score, wrong := Score(ctx, s.svc.grader, s.state.Questions(), snap.UserAnswers, s.Bank.Scores())
	final := progress.FinalFields{
		Score:            score,
		TotalScore:       s.svc.cfg.TotalScore,
		PassScore:        s.svc.cfg.PassScore,
		Passed:           score >= s.svc.cfg.PassScore,
		TimeUsedSeconds:  s.timeUsed(),
		WrongQuestionIDs: wrong,
		UserAnswers:      snap.UserAnswers,
		SubmitTime:       s.svc.now(),
	}

	var attempt progress.ExamAttempt
	finalize := func(ctx context.Context) error {
		a, err := s.svc.store.FinalizeExamAttempt(ctx, s.LearnerID, s.attemptID, final)
		if errors.Is(err, progress.ErrAttemptFinished) {
			// an earlier try may have committed before timing out
			a, err = s.svc.store.GetExamAttempt(ctx, s.LearnerID, s.attemptID)
		}
		attempt = a
		return err
	}
	if err := await(ctx, s.svc.writer.SaveNow(s.key, finalize)); err != nil {
		return progress.ExamAttempt{}, fmt.Errorf("finalize attempt: %w", err)
	}
	s.close()
	s.svc.appendEvent(ctx, events.TypeAttemptFinalized, s.LearnerID, map[string]any{
		"attemptId": attempt.ID, "score": attempt.Score, "passed": attempt.Passed,
	})
	s.svc.logger.Info("mock attempt submitted", "session", s.ID, "attempt", attempt.ID, "score", attempt.Score, "passed", attempt.Passed)
	return attempt, nil
}

// discard drains pending writes and closes without a final save.
func (s *Session) discard(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.stopAdvance()
	if err := s.svc.writer.Flush(ctx, s.key); err != nil {
		s.svc.logger.Warn("flush before discard failed", "session", s.ID, "error", err)
	}
	s.close()
}

// caller holds s.mu
func (s *Session) close() {
	s.closed = true
	s.svc.unregister(s)
}

func (s *Session) stopAdvance() {
	if s.advance != nil {
		s.advance.Stop()
		s.advance = nil
	}
}

func (s *Session) persist(save session.Save) {
	switch save {
	case session.SaveNow:
		s.svc.writer.SaveNow(s.key, s.saveFunc())
	case session.SaveDebounced:
		s.svc.writer.SaveDebounced(s.key, s.saveFunc())
	}
}

// saveFunc captures the current state as a complete write. Caller holds s.mu.
func (s *Session) saveFunc() progress.SaveFunc {
	snap := s.state.Snapshot()
	if s.Mode == session.Mock {
		a := progress.ExamAttempt{
			ID:                 s.attemptID,
			LearnerID:          s.LearnerID,
			ExamID:             "mock:" + s.Bank.ID,
			ExamTitle:          s.Bank.Name,
			BankID:             s.Bank.ID,
			TotalScore:         s.svc.cfg.TotalScore,
			PassScore:          s.svc.cfg.PassScore,
			TimeUsedSeconds:    s.timeUsed(),
			UserAnswers:        snap.UserAnswers,
			OrderedQuestionIDs: snap.QuestionIDs,
			CurrentIndex:       snap.CurrentIndex,
			SubmitTime:         s.svc.now(),
		}
		return func(ctx context.Context) error {
			if err := s.svc.store.PutExamAttempt(ctx, a); err != nil {
				return err
			}
			s.svc.notifySaved(ctx, s, events.TypePracticeSaved, map[string]any{"attemptId": a.ID, "currentIndex": a.CurrentIndex})
			return nil
		}
	}

	rec := progress.PracticeRecord{
		LearnerID:    s.LearnerID,
		BankID:       s.Bank.ID,
		BankName:     s.Bank.Name,
		Mode:         s.Mode,
		IsCustom:     s.IsCustom,
		CurrentIndex: snap.CurrentIndex,
		UserAnswers:  snap.UserAnswers,
		QuestionIDs:  snap.QuestionIDs,
		ConfirmedIDs: snap.ConfirmedIDs,
		Count:        len(snap.QuestionIDs),
		LastUpdated:  s.svc.now(),
	}
	return func(ctx context.Context) error {
		rec.ID = s.currentRecordID()
		id, err := progress.UpsertPractice(ctx, s.svc.store, rec)
		if err != nil {
			return err
		}
		s.setRecordID(id)
		s.svc.notifySaved(ctx, s, events.TypePracticeSaved, map[string]any{"recordId": id, "currentIndex": rec.CurrentIndex})
		return nil
	}
}

func (s *Session) timeUsed() int {
	return s.baseTimeUsed + int(s.svc.now().Sub(s.started).Seconds())
}

func (s *Session) currentRecordID() string {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.recordID
}

func (s *Session) setRecordID(id string) {
	s.statusMu.Lock()
	s.recordID = id
	s.statusMu.Unlock()
}

func (s *Session) setSaveErr(err error) {
	s.statusMu.Lock()
	s.saveErr = err
	s.statusMu.Unlock()
}

func (s *Session) markStale() {
	s.statusMu.Lock()
	s.stale = true
	s.statusMu.Unlock()
}

func submissionFor(q catalog.Question, tokens []string) grading.Submission {
	switch q.Type {
	case catalog.TypeFillInBlank:
		m := make(map[string]string, len(q.Blanks))
		for i, b := range q.Blanks {
			if i < len(tokens) {
				m[b.ID] = tokens[i]
			}
		}
		return grading.Submission{Blanks: m}
	case catalog.TypeShortAnswer:
		if len(tokens) == 0 {
			return grading.Submission{}
		}
		return grading.Submission{Text: tokens[0]}
	default:
		return grading.Submission{Labels: tokens}
	}
}
