// Package practice drives learners through practice sessions: it resolves
// questions, owns the live session registry, and ties the state machine to
// grading, scheduling and persistence.
package practice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-practice/internal/catalog"
	"github.com/mind-engage/mindengage-practice/internal/events"
	"github.com/mind-engage/mindengage-practice/internal/grading"
	"github.com/mind-engage/mindengage-practice/internal/progress"
	"github.com/mind-engage/mindengage-practice/internal/session"
	"github.com/mind-engage/mindengage-practice/internal/srs"
)

type Config struct {
	// AdvanceDelay is the pause between a difficulty grade and moving on.
	// Zero advances immediately.
	AdvanceDelay time.Duration
	TotalScore   float64
	PassScore    float64
	Writer       progress.WriterConfig
}

func DefaultConfig() Config {
	return Config{
		AdvanceDelay: 400 * time.Millisecond,
		TotalScore:   100,
		PassScore:    60,
		Writer: progress.WriterConfig{
			Debounce: 500 * time.Millisecond,
			Retry:    progress.DefaultRetryConfig(),
		},
	}
}

type Option func(*Service)

// WithBus subscribes live sessions to cross-tab learner events.
func WithBus(b events.Bus) Option { return func(s *Service) { s.bus = b } }

// WithEventLog records domain events durably.
func WithEventLog(l *events.Log) Option { return func(s *Service) { s.eventLog = l } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

type Service struct {
	catalog  catalog.Catalog
	store    progress.Store
	grader   grading.Grader
	writer   *progress.Writer
	bus      events.Bus
	eventLog *events.Log
	cfg      Config
	now      func() time.Time
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	subs     map[string]context.CancelFunc // learner -> bus subscription
}

func NewService(cat catalog.Catalog, store progress.Store, grader grading.Grader, cfg Config, opts ...Option) *Service {
	s := &Service{
		catalog:  cat,
		store:    store,
		grader:   grader,
		cfg:      cfg,
		now:      time.Now,
		logger:   slog.Default(),
		sessions: map[string]*Session{},
		subs:     map[string]context.CancelFunc{},
	}
	for _, o := range opts {
		o(s)
	}
	wc := cfg.Writer
	if wc.Logger == nil {
		wc.Logger = s.logger
	}
	wc.OnResult = s.onSaveResult
	s.writer = progress.NewWriter(wc)
	return s
}

type Decision string

const (
	DecisionNone     Decision = ""
	DecisionContinue Decision = "continue"
	DecisionRestart  Decision = "restart"
)

type StartRequest struct {
	LearnerID string
	BankID    string
	Mode      session.Mode
	// Types narrows a bank session to some question types.
	Types []catalog.QuestionType
	// QuestionIDs makes the session custom. RecordID resumes a custom session.
	QuestionIDs []string
	RecordID    string
	// AttemptID resumes a suspended mock attempt.
	AttemptID string
	Decision  Decision
}

func (r StartRequest) custom() bool { return len(r.QuestionIDs) > 0 || r.RecordID != "" }

// Start resolves the questions and opens a session. Stored progress that is
// worth resuming makes Start fail with a ResumeRequiredError unless the
// request carries a decision.
func (s *Service) Start(ctx context.Context, req StartRequest) (*Session, error) {
	if req.LearnerID == "" {
		return nil, &session.ValidationError{Message: "learner id is required", Fields: []string{"learnerId"}}
	}
	mode, err := session.ParseMode(string(req.Mode))
	if err != nil {
		return nil, &session.ValidationError{Message: err.Error(), Fields: []string{"mode"}}
	}
	switch req.Decision {
	case DecisionNone, DecisionContinue, DecisionRestart:
	default:
		return nil, &session.ValidationError{Message: "unknown resume decision " + string(req.Decision), Fields: []string{"decision"}}
	}
	if req.BankID == "" && !req.custom() {
		return nil, &session.ValidationError{Message: "bank id is required", Fields: []string{"bankId"}}
	}

	sess := &Session{
		ID:        uuid.NewString(),
		LearnerID: req.LearnerID,
		Mode:      mode,
		IsCustom:  req.custom() && mode != session.Mock,
		svc:       s,
		started:   s.now(),
		results:   map[string]grading.Result{},
		counted:   map[string]bool{},
	}
	sess.Bank = s.bank(ctx, req.BankID)

	if mode == session.Mock {
		err = s.startMock(ctx, sess, req)
	} else {
		err = s.startPractice(ctx, sess, req)
	}
	if err != nil {
		return nil, err
	}
	s.register(sess)
	s.logger.Info("session started", "session", sess.ID, "learner", sess.LearnerID, "bank", sess.Bank.ID,
		"mode", sess.Mode, "questions", sess.state.Len(), "index", sess.state.Index())
	return sess, nil
}

func (s *Service) startPractice(ctx context.Context, sess *Session, req StartRequest) error {
	var existing *progress.PracticeRecord
	if sess.IsCustom {
		if req.RecordID != "" {
			rec, err := s.store.GetPracticeRecord(ctx, req.LearnerID, req.RecordID)
			switch {
			case err == nil:
				existing = &rec
			case !errors.Is(err, progress.ErrNotFound):
				return fmt.Errorf("load custom record: %w", err)
			}
		}
		sess.recordID = req.RecordID
		if sess.recordID == "" {
			sess.recordID = uuid.NewString()
		}
		sess.key = progress.Key{LearnerID: req.LearnerID, BankID: sess.Bank.ID, Mode: sess.Mode, IsCustom: true, RecordID: sess.recordID}.String()
	} else {
		rec, err := s.store.FindPracticeRecord(ctx, req.LearnerID, sess.Bank.ID, sess.Mode, false)
		switch {
		case err == nil:
			existing = &rec
			sess.recordID = rec.ID
		case !errors.Is(err, progress.ErrNotFound):
			return fmt.Errorf("find practice record: %w", err)
		}
		sess.key = progress.Key{LearnerID: req.LearnerID, BankID: sess.Bank.ID, Mode: sess.Mode}.String()
	}

	resume := existing != nil && session.HasProgress(existing.CurrentIndex, existing.UserAnswers)
	if resume && req.Decision == DecisionNone {
		return &ResumeRequiredError{Record: *existing}
	}

	// Continuing replays the stored order so the stored index points at the
	// same question. Review lists shrink as items are graded.
	ids := req.QuestionIDs
	if len(ids) == 0 && existing != nil && (existing.IsCustom || (resume && req.Decision == DecisionContinue)) {
		ids = existing.QuestionIDs
	}
	qs, err := s.questions(ctx, req.LearnerID, sess.Bank.ID, sess.Mode, req.Types, ids)
	if err != nil {
		return err
	}

	if !resume {
		sess.state, err = session.New(sess.Mode, qs)
		return err
	}
	switch req.Decision {
	case DecisionContinue:
		sess.state, err = session.Restore(sess.Mode, qs, existing.CurrentIndex, existing.UserAnswers, existing.ConfirmedIDs)
		return err
	case DecisionRestart:
		id := existing.ID
		zero := func(ctx context.Context) error {
			_, err := s.store.UpdatePracticeRecord(ctx, req.LearnerID, id, progress.Progress{
				UserAnswers: map[string][]string{},
				LastUpdated: s.now(),
			})
			return err
		}
		if err := await(ctx, s.writer.SaveNow(sess.key, zero)); err != nil {
			return fmt.Errorf("restart practice record: %w", err)
		}
		sess.state, err = session.New(sess.Mode, qs)
		return err
	}
	return nil
}

func (s *Service) startMock(ctx context.Context, sess *Session, req StartRequest) error {
	if req.AttemptID == "" {
		qs, err := s.questions(ctx, req.LearnerID, sess.Bank.ID, sess.Mode, req.Types, req.QuestionIDs)
		if err != nil {
			return err
		}
		sess.attemptID = uuid.NewString()
		sess.key = attemptKey(req.LearnerID, sess.attemptID)
		sess.state, err = session.New(session.Mock, qs)
		return err
	}

	a, err := s.store.GetExamAttempt(ctx, req.LearnerID, req.AttemptID)
	if errors.Is(err, progress.ErrNotFound) {
		return ErrSessionNotFound
	}
	if err != nil {
		return fmt.Errorf("load exam attempt: %w", err)
	}
	if a.IsFinished {
		return progress.ErrAttemptFinished
	}
	if a.BankID != "" && a.BankID != sess.Bank.ID {
		sess.Bank = s.bank(ctx, a.BankID)
	}
	qs, err := s.catalog.Questions(ctx, a.OrderedQuestionIDs)
	if err != nil {
		return fmt.Errorf("resolve attempt questions: %w", err)
	}
	if len(qs) == 0 {
		return ErrCatalogEmpty
	}
	sess.attemptID = a.ID
	sess.baseTimeUsed = a.TimeUsedSeconds
	sess.key = attemptKey(req.LearnerID, a.ID)
	sess.state, err = session.Restore(session.Mock, qs, a.CurrentIndex, a.UserAnswers, nil)
	return err
}

func attemptKey(learnerID, attemptID string) string {
	return "attempt:" + learnerID + ":" + attemptID
}

// bank never fails: review sessions run over pseudo banks that the catalog
// does not know.
func (s *Service) bank(ctx context.Context, id string) catalog.Bank {
	if id == "" {
		return catalog.Bank{ID: "custom", Name: "custom"}
	}
	b, err := s.catalog.Bank(ctx, id)
	if err != nil {
		if !errors.Is(err, catalog.ErrNotFound) {
			s.logger.Warn("bank lookup failed", "bank", id, "error", err)
		}
		return catalog.Bank{ID: id, Name: id}
	}
	return b
}

func (s *Service) questions(ctx context.Context, learnerID, bankID string, mode session.Mode, types []catalog.QuestionType, ids []string) ([]catalog.Question, error) {
	var (
		qs  []catalog.Question
		err error
	)
	switch {
	case len(ids) > 0:
		qs, err = s.catalog.Questions(ctx, ids)
	case mode == session.Mistake:
		ids, err = s.store.ListMistakes(ctx, learnerID)
		if err == nil && len(ids) > 0 {
			qs, err = s.catalog.Questions(ctx, ids)
		}
	case mode == session.SmartReview:
		ids, err = s.DueQuestions(ctx, learnerID)
		if err == nil && len(ids) > 0 {
			qs, err = s.catalog.Questions(ctx, ids)
		}
	default:
		qs, err = s.catalog.BankQuestions(ctx, bankID, types...)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve questions: %w", err)
	}
	if len(types) > 0 && len(ids) > 0 {
		qs = filterTypes(qs, types)
	}
	if len(qs) == 0 {
		return nil, ErrCatalogEmpty
	}
	return qs, nil
}

func filterTypes(qs []catalog.Question, types []catalog.QuestionType) []catalog.Question {
	out := qs[:0:0]
	for _, q := range qs {
		for _, t := range types {
			if q.Type == t {
				out = append(out, q)
				break
			}
		}
	}
	return out
}

// Resumable returns the stored record for a bank and mode when it holds
// progress worth offering to continue.
func (s *Service) Resumable(ctx context.Context, learnerID, bankID string, mode session.Mode) (*progress.PracticeRecord, error) {
	rec, err := s.store.FindPracticeRecord(ctx, learnerID, bankID, mode, false)
	if errors.Is(err, progress.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !session.HasProgress(rec.CurrentIndex, rec.UserAnswers) {
		return nil, nil
	}
	return &rec, nil
}

// Get returns a live session owned by learnerID.
func (s *Service) Get(learnerID, id string) (*Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if sess.LearnerID != learnerID {
		return nil, ErrForbidden
	}
	return sess, nil
}

// UpdateSrs grades a question's difficulty for a learner and stores the
// resulting schedule.
func (s *Service) UpdateSrs(ctx context.Context, learnerID, questionID string, g srs.Grade) (srs.Record, error) {
	if learnerID == "" || questionID == "" {
		return srs.Record{}, &session.ValidationError{Message: "learner and question are required", Fields: []string{"questionId"}}
	}
	var prev *srs.Record
	cur, err := s.store.GetSrsRecord(ctx, learnerID, questionID)
	switch {
	case err == nil:
		prev = &cur
	case !errors.Is(err, progress.ErrNotFound):
		return srs.Record{}, fmt.Errorf("load srs record: %w", err)
	}
	rec, err := srs.Schedule(prev, g, s.now())
	if err != nil {
		return srs.Record{}, &session.ValidationError{Message: err.Error(), Fields: []string{"grade"}}
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.LearnerID, rec.QuestionID = learnerID, questionID

	key := "srs:" + learnerID + ":" + questionID
	if err := await(ctx, s.writer.SaveNow(key, func(ctx context.Context) error {
		return s.store.PutSrsRecord(ctx, rec)
	})); err != nil {
		return srs.Record{}, fmt.Errorf("save srs record: %w", err)
	}
	s.appendEvent(ctx, events.TypeSrsGraded, learnerID, map[string]any{
		"questionId": questionID, "grade": g, "interval": rec.IntervalDays, "nextReviewDate": rec.Next(),
	})
	return rec, nil
}

// DueQuestions lists question ids due for review today.
func (s *Service) DueQuestions(ctx context.Context, learnerID string) ([]string, error) {
	records, err := s.store.ListSrsRecords(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("list srs records: %w", err)
	}
	mistakes, err := s.store.ListMistakes(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("list mistakes: %w", err)
	}
	return srs.DueQuestionIDs(records, mistakes, s.now()), nil
}

// Reset drains the learner's live sessions and deletes all of their stored
// progress.
func (s *Service) Reset(ctx context.Context, learnerID string) error {
	for _, sess := range s.learnerSessions(learnerID) {
		sess.discard(ctx)
	}
	if err := s.store.ResetLearner(ctx, learnerID); err != nil {
		return fmt.Errorf("reset learner: %w", err)
	}
	s.appendEvent(ctx, events.TypeLearnerReset, learnerID, map[string]any{})
	s.logger.Info("learner reset", "learner", learnerID)
	return nil
}

// Logout tells every tab of the learner to save and close its sessions.
func (s *Service) Logout(ctx context.Context, learnerID string) error {
	if s.bus == nil {
		s.exitAll(learnerID)
		return nil
	}
	return s.bus.Publish(ctx, learnerID, events.Event{Kind: events.KindLogout})
}

// Close flushes every pending write and stops listening for events.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	for learner, cancel := range s.subs {
		cancel()
		delete(s.subs, learner)
	}
	s.mu.Unlock()
	return s.writer.Close(ctx)
}

func (s *Service) register(sess *Session) {
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	_, subscribed := s.subs[sess.LearnerID]
	var ctx context.Context
	if s.bus != nil && !subscribed {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(context.Background())
		s.subs[sess.LearnerID] = cancel
	}
	s.mu.Unlock()

	if ctx == nil {
		return
	}
	ch, err := s.bus.Subscribe(ctx, sess.LearnerID)
	if err != nil {
		s.logger.Warn("learner event subscription failed", "learner", sess.LearnerID, "error", err)
		s.mu.Lock()
		delete(s.subs, sess.LearnerID)
		s.mu.Unlock()
		return
	}
	go s.watch(sess.LearnerID, ch)
}

func (s *Service) unregister(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess.ID)
	for _, other := range s.sessions {
		if other.LearnerID == sess.LearnerID {
			return
		}
	}
	if cancel, ok := s.subs[sess.LearnerID]; ok {
		cancel()
		delete(s.subs, sess.LearnerID)
	}
}

func (s *Service) learnerSessions(learnerID string) []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Session
	for _, sess := range s.sessions {
		if sess.LearnerID == learnerID {
			out = append(out, sess)
		}
	}
	return out
}

func (s *Service) watch(learnerID string, ch <-chan events.Event) {
	for e := range ch {
		switch e.Kind {
		case events.KindLogout:
			s.exitAll(learnerID)
		case events.KindLogin, events.KindProgressSaved:
			for _, sess := range s.learnerSessions(learnerID) {
				if sess.ID == e.Origin {
					continue
				}
				if e.Kind == events.KindLogin || e.Key == sess.key {
					sess.markStale()
				}
			}
		}
	}
}

func (s *Service) exitAll(learnerID string) {
	for _, sess := range s.learnerSessions(learnerID) {
		if _, err := sess.Exit(context.Background()); err != nil && !errors.Is(err, ErrSessionClosed) {
			s.logger.Warn("exit on logout failed", "session", sess.ID, "error", err)
		}
	}
}

func (s *Service) onSaveResult(key string, err error) {
	s.mu.Lock()
	var hit []*Session
	for _, sess := range s.sessions {
		if sess.key == key {
			hit = append(hit, sess)
		}
	}
	s.mu.Unlock()
	for _, sess := range hit {
		sess.setSaveErr(err)
	}
}

func (s *Service) notifySaved(ctx context.Context, sess *Session, typ string, data map[string]any) {
	if s.bus != nil {
		e := events.Event{Kind: events.KindProgressSaved, Origin: sess.ID, Key: sess.key}
		if err := s.bus.Publish(ctx, sess.LearnerID, e); err != nil {
			s.logger.Warn("publish progress event failed", "session", sess.ID, "error", err)
		}
	}
	s.appendEvent(ctx, typ, sess.LearnerID, data)
}

func (s *Service) appendEvent(ctx context.Context, typ, learnerID string, data map[string]any) {
	if s.eventLog == nil {
		return
	}
	if err := s.eventLog.Append(ctx, typ, learnerID, data); err != nil {
		s.logger.Warn("event log append failed", "type", typ, "error", err)
	}
}

// await waits for a queued write. The write itself is never cancelled.
func await(ctx context.Context, done <-chan error) error {
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
