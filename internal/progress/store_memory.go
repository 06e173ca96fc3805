package progress

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mind-engage/mindengage-practice/internal/session"
	"github.com/mind-engage/mindengage-practice/internal/srs"
)

// MemoryStore keeps everything in process. Used by tests and single-node dev.
type MemoryStore struct {
	mu       sync.RWMutex
	practice map[string]PracticeRecord
	srs      map[string]srs.Record // learner|question
	mistakes map[string][]string
	attempts map[string]ExamAttempt
	daily    map[string]int // learner|day
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		practice: map[string]PracticeRecord{},
		srs:      map[string]srs.Record{},
		mistakes: map[string][]string{},
		attempts: map[string]ExamAttempt{},
		daily:    map[string]int{},
	}
}

func (m *MemoryStore) CreatePracticeRecord(_ context.Context, rec PracticeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.practice[rec.ID]; ok {
		return ErrDuplicate
	}
	if !rec.IsCustom {
		for _, r := range m.practice {
			if !r.IsCustom && r.LearnerID == rec.LearnerID && r.BankID == rec.BankID && r.Mode == rec.Mode {
				return ErrDuplicate
			}
		}
	}
	if rec.LastUpdated.IsZero() {
		rec.LastUpdated = time.Now()
	}
	m.practice[rec.ID] = clonePractice(rec)
	return nil
}

func (m *MemoryStore) UpdatePracticeRecord(_ context.Context, learnerID, id string, p Progress) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.practice[id]
	if !ok || r.LearnerID != learnerID {
		return 0, nil
	}
	r.CurrentIndex = p.CurrentIndex
	r.UserAnswers = cloneAnswers(p.UserAnswers)
	r.ConfirmedIDs = append([]string(nil), p.ConfirmedIDs...)
	if len(p.QuestionIDs) > 0 {
		r.QuestionIDs = append([]string(nil), p.QuestionIDs...)
		r.Count = len(p.QuestionIDs)
	}
	r.LastUpdated = p.LastUpdated
	if r.LastUpdated.IsZero() {
		r.LastUpdated = time.Now()
	}
	m.practice[id] = r
	return 1, nil
}

func (m *MemoryStore) FindPracticeRecord(_ context.Context, learnerID, bankID string, mode session.Mode, isCustom bool) (PracticeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *PracticeRecord
	for _, r := range m.practice {
		if r.LearnerID != learnerID || r.BankID != bankID || r.Mode != mode || r.IsCustom != isCustom {
			continue
		}
		if best == nil || r.LastUpdated.After(best.LastUpdated) {
			r := r
			best = &r
		}
	}
	if best == nil {
		return PracticeRecord{}, ErrNotFound
	}
	return clonePractice(*best), nil
}

func (m *MemoryStore) GetPracticeRecord(_ context.Context, learnerID, id string) (PracticeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.practice[id]
	if !ok || r.LearnerID != learnerID {
		return PracticeRecord{}, ErrNotFound
	}
	return clonePractice(r), nil
}

func (m *MemoryStore) ListPracticeRecords(_ context.Context, learnerID string) ([]PracticeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []PracticeRecord
	for _, r := range m.practice {
		if r.LearnerID == learnerID {
			out = append(out, clonePractice(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastUpdated.After(out[j].LastUpdated) })
	return out, nil
}

func (m *MemoryStore) DeletePracticeRecord(_ context.Context, learnerID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.practice[id]
	if !ok || r.LearnerID != learnerID {
		return ErrNotFound
	}
	delete(m.practice, id)
	return nil
}

func (m *MemoryStore) GetSrsRecord(_ context.Context, learnerID, questionID string) (srs.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.srs[learnerID+"|"+questionID]
	if !ok {
		return srs.Record{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryStore) PutSrsRecord(_ context.Context, rec srs.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := rec.LearnerID + "|" + rec.QuestionID
	if prev, ok := m.srs[k]; ok && prev.ID != "" {
		rec.ID = prev.ID
	}
	m.srs[k] = rec
	return nil
}

func (m *MemoryStore) ListSrsRecords(_ context.Context, learnerID string) ([]srs.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []srs.Record
	for _, r := range m.srs {
		if r.LearnerID == learnerID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if a, b := out[i].Next(), out[j].Next(); a != b {
			return a < b
		}
		return out[i].QuestionID < out[j].QuestionID
	})
	return out, nil
}

func (m *MemoryStore) PromoteMastered(_ context.Context, minIntervalDays int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	policy := srs.MasteryPolicy{IntervalDays: minIntervalDays}
	var n int64
	for k, r := range m.srs {
		if next := policy.Apply(r); next.Status != r.Status {
			m.srs[k] = next
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) AddMistake(_ context.Context, learnerID, questionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.mistakes[learnerID] {
		if id == questionID {
			return false, nil
		}
	}
	m.mistakes[learnerID] = append(m.mistakes[learnerID], questionID)
	return true, nil
}

func (m *MemoryStore) ListMistakes(_ context.Context, learnerID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.mistakes[learnerID]...), nil
}

func (m *MemoryStore) PutExamAttempt(_ context.Context, a ExamAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.attempts[a.ID]; ok {
		if prev.LearnerID != a.LearnerID {
			return ErrForbidden
		}
		if prev.IsFinished {
			return ErrAttemptFinished
		}
	}
	if a.SubmitTime.IsZero() {
		a.SubmitTime = time.Now()
	}
	m.attempts[a.ID] = cloneAttempt(a)
	return nil
}

func (m *MemoryStore) FinalizeExamAttempt(_ context.Context, learnerID, id string, f FinalFields) (ExamAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	switch {
	case !ok:
		return ExamAttempt{}, ErrNotFound
	case a.LearnerID != learnerID:
		return ExamAttempt{}, ErrForbidden
	case a.IsFinished:
		return ExamAttempt{}, ErrAttemptFinished
	}
	a.Score, a.TotalScore, a.PassScore, a.Passed = f.Score, f.TotalScore, f.PassScore, f.Passed
	a.TimeUsedSeconds = f.TimeUsedSeconds
	a.WrongQuestionIDs = append([]string(nil), f.WrongQuestionIDs...)
	a.UserAnswers = cloneAnswers(f.UserAnswers)
	a.SubmitTime = f.SubmitTime
	if a.SubmitTime.IsZero() {
		a.SubmitTime = time.Now()
	}
	a.IsFinished = true
	m.attempts[id] = a
	return cloneAttempt(a), nil
}

func (m *MemoryStore) GetExamAttempt(_ context.Context, learnerID, id string) (ExamAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok || a.LearnerID != learnerID {
		return ExamAttempt{}, ErrNotFound
	}
	return cloneAttempt(a), nil
}

func (m *MemoryStore) ListExamAttempts(_ context.Context, learnerID string) ([]ExamAttempt, error) {
	return m.filterAttempts(func(a ExamAttempt) bool { return a.LearnerID == learnerID }), nil
}

func (m *MemoryStore) ListAllExamAttempts(context.Context) ([]ExamAttempt, error) {
	return m.filterAttempts(func(ExamAttempt) bool { return true }), nil
}

func (m *MemoryStore) filterAttempts(keep func(ExamAttempt) bool) []ExamAttempt {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ExamAttempt
	for _, a := range m.attempts {
		if keep(a) {
			out = append(out, cloneAttempt(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmitTime.After(out[j].SubmitTime) })
	return out
}

func (m *MemoryStore) IncrementDailyProgress(_ context.Context, learnerID string, day time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := learnerID + "|" + day.Format(srs.DateLayout)
	m.daily[k]++
	return m.daily[k], nil
}

func (m *MemoryStore) DailyProgress(_ context.Context, learnerID string, day time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.daily[learnerID+"|"+day.Format(srs.DateLayout)], nil
}

func (m *MemoryStore) ResetLearner(_ context.Context, learnerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.practice {
		if r.LearnerID == learnerID {
			delete(m.practice, id)
		}
	}
	for k, r := range m.srs {
		if r.LearnerID == learnerID {
			delete(m.srs, k)
		}
	}
	for id, a := range m.attempts {
		if a.LearnerID == learnerID {
			delete(m.attempts, id)
		}
	}
	prefix := learnerID + "|"
	for k := range m.daily {
		if strings.HasPrefix(k, prefix) {
			delete(m.daily, k)
		}
	}
	delete(m.mistakes, learnerID)
	return nil
}

func cloneAnswers(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}

func clonePractice(r PracticeRecord) PracticeRecord {
	r.UserAnswers = cloneAnswers(r.UserAnswers)
	r.QuestionIDs = append([]string(nil), r.QuestionIDs...)
	r.ConfirmedIDs = append([]string(nil), r.ConfirmedIDs...)
	return r
}

func cloneAttempt(a ExamAttempt) ExamAttempt {
	a.UserAnswers = cloneAnswers(a.UserAnswers)
	a.WrongQuestionIDs = append([]string(nil), a.WrongQuestionIDs...)
	a.OrderedQuestionIDs = append([]string(nil), a.OrderedQuestionIDs...)
	return a
}
