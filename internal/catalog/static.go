package catalog

import (
	"context"
	"fmt"
	"sync"
)

// Static is an in-memory catalog, used for seeding and tests.
type Static struct {
	mu        sync.RWMutex
	banks     map[string]Bank
	questions map[string]Question
	order     map[string][]string // bankID -> question ids
}

func NewStatic() *Static {
	return &Static{
		banks:     map[string]Bank{},
		questions: map[string]Question{},
		order:     map[string][]string{},
	}
}

func (s *Static) PutBank(b Bank, qs ...Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.banks[b.ID] = b
	for _, q := range qs {
		q.BankID = b.ID
		if _, exists := s.questions[q.ID]; !exists {
			s.order[b.ID] = append(s.order[b.ID], q.ID)
		}
		s.questions[q.ID] = q
	}
}

func (s *Static) Bank(_ context.Context, id string) (Bank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.banks[id]
	if !ok {
		return Bank{}, fmt.Errorf("bank %s: %w", id, ErrNotFound)
	}
	return b, nil
}

func (s *Static) Question(_ context.Context, id string) (Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return Question{}, fmt.Errorf("question %s: %w", id, ErrNotFound)
	}
	return q, nil
}

func (s *Static) BankQuestions(_ context.Context, bankID string, types ...QuestionType) ([]Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Question
	for _, id := range s.order[bankID] {
		if q := s.questions[id]; matchesType(q.Type, types) {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *Static) Questions(_ context.Context, ids []string) ([]Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Question, 0, len(ids))
	for _, id := range ids {
		if q, ok := s.questions[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}
