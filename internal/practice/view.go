package practice

import (
	"github.com/mind-engage/mindengage-practice/internal/catalog"
	"github.com/mind-engage/mindengage-practice/internal/grading"
	"github.com/mind-engage/mindengage-practice/internal/session"
)

// View is what a client renders for the current question.
type View struct {
	ID        string       `json:"id"`
	BankID    string       `json:"bankId"`
	BankName  string       `json:"bankName,omitempty"`
	Mode      session.Mode `json:"mode"`
	IsCustom  bool         `json:"isCustom"`
	RecordID  string       `json:"recordId,omitempty"`
	AttemptID string       `json:"attemptId,omitempty"`

	Index    int              `json:"currentIndex"`
	Total    int              `json:"total"`
	Question catalog.Question `json:"question"`
	Phase    session.Phase    `json:"phase"`
	Answer   []string         `json:"answer,omitempty"`
	Result   *grading.Result  `json:"result,omitempty"`
	// PromptDifficulty asks the client for a HARD/GOOD/EASY grade.
	PromptDifficulty bool `json:"promptDifficulty"`
	// ShowExplanation is set once the correct answer may be shown.
	ShowExplanation bool `json:"showExplanation"`

	Answered  int    `json:"answeredCount"`
	Finished  bool   `json:"finished"`
	Closed    bool   `json:"closed"`
	Stale     bool   `json:"stale"`
	SaveError string `json:"saveError,omitempty"`
}

// caller holds s.mu
func (s *Session) view() View {
	q := s.state.Current()
	v := View{
		ID:        s.ID,
		BankID:    s.Bank.ID,
		BankName:  s.Bank.Name,
		Mode:      s.Mode,
		IsCustom:  s.IsCustom,
		AttemptID: s.attemptID,
		Index:     s.state.Index(),
		Total:     s.state.Len(),
		Phase:     s.state.Phase(q.ID),
		Answer:    s.state.Answer(q.ID),
		Finished:  s.state.Finished(),
		Closed:    s.closed,
	}
	if res, ok := s.results[q.ID]; ok {
		r := res
		v.Result = &r
	}
	locked := s.state.Locked(q.ID)
	v.ShowExplanation = s.Mode.ExplanationFirst() || locked
	v.PromptDifficulty = s.Mode.PromptsDifficulty() && locked && !s.state.Rated(q.ID)
	v.Question = q
	if !v.ShowExplanation {
		v.Question = hideAnswer(q)
	}
	for _, other := range s.state.Questions() {
		if session.IsRealAnswer(s.state.Answer(other.ID)) {
			v.Answered++
		}
	}

	s.statusMu.Lock()
	v.RecordID = s.recordID
	v.Stale = s.stale
	if s.saveErr != nil {
		v.SaveError = "progress may not be saved yet: " + s.saveErr.Error()
	}
	s.statusMu.Unlock()
	return v
}

func hideAnswer(q catalog.Question) catalog.Question {
	q.Answer = nil
	q.ReferenceAnswer = ""
	if len(q.Blanks) > 0 {
		blanks := make([]catalog.Blank, len(q.Blanks))
		for i, b := range q.Blanks {
			blanks[i] = catalog.Blank{ID: b.ID, CaseSensitive: b.CaseSensitive}
		}
		q.Blanks = blanks
	}
	return q
}
