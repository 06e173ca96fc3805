package session

import (
	"strings"

	"github.com/mind-engage/mindengage-practice/internal/catalog"
)

// Viewed marks a question that was shown in memory mode but not answered.
// It never collides with an option label.
const Viewed = "__VIEWED__"

// MaxTextLen bounds a short-answer submission.
const MaxTextLen = 5000

type Phase string

const (
	PhaseUnanswered Phase = "UNANSWERED"
	PhaseSelecting  Phase = "SELECTING"
	PhaseAnswered   Phase = "ANSWERED"
	PhaseConfirmed  Phase = "CONFIRMED"
	PhaseSubmitted  Phase = "SUBMITTED"
	PhaseViewed     Phase = "VIEWED"
)

// Save tells the caller how urgently the change must reach storage.
type Save int

const (
	SaveNone Save = iota
	SaveDebounced
	SaveNow
)

// Outcome describes what an action changed.
type Outcome struct {
	QuestionID string
	// Grade is set when the action locked an answer that must be graded now.
	Grade bool
	Save  Save
	// Finished is set when navigation moved past the last question.
	Finished bool
}

// Snapshot is a deep copy of the persisted part of a State.
type Snapshot struct {
	Mode         Mode                `json:"mode"`
	CurrentIndex int                 `json:"currentIndex"`
	UserAnswers  map[string][]string `json:"userAnswers"`
	QuestionIDs  []string            `json:"questionOrder"`
	ConfirmedIDs []string            `json:"confirmedIds,omitempty"`
}

// State is one attempt through a fixed question order. It is not safe for
// concurrent use.
type State struct {
	mode      Mode
	order     []catalog.Question
	index     int
	answers   map[string][]string
	confirmed map[string]bool // multi-select locked
	submitted map[string]bool // fill-blank and short answer locked
	rated     map[string]bool // difficulty graded
	finished  bool
}

// New starts a session at the first question. The order of qs is kept for
// the lifetime of the state.
func New(mode Mode, qs []catalog.Question) (*State, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return nil, err
	}
	if len(qs) == 0 {
		return nil, ErrEmpty
	}
	order := make([]catalog.Question, len(qs))
	copy(order, qs)
	return &State{
		mode:      mode,
		order:     order,
		answers:   map[string][]string{},
		confirmed: map[string]bool{},
		submitted: map[string]bool{},
		rated:     map[string]bool{},
	}, nil
}

// Restore rebuilds a session from persisted progress. Answers for questions
// outside qs are dropped. In grading modes a stored multi-select answer is
// locked only when its id is in confirmed; any other selection resumes as
// SELECTING. Stored text answers are always locked, since they are only
// recorded on submit.
func Restore(mode Mode, qs []catalog.Question, index int, answers map[string][]string, confirmed []string) (*State, error) {
	s, err := New(mode, qs)
	if err != nil {
		return nil, err
	}
	s.index = clamp(index, 0, len(s.order)-1)
	wasConfirmed := make(map[string]bool, len(confirmed))
	for _, id := range confirmed {
		wasConfirmed[id] = true
	}
	for _, q := range s.order {
		tokens, ok := answers[q.ID]
		if !ok {
			continue
		}
		s.answers[q.ID] = append([]string(nil), tokens...)
		if !mode.GradesOnAnswer() || !answered(tokens) {
			continue
		}
		switch q.Type {
		case catalog.TypeMultiple:
			if wasConfirmed[q.ID] {
				s.confirmed[q.ID] = true
			}
		case catalog.TypeFillInBlank, catalog.TypeShortAnswer:
			s.submitted[q.ID] = true
		}
	}
	return s, nil
}

func (s *State) Mode() Mode { return s.mode }
func (s *State) Index() int { return s.index }
func (s *State) Len() int { return len(s.order) }
func (s *State) Finished() bool { return s.finished }
func (s *State) IsLast() bool { return s.index == len(s.order)-1 }

// Current is the question at the cursor.
func (s *State) Current() catalog.Question { return s.order[s.index] }

// Questions returns the fixed order.
func (s *State) Questions() []catalog.Question {
	out := make([]catalog.Question, len(s.order))
	copy(out, s.order)
	return out
}

// Answer returns the tokens recorded for qid.
func (s *State) Answer(qid string) []string {
	return append([]string(nil), s.answers[qid]...)
}

// Phase reports where qid stands.
func (s *State) Phase(qid string) Phase {
	q, ok := s.question(qid)
	if !ok {
		return PhaseUnanswered
	}
	tokens := s.answers[qid]
	if isViewed(tokens) {
		return PhaseViewed
	}
	if !answered(tokens) {
		return PhaseUnanswered
	}
	if !s.mode.GradesOnAnswer() {
		return PhaseAnswered
	}
	switch q.Type {
	case catalog.TypeMultiple:
		if s.confirmed[qid] {
			return PhaseConfirmed
		}
		return PhaseSelecting
	case catalog.TypeFillInBlank, catalog.TypeShortAnswer:
		if s.submitted[qid] {
			return PhaseSubmitted
		}
		return PhaseUnanswered
	default:
		return PhaseAnswered
	}
}

// Locked reports whether qid carries a final answer in a grading mode.
func (s *State) Locked(qid string) bool {
	switch s.Phase(qid) {
	case PhaseAnswered, PhaseConfirmed, PhaseSubmitted:
		return s.mode.GradesOnAnswer()
	}
	return false
}

// Select records an option click on the current question. Single-choice
// and judge questions lock immediately in grading modes; multi-select toggles
// until Confirm.
func (s *State) Select(label string) (Outcome, error) {
	if s.finished {
		return Outcome{}, ErrSessionFinished
	}
	q := s.Current()
	if !q.Type.IsChoice() {
		return Outcome{}, ErrWrongType
	}
	if err := checkLabel(q, label); err != nil {
		return Outcome{}, err
	}
	out := Outcome{QuestionID: q.ID}
	cur := s.answers[q.ID]
	if isViewed(cur) {
		cur = nil
	}

	if q.Type == catalog.TypeMultiple {
		if s.mode.GradesOnAnswer() && s.confirmed[q.ID] {
			return Outcome{}, ErrAlreadyLocked
		}
		s.answers[q.ID] = toggle(cur, label)
		out.Save = SaveDebounced
		if !s.mode.GradesOnAnswer() {
			out.Save = SaveNow
		}
		return out, nil
	}

	if s.mode.GradesOnAnswer() && answered(cur) {
		return Outcome{}, ErrAlreadyLocked
	}
	s.answers[q.ID] = []string{label}
	out.Save = SaveNow
	out.Grade = s.mode.GradesOnAnswer()
	return out, nil
}

// Confirm locks the current multi-select answer.
func (s *State) Confirm() (Outcome, error) {
	if s.finished {
		return Outcome{}, ErrSessionFinished
	}
	q := s.Current()
	if q.Type != catalog.TypeMultiple {
		return Outcome{}, ErrWrongType
	}
	if !s.mode.GradesOnAnswer() {
		return Outcome{}, ErrNotAnswerable
	}
	if s.confirmed[q.ID] {
		return Outcome{}, ErrAlreadyLocked
	}
	if !answered(s.answers[q.ID]) {
		return Outcome{}, invalid("select at least one option")
	}
	s.confirmed[q.ID] = true
	return Outcome{QuestionID: q.ID, Grade: true, Save: SaveNow}, nil
}

// SubmitBlanks records a fill-in-blank answer. Every blank must be filled.
func (s *State) SubmitBlanks(values map[string]string) (Outcome, error) {
	if s.finished {
		return Outcome{}, ErrSessionFinished
	}
	q := s.Current()
	if q.Type != catalog.TypeFillInBlank {
		return Outcome{}, ErrWrongType
	}
	if err := s.checkSubmittable(q.ID); err != nil {
		return Outcome{}, err
	}
	var missing []string
	tokens := make([]string, 0, len(q.Blanks))
	for _, b := range q.Blanks {
		v := values[b.ID]
		if strings.TrimSpace(v) == "" {
			missing = append(missing, b.ID)
		}
		tokens = append(tokens, v)
	}
	if len(missing) > 0 {
		return Outcome{}, invalid("fill in every blank", missing...)
	}
	if len(tokens) == 0 {
		return Outcome{}, invalid("question has no blanks")
	}
	return s.lockText(q.ID, tokens), nil
}

// SubmitText records a short answer.
func (s *State) SubmitText(text string) (Outcome, error) {
	if s.finished {
		return Outcome{}, ErrSessionFinished
	}
	q := s.Current()
	if q.Type != catalog.TypeShortAnswer {
		return Outcome{}, ErrWrongType
	}
	if err := s.checkSubmittable(q.ID); err != nil {
		return Outcome{}, err
	}
	if strings.TrimSpace(text) == "" {
		return Outcome{}, invalid("answer is empty", "text")
	}
	if len([]rune(text)) > MaxTextLen {
		return Outcome{}, invalid("answer is too long", "text")
	}
	return s.lockText(q.ID, []string{text}), nil
}

func (s *State) checkSubmittable(qid string) error {
	if s.mode == Memory {
		return ErrNotAnswerable
	}
	if !s.mode.AllowsEdits() && s.submitted[qid] {
		return ErrAlreadyLocked
	}
	return nil
}

func (s *State) lockText(qid string, tokens []string) Outcome {
	s.answers[qid] = tokens
	if s.mode.GradesOnAnswer() {
		s.submitted[qid] = true
	}
	return Outcome{QuestionID: qid, Grade: s.mode.GradesOnAnswer(), Save: SaveNow}
}

// RateDifficulty marks the current question's difficulty as graded. It is
// valid once per question and only after the answer is locked.
func (s *State) RateDifficulty() (Outcome, error) {
	if err := s.CanRateDifficulty(); err != nil {
		return Outcome{}, err
	}
	q := s.Current()
	s.rated[q.ID] = true
	return Outcome{QuestionID: q.ID}, nil
}

// CanRateDifficulty runs the RateDifficulty checks without marking anything.
func (s *State) CanRateDifficulty() error {
	if s.finished {
		return ErrSessionFinished
	}
	if !s.mode.PromptsDifficulty() {
		return ErrNotAnswerable
	}
	q := s.Current()
	if !s.Locked(q.ID) {
		return ErrSchedulingInput
	}
	if s.rated[q.ID] {
		return ErrAlreadyGraded
	}
	return nil
}

// Rated reports whether qid's difficulty was graded in this session.
func (s *State) Rated(qid string) bool { return s.rated[qid] }

// Next advances. Moving past the last question finishes the session; in mock
// mode that requires confirm.
func (s *State) Next(confirm bool) (Outcome, error) {
	if s.finished {
		return Outcome{}, ErrSessionFinished
	}
	q := s.Current()
	out := Outcome{QuestionID: q.ID, Save: SaveDebounced}
	if s.IsLast() && s.mode == Mock && !confirm {
		return Outcome{}, ErrNeedsConfirmation
	}
	if s.mode.RecordsViewed() && len(s.answers[q.ID]) == 0 {
		s.answers[q.ID] = []string{Viewed}
		out.Save = SaveNow
	}
	if s.IsLast() {
		s.finished = true
		out.Finished = true
		out.Save = SaveNow
		return out, nil
	}
	s.index++
	return out, nil
}

// Previous steps back; it is a no-op on the first question.
func (s *State) Previous() (Outcome, error) {
	if s.finished {
		return Outcome{}, ErrSessionFinished
	}
	if s.index == 0 {
		return Outcome{QuestionID: s.Current().ID}, nil
	}
	s.index--
	return Outcome{QuestionID: s.Current().ID, Save: SaveDebounced}, nil
}

// Jump moves to an arbitrary index, as the question navigator does.
func (s *State) Jump(index int) (Outcome, error) {
	if s.finished {
		return Outcome{}, ErrSessionFinished
	}
	if index < 0 || index >= len(s.order) {
		return Outcome{}, invalid("index out of range", "index")
	}
	s.index = index
	return Outcome{QuestionID: s.Current().ID, Save: SaveDebounced}, nil
}

// Snapshot copies the persisted part of the state.
func (s *State) Snapshot() Snapshot {
	snap := Snapshot{
		Mode:         s.mode,
		CurrentIndex: s.index,
		UserAnswers:  make(map[string][]string, len(s.answers)),
		QuestionIDs:  make([]string, len(s.order)),
	}
	for k, v := range s.answers {
		snap.UserAnswers[k] = append([]string(nil), v...)
	}
	for i, q := range s.order {
		snap.QuestionIDs[i] = q.ID
		if s.confirmed[q.ID] {
			snap.ConfirmedIDs = append(snap.ConfirmedIDs, q.ID)
		}
	}
	return snap
}

// HasProgress reports whether stored progress is worth offering to resume:
// the learner moved past the first question or gave a real answer.
func HasProgress(index int, answers map[string][]string) bool {
	if index > 0 {
		return true
	}
	for _, tokens := range answers {
		if answered(tokens) {
			return true
		}
	}
	return false
}

// IsRealAnswer reports whether tokens hold an actual answer rather than
// nothing or the viewed marker.
func IsRealAnswer(tokens []string) bool { return answered(tokens) }

func (s *State) question(qid string) (catalog.Question, bool) {
	for _, q := range s.order {
		if q.ID == qid {
			return q, true
		}
	}
	return catalog.Question{}, false
}

func answered(tokens []string) bool {
	return len(tokens) > 0 && !isViewed(tokens)
}

func isViewed(tokens []string) bool {
	return len(tokens) == 1 && tokens[0] == Viewed
}

func toggle(cur []string, label string) []string {
	out := make([]string, 0, len(cur)+1)
	found := false
	for _, l := range cur {
		if l == label {
			found = true
			continue
		}
		out = append(out, l)
	}
	if !found {
		out = append(out, label)
	}
	return out
}

// checkLabel rejects the reserved marker and, when options are known, labels
// past the last option. Labels are A, B, C... by option position.
func checkLabel(q catalog.Question, label string) error {
	if label == "" || label == Viewed {
		return invalid("invalid option", "label")
	}
	if len(q.Options) == 0 {
		return nil
	}
	if len(label) != 1 || label[0] < 'A' || int(label[0]-'A') >= len(q.Options) {
		return invalid("unknown option "+label, "label")
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
