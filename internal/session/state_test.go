package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-practice/internal/catalog"
)

func sampleQuestions() []catalog.Question {
	return []catalog.Question{
		{ID: "q1", Type: catalog.TypeSingle, Options: []string{"a", "b", "c"}, Answer: []string{"A"}},
		{ID: "q2", Type: catalog.TypeMultiple, Options: []string{"a", "b", "c", "d"}, Answer: []string{"A", "C"}},
		{ID: "q3", Type: catalog.TypeFillInBlank, Blanks: []catalog.Blank{
			{ID: "b1", AcceptedAnswers: []string{"Paris"}},
			{ID: "b2", AcceptedAnswers: []string{"Seine"}},
		}},
		{ID: "q4", Type: catalog.TypeShortAnswer, ReferenceAnswer: "ref"},
	}
}

func TestSequentialScenario(t *testing.T) {
	s, err := New(Sequential, sampleQuestions()[:2])
	require.NoError(t, err)

	out, err := s.Select("A")
	require.NoError(t, err)
	assert.True(t, out.Grade)
	assert.Equal(t, SaveNow, out.Save)
	assert.Equal(t, PhaseAnswered, s.Phase("q1"))
	assert.Equal(t, map[string][]string{"q1": {"A"}}, s.Snapshot().UserAnswers)

	_, err = s.Select("B")
	assert.ErrorIs(t, err, ErrAlreadyLocked)

	_, err = s.Next(false)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Index())

	out, err = s.Select("C")
	require.NoError(t, err)
	assert.False(t, out.Grade)
	assert.Equal(t, PhaseSelecting, s.Phase("q2"))
	_, err = s.Select("A")
	require.NoError(t, err)

	out, err = s.Confirm()
	require.NoError(t, err)
	assert.True(t, out.Grade)
	assert.Equal(t, SaveNow, out.Save)
	assert.Equal(t, PhaseConfirmed, s.Phase("q2"))

	snap := s.Snapshot()
	assert.Equal(t, 1, snap.CurrentIndex)
	assert.Equal(t, map[string][]string{"q1": {"A"}, "q2": {"C", "A"}}, snap.UserAnswers)
	assert.True(t, HasProgress(snap.CurrentIndex, snap.UserAnswers))

	// confirmed questions never go back to selecting
	_, err = s.Select("B")
	assert.ErrorIs(t, err, ErrAlreadyLocked)
	_, err = s.Confirm()
	assert.ErrorIs(t, err, ErrAlreadyLocked)
	assert.Equal(t, PhaseConfirmed, s.Phase("q2"))

	out, err = s.Next(false)
	require.NoError(t, err)
	assert.True(t, out.Finished)
	_, err = s.Previous()
	assert.ErrorIs(t, err, ErrSessionFinished)
}

func TestConfirmRequiresSelection(t *testing.T) {
	s, err := New(Mistake, sampleQuestions()[1:2])
	require.NoError(t, err)

	_, err = s.Confirm()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))

	_, _ = s.Select("A")
	_, _ = s.Select("A") // toggled off again
	_, err = s.Confirm()
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, PhaseUnanswered, s.Phase("q2"))
}

func TestSelectRejectsUnknownLabels(t *testing.T) {
	s, err := New(Sequential, sampleQuestions()[:1])
	require.NoError(t, err)

	var ve *ValidationError
	_, err = s.Select("Z")
	assert.True(t, errors.As(err, &ve))
	_, err = s.Select(Viewed)
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, PhaseUnanswered, s.Phase("q1"))
}

func TestSubmitBlanksListsMissing(t *testing.T) {
	s, err := New(Sequential, sampleQuestions()[2:3])
	require.NoError(t, err)

	_, err = s.SubmitBlanks(map[string]string{"b1": "Paris", "b2": "  "})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"b2"}, ve.Fields)
	assert.Empty(t, s.Answer("q3"))

	out, err := s.SubmitBlanks(map[string]string{"b2": "seine", "b1": "paris"})
	require.NoError(t, err)
	assert.True(t, out.Grade)
	assert.Equal(t, []string{"paris", "seine"}, s.Answer("q3"))
	assert.Equal(t, PhaseSubmitted, s.Phase("q3"))

	_, err = s.SubmitBlanks(map[string]string{"b1": "x", "b2": "y"})
	assert.ErrorIs(t, err, ErrAlreadyLocked)
}

func TestSubmitText(t *testing.T) {
	s, err := New(SmartReview, sampleQuestions()[3:])
	require.NoError(t, err)

	var ve *ValidationError
	_, err = s.SubmitText("   ")
	assert.True(t, errors.As(err, &ve))

	long := make([]rune, MaxTextLen+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = s.SubmitText(string(long))
	assert.True(t, errors.As(err, &ve))

	out, err := s.SubmitText("my answer")
	require.NoError(t, err)
	assert.True(t, out.Grade)
	_, err = s.SubmitText("again")
	assert.ErrorIs(t, err, ErrAlreadyLocked)
}

func TestMockEditsAndConfirmation(t *testing.T) {
	s, err := New(Mock, sampleQuestions())
	require.NoError(t, err)

	out, err := s.Select("B")
	require.NoError(t, err)
	assert.False(t, out.Grade)
	out, err = s.Select("A")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, s.Answer("q1"))
	assert.Equal(t, PhaseAnswered, s.Phase("q1"))
	assert.False(t, s.Locked("q1"))

	_, _ = s.Next(false)
	_, err = s.Confirm()
	assert.ErrorIs(t, err, ErrNotAnswerable)

	_, _ = s.Next(false)
	_, err = s.SubmitBlanks(map[string]string{"b1": "a", "b2": "b"})
	require.NoError(t, err)
	out, err = s.SubmitBlanks(map[string]string{"b1": "Paris", "b2": "Seine"})
	require.NoError(t, err)
	assert.False(t, out.Grade)

	_, _ = s.Next(false)
	require.True(t, s.IsLast())
	_, err = s.Next(false)
	assert.ErrorIs(t, err, ErrNeedsConfirmation)
	assert.False(t, s.Finished())

	out, err = s.Next(true)
	require.NoError(t, err)
	assert.True(t, out.Finished)
}

func TestMemoryRecordsViewed(t *testing.T) {
	s, err := New(Memory, sampleQuestions()[:2])
	require.NoError(t, err)

	out, err := s.Next(false)
	require.NoError(t, err)
	assert.Equal(t, SaveNow, out.Save)
	assert.Equal(t, []string{Viewed}, s.Answer("q1"))
	assert.Equal(t, PhaseViewed, s.Phase("q1"))

	out, err = s.Select("C")
	require.NoError(t, err)
	assert.False(t, out.Grade)

	_, err = s.Previous()
	require.NoError(t, err)
	_, err = s.Select("B")
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, s.Answer("q1"))

	snap := s.Snapshot()
	assert.False(t, HasProgress(0, map[string][]string{"q1": {Viewed}}))
	assert.True(t, HasProgress(0, snap.UserAnswers))
}

func TestRateDifficulty(t *testing.T) {
	s, err := New(Mistake, sampleQuestions()[:1])
	require.NoError(t, err)

	_, err = s.RateDifficulty()
	assert.ErrorIs(t, err, ErrSchedulingInput)

	_, _ = s.Select("B")
	_, err = s.RateDifficulty()
	require.NoError(t, err)
	_, err = s.RateDifficulty()
	assert.ErrorIs(t, err, ErrAlreadyGraded)

	mock, err := New(Mock, sampleQuestions()[:1])
	require.NoError(t, err)
	_, _ = mock.Select("A")
	_, err = mock.RateDifficulty()
	assert.ErrorIs(t, err, ErrNotAnswerable)

	seq, err := New(Sequential, sampleQuestions()[:1])
	require.NoError(t, err)
	_, _ = seq.Select("B")
	_, err = seq.RateDifficulty()
	assert.ErrorIs(t, err, ErrNotAnswerable)
}

func TestRestoreLeavesUnconfirmedSelectionOpen(t *testing.T) {
	qs := sampleQuestions()
	s, err := Restore(Sequential, qs, 1, map[string][]string{"q2": {"B"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, PhaseSelecting, s.Phase("q2"))
	assert.False(t, s.Locked("q2"))

	_, err = s.Select("C")
	require.NoError(t, err)
	out, err := s.Confirm()
	require.NoError(t, err)
	assert.True(t, out.Grade)
	assert.Equal(t, PhaseConfirmed, s.Phase("q2"))
	assert.Equal(t, []string{"q2"}, s.Snapshot().ConfirmedIDs)
}

func TestRestoreKeepsOrderAndLocks(t *testing.T) {
	qs := sampleQuestions()
	s, err := Restore(Sequential, qs, 7, map[string][]string{
		"q2":    {"C", "A"},
		"q3":    {"Paris", "Seine"},
		"ghost": {"A"},
	}, []string{"q2"})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Index())
	assert.Equal(t, PhaseConfirmed, s.Phase("q2"))
	assert.Equal(t, PhaseSubmitted, s.Phase("q3"))
	assert.NotContains(t, s.Snapshot().UserAnswers, "ghost")
	assert.Equal(t, []string{"q1", "q2", "q3", "q4"}, s.Snapshot().QuestionIDs)

	s, err = Restore(Mock, qs, -2, map[string][]string{"q2": {"A"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Index())
	assert.Equal(t, PhaseAnswered, s.Phase("q2"))
}

func TestNewRejectsEmptyAndUnknownMode(t *testing.T) {
	_, err := New(Sequential, nil)
	assert.ErrorIs(t, err, ErrEmpty)
	_, err = New(Mode("BOGUS"), sampleQuestions())
	assert.Error(t, err)
}

func TestJumpAndPrevious(t *testing.T) {
	s, err := New(Sequential, sampleQuestions())
	require.NoError(t, err)
	out, err := s.Previous()
	require.NoError(t, err)
	assert.Equal(t, SaveNone, out.Save)

	_, err = s.Jump(2)
	require.NoError(t, err)
	assert.Equal(t, "q3", s.Current().ID)
	_, err = s.Jump(9)
	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestSnapshotIsACopy(t *testing.T) {
	s, err := New(Sequential, sampleQuestions()[:1])
	require.NoError(t, err)
	_, _ = s.Select("A")
	snap := s.Snapshot()
	snap.UserAnswers["q1"][0] = "mutated"
	assert.Equal(t, []string{"A"}, s.Answer("q1"))
}
