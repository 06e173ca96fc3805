package progress_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-practice/internal/progress"
	"github.com/mind-engage/mindengage-practice/internal/session"
)

func TestUpsertPracticeIsIdempotentByKey(t *testing.T) {
	ctx := context.Background()
	st := progress.NewMemoryStore()
	rec := progress.PracticeRecord{LearnerID: "u1", BankID: "b1", Mode: session.Sequential,
		UserAnswers: map[string][]string{"q1": {"A"}}}

	id1, err := progress.UpsertPractice(ctx, st, rec)
	require.NoError(t, err)
	rec.CurrentIndex = 4
	id2, err := progress.UpsertPractice(ctx, st, rec)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	list, err := st.ListPracticeRecords(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 4, list[0].CurrentIndex)
}

func TestUpsertPracticeRecreatesVanishedRecord(t *testing.T) {
	ctx := context.Background()
	st := progress.NewMemoryStore()

	id, err := progress.UpsertPractice(ctx, st, progress.PracticeRecord{
		ID: "gone", LearnerID: "u1", BankID: "b1", Mode: session.Memory, CurrentIndex: 2,
	})
	require.NoError(t, err)
	assert.NotEqual(t, "gone", id)
	got, err := st.GetPracticeRecord(ctx, "u1", id)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CurrentIndex)

	id, err = progress.UpsertPractice(ctx, st, progress.PracticeRecord{
		ID: "custom-1", LearnerID: "u1", BankID: "b1", Mode: session.Memory, IsCustom: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "custom-1", id)
}

// blindStore misses the first lookup, as if another tab created the record
// right after it.
type blindStore struct {
	progress.Store
	missed bool
}

func (b *blindStore) FindPracticeRecord(ctx context.Context, learnerID, bankID string, mode session.Mode, isCustom bool) (progress.PracticeRecord, error) {
	if !b.missed {
		b.missed = true
		return progress.PracticeRecord{}, progress.ErrNotFound
	}
	return b.Store.FindPracticeRecord(ctx, learnerID, bankID, mode, isCustom)
}

func TestUpsertPracticeLosesCreateRace(t *testing.T) {
	ctx := context.Background()
	mem := progress.NewMemoryStore()
	require.NoError(t, mem.CreatePracticeRecord(ctx, progress.PracticeRecord{
		ID: "winner", LearnerID: "u1", BankID: "b1", Mode: session.Sequential,
	}))

	id, err := progress.UpsertPractice(ctx, &blindStore{Store: mem}, progress.PracticeRecord{
		LearnerID: "u1", BankID: "b1", Mode: session.Sequential, CurrentIndex: 7,
	})
	require.NoError(t, err)
	assert.Equal(t, "winner", id)

	got, err := mem.GetPracticeRecord(ctx, "u1", "winner")
	require.NoError(t, err)
	assert.Equal(t, 7, got.CurrentIndex)
}
