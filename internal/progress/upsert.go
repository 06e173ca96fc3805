package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// UpsertPractice writes rec by key. An update that reaches no row falls back
// to creating the record, and a create that loses a race to another tab falls
// back to updating the winner. It returns the id the progress now lives under.
func UpsertPractice(ctx context.Context, st Store, rec PracticeRecord) (string, error) {
	if rec.LastUpdated.IsZero() {
		rec.LastUpdated = time.Now()
	}
	p := Progress{
		CurrentIndex: rec.CurrentIndex,
		UserAnswers:  rec.UserAnswers,
		QuestionIDs:  rec.QuestionIDs,
		ConfirmedIDs: rec.ConfirmedIDs,
		LastUpdated:  rec.LastUpdated,
	}

	if rec.ID == "" && !rec.IsCustom {
		existing, err := st.FindPracticeRecord(ctx, rec.LearnerID, rec.BankID, rec.Mode, false)
		switch {
		case err == nil:
			rec.ID = existing.ID
		case !errors.Is(err, ErrNotFound):
			return "", fmt.Errorf("find practice record: %w", err)
		}
	}

	if rec.ID != "" {
		n, err := st.UpdatePracticeRecord(ctx, rec.LearnerID, rec.ID, p)
		if err != nil {
			return "", fmt.Errorf("update practice record %s: %w", rec.ID, err)
		}
		if n > 0 {
			return rec.ID, nil
		}
		slog.Warn("practice record vanished; recreating", "id", rec.ID, "key", rec.Key().String())
		if !rec.IsCustom {
			rec.ID = ""
		}
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	err := st.CreatePracticeRecord(ctx, rec)
	if err == nil {
		return rec.ID, nil
	}
	if !errors.Is(err, ErrDuplicate) || rec.IsCustom {
		return "", fmt.Errorf("create practice record: %w", err)
	}

	// another writer created the keyed record first; last write wins
	winner, err := st.FindPracticeRecord(ctx, rec.LearnerID, rec.BankID, rec.Mode, false)
	if err != nil {
		return "", fmt.Errorf("find practice record after conflict: %w", err)
	}
	if _, err := st.UpdatePracticeRecord(ctx, rec.LearnerID, winner.ID, p); err != nil {
		return "", fmt.Errorf("update practice record %s: %w", winner.ID, err)
	}
	return winner.ID, nil
}
