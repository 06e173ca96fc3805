package progress

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mind-engage/mindengage-practice/internal/session"
	"github.com/mind-engage/mindengage-practice/internal/srs"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const practiceCols = `id,learner_id,bank_id,bank_name,mode,is_custom,current_index,user_answers,question_ids,confirmed_ids,count,last_updated`

func (s *SQLStore) CreatePracticeRecord(ctx context.Context, rec PracticeRecord) error {
	answers, err := json.Marshal(nonNilAnswers(rec.UserAnswers))
	if err != nil {
		return err
	}
	order, err := json.Marshal(nonNilIDs(rec.QuestionIDs))
	if err != nil {
		return err
	}
	confirmed, err := json.Marshal(nonNilIDs(rec.ConfirmedIDs))
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO practice_records (`+practiceCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT DO NOTHING`,
		rec.ID, rec.LearnerID, rec.BankID, rec.BankName, string(rec.Mode), b2i(rec.IsCustom),
		rec.CurrentIndex, string(answers), string(order), string(confirmed), rec.Count, unix(rec.LastUpdated))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDuplicate
	}
	return nil
}

func (s *SQLStore) UpdatePracticeRecord(ctx context.Context, learnerID, id string, p Progress) (int64, error) {
	answers, err := json.Marshal(nonNilAnswers(p.UserAnswers))
	if err != nil {
		return 0, err
	}
	confirmed, err := json.Marshal(nonNilIDs(p.ConfirmedIDs))
	if err != nil {
		return 0, err
	}
	var order, count any // NULL keeps the stored order
	if len(p.QuestionIDs) > 0 {
		b, err := json.Marshal(p.QuestionIDs)
		if err != nil {
			return 0, err
		}
		order, count = string(b), len(p.QuestionIDs)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE practice_records SET current_index=$1, user_answers=$2, confirmed_ids=$3,
			question_ids=COALESCE($4, question_ids), count=COALESCE($5, count), last_updated=$6
		WHERE id=$7 AND learner_id=$8`,
		p.CurrentIndex, string(answers), string(confirmed), order, count, unix(p.LastUpdated), id, learnerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *SQLStore) FindPracticeRecord(ctx context.Context, learnerID, bankID string, mode session.Mode, isCustom bool) (PracticeRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+practiceCols+` FROM practice_records
		WHERE learner_id=$1 AND bank_id=$2 AND mode=$3 AND is_custom=$4
		ORDER BY last_updated DESC LIMIT 1`,
		learnerID, bankID, string(mode), b2i(isCustom))
	return scanPractice(row)
}

func (s *SQLStore) GetPracticeRecord(ctx context.Context, learnerID, id string) (PracticeRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+practiceCols+` FROM practice_records WHERE id=$1 AND learner_id=$2`, id, learnerID)
	return scanPractice(row)
}

func (s *SQLStore) ListPracticeRecords(ctx context.Context, learnerID string) ([]PracticeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+practiceCols+` FROM practice_records WHERE learner_id=$1 ORDER BY last_updated DESC`, learnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PracticeRecord
	for rows.Next() {
		r, err := scanPractice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) DeletePracticeRecord(ctx context.Context, learnerID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM practice_records WHERE id=$1 AND learner_id=$2`, id, learnerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPractice(sc scanner) (PracticeRecord, error) {
	var (
		r                    PracticeRecord
		mode                 string
		custom               int
		answersJSON, idsJSON string
		confirmedJSON        string
		lastUpdated          int64
	)
	err := sc.Scan(&r.ID, &r.LearnerID, &r.BankID, &r.BankName, &mode, &custom,
		&r.CurrentIndex, &answersJSON, &idsJSON, &confirmedJSON, &r.Count, &lastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PracticeRecord{}, ErrNotFound
		}
		return PracticeRecord{}, err
	}
	r.Mode = session.Mode(mode)
	r.IsCustom = custom != 0
	r.LastUpdated = time.Unix(lastUpdated, 0)
	if err := unmarshalText(answersJSON, &r.UserAnswers); err != nil {
		return PracticeRecord{}, fmt.Errorf("practice %s answers: %w", r.ID, err)
	}
	if err := unmarshalText(idsJSON, &r.QuestionIDs); err != nil {
		return PracticeRecord{}, fmt.Errorf("practice %s order: %w", r.ID, err)
	}
	if err := unmarshalText(confirmedJSON, &r.ConfirmedIDs); err != nil {
		return PracticeRecord{}, fmt.Errorf("practice %s confirmed: %w", r.ID, err)
	}
	if r.UserAnswers == nil {
		r.UserAnswers = map[string][]string{}
	}
	return r, nil
}

// --- spaced repetition ---

const srsCols = `id,learner_id,question_id,interval_days,ease_factor,repetitions,next_review,status`

func (s *SQLStore) GetSrsRecord(ctx context.Context, learnerID, questionID string) (srs.Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+srsCols+` FROM srs_records WHERE learner_id=$1 AND question_id=$2`, learnerID, questionID)
	return scanSrs(row)
}

func (s *SQLStore) PutSrsRecord(ctx context.Context, rec srs.Record) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO srs_records (`+srsCols+`,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (learner_id, question_id) DO UPDATE SET
		  interval_days=EXCLUDED.interval_days, ease_factor=EXCLUDED.ease_factor,
		  repetitions=EXCLUDED.repetitions, next_review=EXCLUDED.next_review,
		  status=EXCLUDED.status, updated_at=EXCLUDED.updated_at`,
		rec.ID, rec.LearnerID, rec.QuestionID, rec.IntervalDays, rec.EaseFactor, rec.Repetitions,
		rec.Next(), string(rec.Status), time.Now().Unix())
	return err
}

func (s *SQLStore) ListSrsRecords(ctx context.Context, learnerID string) ([]srs.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+srsCols+` FROM srs_records WHERE learner_id=$1 ORDER BY next_review, question_id`, learnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []srs.Record
	for rows.Next() {
		r, err := scanSrs(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) PromoteMastered(ctx context.Context, minIntervalDays int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE srs_records SET status=$1, updated_at=$2 WHERE status=$3 AND interval_days >= $4`,
		string(srs.StatusMastered), time.Now().Unix(), string(srs.StatusActive), minIntervalDays)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanSrs(sc scanner) (srs.Record, error) {
	var r srs.Record
	var next, status string
	err := sc.Scan(&r.ID, &r.LearnerID, &r.QuestionID, &r.IntervalDays, &r.EaseFactor, &r.Repetitions, &next, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return srs.Record{}, ErrNotFound
		}
		return srs.Record{}, err
	}
	t, err := time.Parse(srs.DateLayout, next)
	if err != nil {
		return srs.Record{}, fmt.Errorf("srs %s next review: %w", r.ID, err)
	}
	r.NextReviewDate = t
	r.Status = srs.Status(status)
	return r, nil
}

// --- mistakes ---

func (s *SQLStore) AddMistake(ctx context.Context, learnerID, questionID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO mistakes (learner_id, question_id, created_at) VALUES ($1,$2,$3) ON CONFLICT DO NOTHING`,
		learnerID, questionID, time.Now().Unix())
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *SQLStore) ListMistakes(ctx context.Context, learnerID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT question_id FROM mistakes WHERE learner_id=$1 ORDER BY created_at, question_id`, learnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// --- exam attempts ---

const attemptCols = `id,learner_id,exam_id,exam_title,bank_id,score,total_score,pass_score,passed,time_used,wrong_ids,user_answers,ordered_ids,current_index,is_finished,submit_time`

func (s *SQLStore) PutExamAttempt(ctx context.Context, a ExamAttempt) error {
	wrong, _ := json.Marshal(nonNilIDs(a.WrongQuestionIDs))
	answers, err := json.Marshal(nonNilAnswers(a.UserAnswers))
	if err != nil {
		return err
	}
	ordered, _ := json.Marshal(nonNilIDs(a.OrderedQuestionIDs))
	res, err := s.db.ExecContext(ctx, `INSERT INTO exam_attempts (`+attemptCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (id) DO UPDATE SET
		  exam_id=EXCLUDED.exam_id, exam_title=EXCLUDED.exam_title, bank_id=EXCLUDED.bank_id,
		  score=EXCLUDED.score, total_score=EXCLUDED.total_score, pass_score=EXCLUDED.pass_score,
		  passed=EXCLUDED.passed, time_used=EXCLUDED.time_used, wrong_ids=EXCLUDED.wrong_ids,
		  user_answers=EXCLUDED.user_answers, ordered_ids=EXCLUDED.ordered_ids,
		  current_index=EXCLUDED.current_index, is_finished=EXCLUDED.is_finished,
		  submit_time=EXCLUDED.submit_time
		WHERE exam_attempts.is_finished=0 AND exam_attempts.learner_id=EXCLUDED.learner_id`,
		a.ID, a.LearnerID, a.ExamID, a.ExamTitle, a.BankID, a.Score, a.TotalScore, a.PassScore,
		b2i(a.Passed), a.TimeUsedSeconds, string(wrong), string(answers), string(ordered),
		a.CurrentIndex, b2i(a.IsFinished), unix(a.SubmitTime))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.attemptRejection(ctx, a.LearnerID, a.ID)
	}
	return nil
}

func (s *SQLStore) FinalizeExamAttempt(ctx context.Context, learnerID, id string, f FinalFields) (ExamAttempt, error) {
	wrong, _ := json.Marshal(nonNilIDs(f.WrongQuestionIDs))
	answers, err := json.Marshal(nonNilAnswers(f.UserAnswers))
	if err != nil {
		return ExamAttempt{}, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE exam_attempts SET
		  score=$1, total_score=$2, pass_score=$3, passed=$4, time_used=$5,
		  wrong_ids=$6, user_answers=$7, submit_time=$8, is_finished=1
		WHERE id=$9 AND learner_id=$10 AND is_finished=0`,
		f.Score, f.TotalScore, f.PassScore, b2i(f.Passed), f.TimeUsedSeconds,
		string(wrong), string(answers), unix(f.SubmitTime), id, learnerID)
	if err != nil {
		return ExamAttempt{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ExamAttempt{}, s.attemptRejection(ctx, learnerID, id)
	}
	return s.GetExamAttempt(ctx, learnerID, id)
}

// attemptRejection explains why a write to an attempt touched no rows.
func (s *SQLStore) attemptRejection(ctx context.Context, learnerID, id string) error {
	var owner string
	var finished int
	err := s.db.QueryRowContext(ctx, `SELECT learner_id,is_finished FROM exam_attempts WHERE id=$1`, id).Scan(&owner, &finished)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case err != nil:
		return err
	case owner != learnerID:
		return ErrForbidden
	case finished != 0:
		return ErrAttemptFinished
	}
	return fmt.Errorf("exam attempt %s: write affected no rows", id)
}

func (s *SQLStore) GetExamAttempt(ctx context.Context, learnerID, id string) (ExamAttempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+attemptCols+` FROM exam_attempts WHERE id=$1 AND learner_id=$2`, id, learnerID)
	return scanAttempt(row)
}

func (s *SQLStore) ListExamAttempts(ctx context.Context, learnerID string) ([]ExamAttempt, error) {
	return s.listAttempts(ctx, `SELECT `+attemptCols+` FROM exam_attempts WHERE learner_id=$1 ORDER BY submit_time DESC`, learnerID)
}

func (s *SQLStore) ListAllExamAttempts(ctx context.Context) ([]ExamAttempt, error) {
	return s.listAttempts(ctx, `SELECT `+attemptCols+` FROM exam_attempts ORDER BY submit_time DESC`)
}

func (s *SQLStore) listAttempts(ctx context.Context, q string, args ...any) ([]ExamAttempt, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ExamAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAttempt(sc scanner) (ExamAttempt, error) {
	var (
		a                           ExamAttempt
		passed, finished            int
		wrongJSON, answers, ordered string
		submit                      int64
	)
	err := sc.Scan(&a.ID, &a.LearnerID, &a.ExamID, &a.ExamTitle, &a.BankID, &a.Score, &a.TotalScore,
		&a.PassScore, &passed, &a.TimeUsedSeconds, &wrongJSON, &answers, &ordered,
		&a.CurrentIndex, &finished, &submit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ExamAttempt{}, ErrNotFound
		}
		return ExamAttempt{}, err
	}
	a.Passed = passed != 0
	a.IsFinished = finished != 0
	a.SubmitTime = time.Unix(submit, 0)
	if err := unmarshalText(wrongJSON, &a.WrongQuestionIDs); err != nil {
		return ExamAttempt{}, err
	}
	if err := unmarshalText(answers, &a.UserAnswers); err != nil {
		return ExamAttempt{}, err
	}
	if err := unmarshalText(ordered, &a.OrderedQuestionIDs); err != nil {
		return ExamAttempt{}, err
	}
	return a, nil
}

// --- daily progress ---

func (s *SQLStore) IncrementDailyProgress(ctx context.Context, learnerID string, day time.Time) (int, error) {
	d := day.Format(srs.DateLayout)
	if _, err := s.db.ExecContext(ctx, `INSERT INTO daily_progress (learner_id, day, count) VALUES ($1,$2,1)
		ON CONFLICT (learner_id, day) DO UPDATE SET count = daily_progress.count + 1`, learnerID, d); err != nil {
		return 0, err
	}
	return s.DailyProgress(ctx, learnerID, day)
}

func (s *SQLStore) DailyProgress(ctx context.Context, learnerID string, day time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count FROM daily_progress WHERE learner_id=$1 AND day=$2`,
		learnerID, day.Format(srs.DateLayout)).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

// --- reset ---

var learnerTables = []string{"practice_records", "exam_attempts", "srs_records", "mistakes", "daily_progress"}

func (s *SQLStore) ResetLearner(ctx context.Context, learnerID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, table := range learnerTables {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE learner_id=$1`, learnerID); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// helpers

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

func unix(t time.Time) int64 {
	if t.IsZero() {
		return time.Now().Unix()
	}
	return t.Unix()
}

func unmarshalText(s string, v any) error {
	if s == "" || s == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}

func nonNilAnswers(m map[string][]string) map[string][]string {
	if m == nil {
		return map[string][]string{}
	}
	return m
}

func nonNilIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
