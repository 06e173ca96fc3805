package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

type SQLCatalog struct {
	db *sql.DB
}

func NewSQLCatalog(db *sql.DB) *SQLCatalog {
	return &SQLCatalog{db: db}
}

func (c *SQLCatalog) Bank(ctx context.Context, id string) (Bank, error) {
	var b Bank
	var scoreJSON string
	err := c.db.QueryRowContext(ctx, `SELECT id,name,score_config FROM banks WHERE id=$1`, id).
		Scan(&b.ID, &b.Name, &scoreJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Bank{}, fmt.Errorf("bank %s: %w", id, ErrNotFound)
		}
		return Bank{}, err
	}
	if scoreJSON != "" {
		if err := json.Unmarshal([]byte(scoreJSON), &b.ScoreConfig); err != nil {
			return Bank{}, fmt.Errorf("bank %s score config: %w", id, err)
		}
	}
	return b, nil
}

func (c *SQLCatalog) Question(ctx context.Context, id string) (Question, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+questionCols+` FROM questions WHERE id=$1`, id)
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, fmt.Errorf("question %s: %w", id, ErrNotFound)
	}
	return q, err
}

func (c *SQLCatalog) BankQuestions(ctx context.Context, bankID string, types ...QuestionType) ([]Question, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+questionCols+` FROM questions WHERE bank_id=$1 ORDER BY position, id`, bankID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		if matchesType(q.Type, types) {
			out = append(out, q)
		}
	}
	return out, rows.Err()
}

func (c *SQLCatalog) Questions(ctx context.Context, ids []string) ([]Question, error) {
	out := make([]Question, 0, len(ids))
	for _, id := range ids {
		q, err := c.Question(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

const questionCols = `id,bank_id,type,options_json,answer_json,blanks_json,reference_answer`

type scanner interface {
	Scan(dest ...any) error
}

func scanQuestion(s scanner) (Question, error) {
	var q Question
	var typ, optJSON, ansJSON, blankJSON string
	if err := s.Scan(&q.ID, &q.BankID, &typ, &optJSON, &ansJSON, &blankJSON, &q.ReferenceAnswer); err != nil {
		return Question{}, err
	}
	q.Type = QuestionType(typ)
	for _, f := range []struct {
		raw  string
		dest any
	}{{optJSON, &q.Options}, {ansJSON, &q.Answer}, {blankJSON, &q.Blanks}} {
		if f.raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(f.raw), f.dest); err != nil {
			return Question{}, fmt.Errorf("question %s: %w", q.ID, err)
		}
	}
	return q, nil
}

func matchesType(t QuestionType, types []QuestionType) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		if t == want {
			return true
		}
	}
	return false
}

// PutBank upserts a bank and its questions, keeping the given order.
func (c *SQLCatalog) PutBank(ctx context.Context, b Bank, qs []Question) error {
	scores := ""
	if len(b.ScoreConfig) > 0 {
		buf, err := json.Marshal(b.ScoreConfig)
		if err != nil {
			return err
		}
		scores = string(buf)
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO banks (id,name,score_config) VALUES ($1,$2,$3)
		ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, score_config=EXCLUDED.score_config`,
		b.ID, b.Name, scores); err != nil {
		return fmt.Errorf("put bank %s: %w", b.ID, err)
	}
	for i, q := range qs {
		opts, _ := json.Marshal(q.Options)
		ans, _ := json.Marshal(q.Answer)
		blanks, err := json.Marshal(q.Blanks)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO questions (id,bank_id,position,type,options_json,answer_json,blanks_json,reference_answer)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (id) DO UPDATE SET bank_id=EXCLUDED.bank_id, position=EXCLUDED.position, type=EXCLUDED.type,
			  options_json=EXCLUDED.options_json, answer_json=EXCLUDED.answer_json,
			  blanks_json=EXCLUDED.blanks_json, reference_answer=EXCLUDED.reference_answer`,
			q.ID, b.ID, i, string(q.Type), string(opts), string(ans), string(blanks), q.ReferenceAnswer); err != nil {
			return fmt.Errorf("put question %s: %w", q.ID, err)
		}
	}
	return tx.Commit()
}
