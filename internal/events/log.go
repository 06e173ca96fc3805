package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Domain event types written to the event log.
const (
	TypePracticeSaved    = "practice.saved"
	TypeAttemptFinalized = "attempt.finalized"
	TypeSrsGraded        = "srs.graded"
	TypeLearnerReset     = "learner.reset"
)

type Record struct {
	Seq       int64           `json:"seq"`
	SiteID    string          `json:"siteId"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Log is the append-only event_log table.
type Log struct {
	db     *sql.DB
	siteID string
}

func NewLog(db *sql.DB, siteID string) *Log {
	if siteID == "" {
		siteID = "local"
	}
	return &Log{db: db, siteID: siteID}
}

// Append records typ for key (a learner id) with data encoded as JSON.
func (l *Log) Append(ctx context.Context, typ, key string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", typ, err)
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		l.siteID, typ, key, string(b), time.Now().Unix())
	return err
}

// Since returns up to limit records with seq greater than after, oldest first.
func (l *Log) Since(ctx context.Context, after int64, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT seq, site_id, typ, key, data, created_at FROM event_log
		 WHERE seq > $1 ORDER BY seq LIMIT $2`, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var r Record
		var data string
		var created int64
		if err := rows.Scan(&r.Seq, &r.SiteID, &r.Type, &r.Key, &data, &created); err != nil {
			return nil, err
		}
		r.Data = json.RawMessage(data)
		r.CreatedAt = time.Unix(created, 0)
		out = append(out, r)
	}
	return out, rows.Err()
}
