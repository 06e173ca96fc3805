package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:practice.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/practice?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	// each connection to :memory: is its own database
	if driver == DriverSQLite && strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS banks (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  score_config TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  bank_id TEXT NOT NULL REFERENCES banks(id) ON DELETE CASCADE,
  position INTEGER NOT NULL DEFAULT 0,
  type TEXT NOT NULL,
  options_json TEXT NOT NULL DEFAULT '[]',
  answer_json TEXT NOT NULL DEFAULT '[]',
  blanks_json TEXT NOT NULL DEFAULT '[]',
  reference_answer TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS questions_bank ON questions (bank_id, position);

CREATE TABLE IF NOT EXISTS practice_records (
  id TEXT PRIMARY KEY,
  learner_id TEXT NOT NULL,
  bank_id TEXT NOT NULL,
  bank_name TEXT NOT NULL DEFAULT '',
  mode TEXT NOT NULL,
  is_custom INTEGER NOT NULL DEFAULT 0,
  current_index INTEGER NOT NULL DEFAULT 0,
  user_answers TEXT NOT NULL DEFAULT '{}',
  question_ids TEXT NOT NULL DEFAULT '[]',
  confirmed_ids TEXT NOT NULL DEFAULT '[]',
  count INTEGER NOT NULL DEFAULT 0,
  last_updated INTEGER NOT NULL
);
-- at most one non-custom record per learner, bank and mode
CREATE UNIQUE INDEX IF NOT EXISTS practice_records_key
  ON practice_records (learner_id, bank_id, mode) WHERE is_custom = 0;

CREATE TABLE IF NOT EXISTS exam_attempts (
  id TEXT PRIMARY KEY,
  learner_id TEXT NOT NULL,
  exam_id TEXT NOT NULL DEFAULT '',
  exam_title TEXT NOT NULL DEFAULT '',
  bank_id TEXT NOT NULL DEFAULT '',
  score REAL NOT NULL DEFAULT 0,
  total_score REAL NOT NULL DEFAULT 0,
  pass_score REAL NOT NULL DEFAULT 0,
  passed INTEGER NOT NULL DEFAULT 0,
  time_used INTEGER NOT NULL DEFAULT 0,
  wrong_ids TEXT NOT NULL DEFAULT '[]',
  user_answers TEXT NOT NULL DEFAULT '{}',
  ordered_ids TEXT NOT NULL DEFAULT '[]',
  current_index INTEGER NOT NULL DEFAULT 0,
  is_finished INTEGER NOT NULL DEFAULT 0,
  submit_time INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS exam_attempts_learner ON exam_attempts (learner_id, submit_time);

CREATE TABLE IF NOT EXISTS srs_records (
  id TEXT PRIMARY KEY,
  learner_id TEXT NOT NULL,
  question_id TEXT NOT NULL,
  interval_days INTEGER NOT NULL DEFAULT 0,
  ease_factor REAL NOT NULL DEFAULT 2.5,
  repetitions INTEGER NOT NULL DEFAULT 0,
  next_review TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'ACTIVE',
  updated_at INTEGER NOT NULL,
  UNIQUE (learner_id, question_id)
);

CREATE TABLE IF NOT EXISTS mistakes (
  learner_id TEXT NOT NULL,
  question_id TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  PRIMARY KEY (learner_id, question_id)
);

CREATE TABLE IF NOT EXISTS daily_progress (
  learner_id TEXT NOT NULL,
  day TEXT NOT NULL,
  count INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (learner_id, day)
);

CREATE TABLE IF NOT EXISTS event_log (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,          -- e.g. practice.saved
  key TEXT NOT NULL,          -- learner id
  data TEXT NOT NULL,         -- JSON payload
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS banks (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  score_config TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  bank_id TEXT NOT NULL REFERENCES banks(id) ON DELETE CASCADE,
  position INTEGER NOT NULL DEFAULT 0,
  type TEXT NOT NULL,
  options_json TEXT NOT NULL DEFAULT '[]',
  answer_json TEXT NOT NULL DEFAULT '[]',
  blanks_json TEXT NOT NULL DEFAULT '[]',
  reference_answer TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS questions_bank ON questions (bank_id, position);

CREATE TABLE IF NOT EXISTS practice_records (
  id TEXT PRIMARY KEY,
  learner_id TEXT NOT NULL,
  bank_id TEXT NOT NULL,
  bank_name TEXT NOT NULL DEFAULT '',
  mode TEXT NOT NULL,
  is_custom INTEGER NOT NULL DEFAULT 0,
  current_index INTEGER NOT NULL DEFAULT 0,
  user_answers TEXT NOT NULL DEFAULT '{}',
  question_ids TEXT NOT NULL DEFAULT '[]',
  confirmed_ids TEXT NOT NULL DEFAULT '[]',
  count INTEGER NOT NULL DEFAULT 0,
  last_updated BIGINT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS practice_records_key
  ON practice_records (learner_id, bank_id, mode) WHERE is_custom = 0;

CREATE TABLE IF NOT EXISTS exam_attempts (
  id TEXT PRIMARY KEY,
  learner_id TEXT NOT NULL,
  exam_id TEXT NOT NULL DEFAULT '',
  exam_title TEXT NOT NULL DEFAULT '',
  bank_id TEXT NOT NULL DEFAULT '',
  score DOUBLE PRECISION NOT NULL DEFAULT 0,
  total_score DOUBLE PRECISION NOT NULL DEFAULT 0,
  pass_score DOUBLE PRECISION NOT NULL DEFAULT 0,
  passed INTEGER NOT NULL DEFAULT 0,
  time_used INTEGER NOT NULL DEFAULT 0,
  wrong_ids TEXT NOT NULL DEFAULT '[]',
  user_answers TEXT NOT NULL DEFAULT '{}',
  ordered_ids TEXT NOT NULL DEFAULT '[]',
  current_index INTEGER NOT NULL DEFAULT 0,
  is_finished INTEGER NOT NULL DEFAULT 0,
  submit_time BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS exam_attempts_learner ON exam_attempts (learner_id, submit_time);

CREATE TABLE IF NOT EXISTS srs_records (
  id TEXT PRIMARY KEY,
  learner_id TEXT NOT NULL,
  question_id TEXT NOT NULL,
  interval_days INTEGER NOT NULL DEFAULT 0,
  ease_factor DOUBLE PRECISION NOT NULL DEFAULT 2.5,
  repetitions INTEGER NOT NULL DEFAULT 0,
  next_review TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'ACTIVE',
  updated_at BIGINT NOT NULL,
  UNIQUE (learner_id, question_id)
);

CREATE TABLE IF NOT EXISTS mistakes (
  learner_id TEXT NOT NULL,
  question_id TEXT NOT NULL,
  created_at BIGINT NOT NULL,
  PRIMARY KEY (learner_id, question_id)
);

CREATE TABLE IF NOT EXISTS daily_progress (
  learner_id TEXT NOT NULL,
  day TEXT NOT NULL,
  count INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (learner_id, day)
);

CREATE TABLE IF NOT EXISTS event_log (
  seq BIGSERIAL PRIMARY KEY,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`
