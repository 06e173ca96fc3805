package db_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-practice/internal/db"
)

func TestOpenSQLiteCreatesSchema(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, db.DriverSQLite, "file::memory:")
	require.NoError(t, err)
	defer conn.Close()

	for _, table := range []string{"banks", "questions", "practice_records", "exam_attempts",
		"srs_records", "mistakes", "daily_progress", "event_log"} {
		var name string
		err := conn.QueryRowContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name=$1`, table).Scan(&name)
		require.NoError(t, err, table)
		assert.Equal(t, table, name)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := db.Open(context.Background(), db.Driver("oracle"), "")
	assert.Error(t, err)
}
