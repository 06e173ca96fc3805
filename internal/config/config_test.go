package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, 500*time.Millisecond, cfg.Persist.Debounce)
	assert.Equal(t, 4, cfg.Persist.MaxAttempts)
	assert.Equal(t, 400*time.Millisecond, cfg.Session.AdvanceDelay)
	assert.Equal(t, 0, cfg.SRS.MasteredIntervalDays)
	assert.Equal(t, "memory", cfg.Events.Driver)
	assert.Equal(t, "deepseek-chat", cfg.Evaluator.Model)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "practiced.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9000"
  cors_origins: "https://a.example, https://b.example"
db:
  driver: postgres
  dsn: postgres://file
persist:
  debounce: 250ms
srs:
  mastered_interval_days: 60
`), 0o600))

	t.Setenv("PRACTICE_DB__DSN", "postgres://env")
	t.Setenv("PRACTICE_PERSIST__MAX_ATTEMPTS", "7")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--http.addr=:7000"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.HTTP.Addr, "flag wins over file")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Equal(t, "postgres://env", cfg.DB.DSN, "env wins over file")
	assert.Equal(t, 7, cfg.Persist.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Persist.Debounce)
	assert.Equal(t, 60, cfg.SRS.MasteredIntervalDays)
	assert.Equal(t, "info", cfg.Log.Level, "unchanged flag keeps the default")
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("PRACTICE_DB__DRIVER", "oracle")
	_, err := Load("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Driver")
}

func TestRedisNeedsAddress(t *testing.T) {
	t.Setenv("PRACTICE_EVENTS__DRIVER", "redis")
	_, err := Load("", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RedisAddr")

	t.Setenv("PRACTICE_EVENTS__REDIS_ADDR", "localhost:6379")
	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Events.Driver)
}

func TestMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
}
