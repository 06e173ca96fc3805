// Package config loads practiced settings from defaults, an optional YAML
// file, PRACTICE_* environment variables and command-line flags, in that
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const EnvPrefix = "PRACTICE_"

type Config struct {
	HTTP      HTTP      `koanf:"http"`
	DB        DB        `koanf:"db"`
	Auth      Auth      `koanf:"auth"`
	Persist   Persist   `koanf:"persist"`
	Session   Session   `koanf:"session"`
	SRS       SRS       `koanf:"srs"`
	Events    Events    `koanf:"events"`
	Evaluator Evaluator `koanf:"evaluator"`
	Log       Log       `koanf:"log"`
}

type HTTP struct {
	Addr        string   `koanf:"addr" validate:"required"`
	CORSOrigins []string `koanf:"cors_origins"`
}

type DB struct {
	Driver string `koanf:"driver" validate:"oneof=sqlite postgres"`
	DSN    string `koanf:"dsn"`
}

type Auth struct {
	HMACSecret string `koanf:"hmac_secret" validate:"required,min=8"`
}

type Persist struct {
	Debounce    time.Duration `koanf:"debounce" validate:"min=0"`
	MaxAttempts int           `koanf:"max_attempts" validate:"min=1,max=20"`
	BaseBackoff time.Duration `koanf:"base_backoff" validate:"min=0"`
}

type Session struct {
	AdvanceDelay time.Duration `koanf:"advance_delay" validate:"min=0"`
}

type SRS struct {
	// MasteredIntervalDays of 0 disables the mastery sweep.
	MasteredIntervalDays int           `koanf:"mastered_interval_days" validate:"min=0"`
	SweepEvery           time.Duration `koanf:"sweep_every" validate:"required_unless=MasteredIntervalDays 0"`
}

type Events struct {
	Driver    string `koanf:"driver" validate:"oneof=memory redis"`
	RedisAddr string `koanf:"redis_addr" validate:"required_if=Driver redis"`
	RedisDB   int    `koanf:"redis_db" validate:"min=0"`
	SiteID    string `koanf:"site_id"`
}

type Evaluator struct {
	BaseURL string `koanf:"base_url" validate:"omitempty,url"`
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`
}

type Log struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

func defaults() map[string]any {
	return map[string]any{
		"http.addr":                  ":8080",
		"http.cors_origins":          "http://localhost:3000",
		"db.driver":                  "sqlite",
		"db.dsn":                     "",
		"auth.hmac_secret":           "supersecret-dev-key",
		"persist.debounce":           "500ms",
		"persist.max_attempts":       4,
		"persist.base_backoff":       "100ms",
		"session.advance_delay":      "400ms",
		"srs.mastered_interval_days": 0,
		"srs.sweep_every":            "1h",
		"events.driver":              "memory",
		"events.redis_addr":          "",
		"events.redis_db":            0,
		"events.site_id":             "local",
		"evaluator.base_url":         "https://api.deepseek.com/v1",
		"evaluator.api_key":          "",
		"evaluator.model":            "deepseek-chat",
		"log.level":                  "info",
		"log.format":                 "text",
	}
}

// RegisterFlags adds the overridable settings to fs. Flag names are the
// config keys themselves.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a YAML config file")
	fs.String("http.addr", ":8080", "listen address")
	fs.String("db.driver", "sqlite", "database driver (sqlite|postgres)")
	fs.String("db.dsn", "", "database DSN")
	fs.String("events.driver", "memory", "cross-tab event bus (memory|redis)")
	fs.String("events.redis_addr", "", "redis address for the event bus")
	fs.String("log.level", "info", "log level (debug|info|warn|error)")
	fs.String("log.format", "text", "log format (text|json)")
}

// Load builds the configuration. path may be empty, and so may fs.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")
	for key, v := range defaults() {
		if err := k.Set(key, v); err != nil {
			return Config{}, fmt.Errorf("config default %s: %w", key, err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	// PRACTICE_DB__DRIVER -> db.driver
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("config env: %w", err)
	}

	if fs != nil {
		if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
			return Config{}, fmt.Errorf("config flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config decode: %w", err)
	}
	cfg.HTTP.CORSOrigins = splitCSV(cfg.HTTP.CORSOrigins)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate reports every invalid field in one error.
func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// splitCSV flattens entries that still hold comma separated values.
func splitCSV(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// Logger builds the process logger described by the log section.
func (c Log) Logger() *slog.Logger {
	var level slog.Level
	switch c.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
