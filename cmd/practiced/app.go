package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mind-engage/mindengage-practice/internal/catalog"
	"github.com/mind-engage/mindengage-practice/internal/config"
	"github.com/mind-engage/mindengage-practice/internal/db"
	"github.com/mind-engage/mindengage-practice/internal/evaluator"
	"github.com/mind-engage/mindengage-practice/internal/events"
	"github.com/mind-engage/mindengage-practice/internal/grading"
	"github.com/mind-engage/mindengage-practice/internal/practice"
	"github.com/mind-engage/mindengage-practice/internal/progress"
)

// app holds everything a command may need, built from one Config.
type app struct {
	cfg     config.Config
	db      *sql.DB
	catalog *catalog.SQLCatalog
	store   *progress.SQLStore
	bus     events.Bus
	service *practice.Service
}

func openDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	dbh, err := db.Open(ctx, db.Driver(cfg.DB.Driver), cfg.DB.DSN)
	if err != nil {
		return nil, fmt.Errorf("db open (%s): %w", cfg.DB.Driver, err)
	}
	return dbh, nil
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	dbh, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, db: dbh, catalog: catalog.NewSQLCatalog(dbh), store: progress.NewSQLStore(dbh)}

	var opts []grading.Option
	ev, err := evaluator.New(evaluator.Config{BaseURL: cfg.Evaluator.BaseURL, APIKey: cfg.Evaluator.APIKey, Model: cfg.Evaluator.Model})
	switch {
	case err == nil:
		opts = append(opts, grading.WithEvaluator(ev))
	case errors.Is(err, evaluator.ErrNoAPIKey):
		slog.Warn("no evaluator api key; short answers need manual review")
	default:
		dbh.Close()
		return nil, err
	}

	switch cfg.Events.Driver {
	case "redis":
		rb, err := events.NewRedisBus(ctx, events.RedisConfig{Addr: cfg.Events.RedisAddr, DB: cfg.Events.RedisDB})
		if err != nil {
			dbh.Close()
			return nil, err
		}
		a.bus = rb
	default:
		a.bus = events.NewMemoryBus()
	}

	pc := practice.DefaultConfig()
	pc.AdvanceDelay = cfg.Session.AdvanceDelay
	pc.Writer.Debounce = cfg.Persist.Debounce
	pc.Writer.Retry.MaxAttempts = cfg.Persist.MaxAttempts
	pc.Writer.Retry.InitialWait = cfg.Persist.BaseBackoff

	a.service = practice.NewService(a.catalog, a.store, grading.NewDefaultGrader(opts...), pc,
		practice.WithBus(a.bus),
		practice.WithEventLog(events.NewLog(dbh, cfg.Events.SiteID)),
		practice.WithLogger(slog.Default()),
	)
	return a, nil
}

func (a *app) Close(ctx context.Context) error {
	err := a.service.Close(ctx)
	if a.bus != nil {
		err = errors.Join(err, a.bus.Close())
	}
	return errors.Join(err, a.db.Close())
}
