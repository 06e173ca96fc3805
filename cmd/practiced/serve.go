package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	api "github.com/mind-engage/mindengage-practice/internal/api/http"
	auth "github.com/mind-engage/mindengage-practice/internal/auth/middleware"
	"github.com/mind-engage/mindengage-practice/internal/jobs"
	"github.com/mind-engage/mindengage-practice/internal/rbac"
	"github.com/mind-engage/mindengage-practice/internal/srs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		a, err := newApp(openCtx, cfg)
		cancel()
		if err != nil {
			return err
		}

		sched := jobs.NewScheduler()
		sweep := jobs.MasterySweep{Store: a.store, Policy: srs.MasteryPolicy{IntervalDays: cfg.SRS.MasteredIntervalDays}}
		if err := sched.ScheduleSweep(cfg.SRS.SweepEvery, sweep); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()

		router := api.NewRouter(api.Deps{
			Practice:    a.service,
			Store:       a.store,
			Catalog:     a.catalog,
			Auth:        auth.NewAuthService(cfg.Auth.HMACSecret),
			RBAC:        rbac.NewChecker(nil),
			CORSOrigins: cfg.HTTP.CORSOrigins,
			AccessLog:   true,
		})
		srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("listening", "addr", cfg.HTTP.Addr, "db", cfg.DB.Driver, "events", cfg.Events.Driver)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				_ = a.Close(context.Background())
				return err
			}
		case <-ctx.Done():
		}

		slog.Info("shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		err = srv.Shutdown(shutCtx)
		// pending progress writes drain here
		return errors.Join(err, a.Close(shutCtx))
	},
}
