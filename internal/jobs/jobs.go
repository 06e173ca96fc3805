// Package jobs runs periodic maintenance on a gocron scheduler.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/mind-engage/mindengage-practice/internal/srs"
)

// Promoter is the part of progress.Store the mastery sweep needs.
type Promoter interface {
	PromoteMastered(ctx context.Context, minIntervalDays int) (int64, error)
}

// MasterySweep marks long-interval review records as mastered.
type MasterySweep struct {
	Store   Promoter
	Policy  srs.MasteryPolicy
	Timeout time.Duration
}

// Run performs one sweep. A disabled policy touches nothing.
func (m MasterySweep) Run(ctx context.Context) (int64, error) {
	if !m.Policy.Enabled() {
		return 0, nil
	}
	n, err := m.Store.PromoteMastered(ctx, m.Policy.IntervalDays)
	if err != nil {
		return 0, fmt.Errorf("mastery sweep: %w", err)
	}
	return n, nil
}

type Scheduler struct {
	s *gocron.Scheduler
}

func NewScheduler() *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{s: s}
}

// ScheduleSweep runs the sweep every interval, starting immediately.
func (sc *Scheduler) ScheduleSweep(every time.Duration, m MasterySweep) error {
	if !m.Policy.Enabled() {
		slog.Info("mastery sweep disabled")
		return nil
	}
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	_, err := sc.s.Every(every).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		n, err := m.Run(ctx)
		if err != nil {
			slog.Error("mastery sweep failed", "error", err)
			return
		}
		slog.Info("mastery sweep", "promoted", n, "min_interval_days", m.Policy.IntervalDays)
	})
	return err
}

func (sc *Scheduler) Start() { sc.s.StartAsync() }

func (sc *Scheduler) Stop() { sc.s.Stop() }
