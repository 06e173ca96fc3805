package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mind-engage/mindengage-practice/internal/jobs"
	"github.com/mind-engage/mindengage-practice/internal/progress"
	"github.com/mind-engage/mindengage-practice/internal/srs"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep-mastery",
	Short: "Mark long-interval review records as mastered once",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		days, _ := cmd.Flags().GetInt("days")
		if days == 0 {
			days = cfg.SRS.MasteredIntervalDays
		}
		if days <= 0 {
			return errors.New("mastery sweep is disabled: set --days or srs.mastered_interval_days")
		}
		dbh, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer dbh.Close()

		sweep := jobs.MasterySweep{Store: progress.NewSQLStore(dbh), Policy: srs.MasteryPolicy{IntervalDays: days}}
		n, err := sweep.Run(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "promoted %d record(s)\n", n)
		return nil
	},
}

func init() {
	sweepCmd.Flags().Int("days", 0, "minimum interval in days (defaults to srs.mastered_interval_days)")
}
