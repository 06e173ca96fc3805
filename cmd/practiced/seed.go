package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mind-engage/mindengage-practice/internal/catalog"
)

var seedCmd = &cobra.Command{
	Use:   "seed <bank.yaml>...",
	Short: "Load question banks from YAML files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dbh, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer dbh.Close()

		cat := catalog.NewSQLCatalog(dbh)
		for _, path := range args {
			sf, err := catalog.LoadSeedFile(path)
			if err != nil {
				return err
			}
			if err := cat.PutBank(cmd.Context(), sf.Bank, sf.Questions); err != nil {
				return fmt.Errorf("seed %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "bank %s: %d question(s)\n", sf.Bank.ID, len(sf.Questions))
		}
		return nil
	},
}
