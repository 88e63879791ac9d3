package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/iliyamo/runly/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|version]",
	Short:     "Run database migrations",
	Long:      `Apply (up), roll back (down) or report (version) the embedded schema migrations of the configured driver.`,
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "version"},
	RunE: func(_ *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		m, err := database.NewMigrator(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = m.Close() }()

		switch args[0] {
		case "up":
			if err := m.Up(); err != nil {
				return err
			}
			log.Info("migrations applied", "driver", cfg.DBDriver)
		case "down":
			if err := m.Down(); err != nil {
				return err
			}
			log.Info("migrations rolled back", "driver", cfg.DBDriver)
		case "version":
			v, dirty, err := m.Version()
			if err != nil {
				return err
			}
			fmt.Printf("version=%d dirty=%t\n", v, dirty)
		default:
			return errors.New("unknown migrate action")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
