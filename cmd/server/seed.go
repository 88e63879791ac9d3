package main

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/iliyamo/runly/internal/database"
	"github.com/iliyamo/runly/internal/repository"
	"github.com/iliyamo/runly/internal/service"
)

var seedCmd = &cobra.Command{
	Use:   "seed-admin",
	Short: "Create or promote the admin account",
	Long:  `Create the admin from SEED_ADMIN_EMAIL, SEED_ADMIN_USERNAME and SEED_ADMIN_PASSWORD, or promote an existing user with that email.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := database.MigrateUp(cfg); err != nil {
			return err
		}
		db, err := database.Open(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		created, err := service.SeedAdmin(ctx, repository.NewUserRepo(db), cfg.SeedAdmin, cfg.BcryptCost)
		if err != nil {
			return err
		}
		if created {
			log.Info("admin created", "email", cfg.SeedAdmin.Email, "username", cfg.SeedAdmin.Username)
		} else {
			log.Info("admin ensured", "email", cfg.SeedAdmin.Email)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
