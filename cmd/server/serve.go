package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/iliyamo/runly/internal/config"
	"github.com/iliyamo/runly/internal/database"
	"github.com/iliyamo/runly/internal/handler"
	"github.com/iliyamo/runly/internal/metrics"
	"github.com/iliyamo/runly/internal/queue"
	"github.com/iliyamo/runly/internal/ratelimit"
	"github.com/iliyamo/runly/internal/repository"
	"github.com/iliyamo/runly/internal/router"
	"github.com/iliyamo/runly/internal/service"
)

const (
	sessionSweepInterval = time.Hour
	shutdownTimeout      = 10 * time.Second
	auditBuffer          = 256
)

var serveFlags struct {
	SkipMigrate bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  `Open the database, apply pending migrations and serve the /api routes until interrupted.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveFlags.SkipMigrate, "skip-migrate", false, "Do not apply migrations at startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if !serveFlags.SkipMigrate {
		if err := database.MigrateUp(cfg); err != nil {
			return err
		}
	}
	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var rdb *redis.Client
	if cfg.LoginRateLimit.Backend == "redis" {
		if rdb = config.NewRedisClient(cfg.Redis); rdb == nil {
			log.Warn("redis unavailable; login rate limit falls back to memory", "addr", cfg.Redis.Addr)
		} else {
			defer func() { _ = rdb.Close() }()
		}
	}

	users := repository.NewUserRepo(db)
	sessions := service.NewSessionManager(repository.NewSessionRepo(db), users, cfg.SessionTTL)
	audit := queue.NewDispatcher(queue.NewPublisher(cfg.AMQPURL), auditBuffer)
	deps := &handler.Deps{
		Cfg:      cfg,
		Users:    users,
		Runs:     repository.NewRunRepo(db),
		Members:  repository.NewMembershipRepo(db),
		Messages: repository.NewMessageRepo(db),
		Ratings:  repository.NewRatingRepo(db),
		Cascade:  repository.NewCascadeRepo(db),
		Sessions: sessions,
		Captcha:  service.NewCaptchaVerifier(cfg.RecaptchaSecret, cfg.RecaptchaVerifyURL),
		Audit:    audit,
		Metrics:  metrics.New(),
	}

	sweeper, err := service.NewSessionSweeper(sessions, sessionSweepInterval)
	if err != nil {
		return err
	}
	sweeper.Start()
	defer func() {
		if err := sweeper.Stop(); err != nil {
			log.Warn("session sweeper did not stop cleanly", "err", err)
		}
	}()

	e := router.New(deps, db, ratelimit.New(cfg.LoginRateLimit, rdb))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", "addr", addr, "env", cfg.Env, "driver", cfg.DBDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = e.Shutdown(shutdownCtx)
	if cerr := audit.Close(shutdownCtx); cerr != nil {
		log.Warn("pending audit events not flushed", "err", cerr)
	}
	return err
}
