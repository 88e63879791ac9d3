package main

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/iliyamo/runly/internal/queue"
)

var consumeCmd = &cobra.Command{
	Use:   "audit-consumer",
	Short: "Append audit events from the broker to the audit log",
	Long:  `Consume the durable runly.audit queue and append one line per event to AUDIT_LOG_PATH. Reconnects with backoff until interrupted.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.AMQPURL == "" {
			return errors.New("RABBITMQ_URL is not set")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log.Info("audit consumer started", "queue", queue.AuditQueueName, "file", cfg.AuditLogPath)
		return queue.NewConsumer(cfg.AMQPURL, queue.NewAuditLog(cfg.AuditLogPath)).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(consumeCmd)
}
