package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/iliyamo/runly/internal/config"
)

var rootFlags struct {
	ConfigFile string
	LogLevel   string
	LogFile    string
}

var rootCmd = &cobra.Command{
	Use:   "runly",
	Short: "Runly schedules group runs",
	Long:  `Runly is the REST backend for scheduling group runs: sessions, runs, chat, ratings and admin tools.`,
	Example: `runly --config runly.yml
  runly serve --log-level debug
  runly migrate up`,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	SilenceUsage:      true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logToFile()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootFlags.ConfigFile, "config", "c", "", "Path to a config file (env vars win over file values)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.LogLevel, "log-level", "", "Log level (debug, info, warn, error); overrides LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&rootFlags.LogFile, "log-file", "", "Also write logs to this file")
}

// loadConfig loads the config and applies the log level.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(rootFlags.ConfigFile)
	if err != nil {
		return cfg, err
	}
	level := cfg.LogLevel
	if rootFlags.LogLevel != "" {
		level = rootFlags.LogLevel
	}
	setLogLevel(level)
	return cfg, nil
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info", "":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Warnf("unknown log level %s, defaulting to info", level)
		log.SetLevel(log.InfoLevel)
	}
}

func logToFile() {
	if rootFlags.LogFile == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(rootFlags.LogFile), 0o755); err != nil {
		log.Errorf("failed to create log directory: %v", err)
		return
	}
	file, err := os.OpenFile(rootFlags.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		log.Errorf("failed to open log file: %v", err)
		return
	}
	log.SetOutput(io.MultiWriter(os.Stdout, file))
	log.Info("logging to both console and file", "file", rootFlags.LogFile)
}
