// Command aipost selects one AI news item or paper per run, queues it with
// ready-to-post texts, and publishes due queue entries to social platforms.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/deusflow/aipost/internal/config"
	"github.com/deusflow/aipost/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "aipost",
	Short:         "AI news and papers selector and social poster",
	Long:          "aipost collects AI news feeds or arXiv papers, schedules the single best unseen item with generated post texts, and publishes scheduled items to X, LinkedIn and Telegram.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config (default configs/aipost.yaml when present)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// setup loads configuration, applies the mode override and starts logging
// and, when enabled, the monitoring server.
func setup(mode string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if mode != "" {
		cfg.Mode = config.Mode(mode)
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	log := logger.Init(cfg.LogLevel)
	if cfg.Monitoring {
		go startMonitoringServer(cfg.MonitoringPort, log)
	}
	return cfg, log, nil
}
