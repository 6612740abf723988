package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/deusflow/aipost/internal/app"
	"github.com/deusflow/aipost/internal/collector"
	"github.com/deusflow/aipost/internal/metrics"
	"github.com/deusflow/aipost/internal/news"
	"github.com/deusflow/aipost/internal/scraper"
	"github.com/deusflow/aipost/internal/storage"
	"github.com/deusflow/aipost/internal/summarize"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Select one candidate and queue it",
	Long:  "Collects candidates for the active mode, scores them, drops anything seen in the last week, summarizes the best one and writes it to the queue as Scheduled. With --dry-run the entry is printed as JSON instead.",
	RunE:  runFetch,
}

var (
	fetchDryRun bool
	fetchMode   string
)

func init() {
	fetchCmd.Flags().BoolVar(&fetchDryRun, "dry-run", false, "Print the queue entry instead of writing it")
	fetchCmd.Flags().StringVarP(&fetchMode, "mode", "m", "", "Source mode: news or papers (overrides AIPOST_MODE)")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, log, err := setup(fetchMode)
	if err != nil {
		return err
	}

	queueErr := cfg.RequireQueue()
	if queueErr != nil && !fetchDryRun {
		return queueErr
	}

	profile := cfg.Profile()
	client := &http.Client{Timeout: cfg.HTTP.Timeout}
	sources, err := collector.SourcesFromProfile(profile, client, cfg.HTTP.UserAgent)
	if err != nil {
		return err
	}

	summarizer, closeSummarizer, err := summarize.New(ctx, cfg.Summary, log, metrics.Global)
	if err != nil {
		return err
	}
	defer closeSummarizer()

	var store storage.Store
	if queueErr == nil {
		store, err = storage.Open(ctx, cfg.Queue, client, log)
		if err != nil {
			return fmt.Errorf("open queue: %w", err)
		}
		defer store.Close()
	} else {
		log.Warn("queue not configured, dry run without history", "reason", queueErr)
	}

	sel := &app.Selector{
		Collector:      collector.New(sources, cfg.HTTP.Concurrency, log, metrics.Global),
		Scorer:         news.NewScorer(profile),
		Summarizer:     summarizer,
		Store:          store,
		Dedup:          cfg.Dedup,
		ScheduleOffset: cfg.Queue.ScheduleOffset,
		Out:            os.Stdout,
		Log:            log,
		Metrics:        metrics.Global,
	}
	if profile.Enrich {
		sel.Enricher = scraper.NewEnricher(client, cfg.HTTP.UserAgent, log)
	}

	log.Info("selection started", "mode", cfg.Mode, "sources", len(sources), "dry_run", fetchDryRun)
	res, err := sel.Run(ctx, fetchDryRun)
	if err != nil {
		return err
	}
	log.Info("selection finished", append([]any{"outcome", res.Outcome, "failed_sources", len(res.Failures)}, metrics.Global.LogArgs()...)...)
	return nil
}
