package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/deusflow/aipost/internal/app"
	"github.com/deusflow/aipost/internal/metrics"
	"github.com/deusflow/aipost/internal/ratelimit"
	"github.com/deusflow/aipost/internal/social"
	"github.com/deusflow/aipost/internal/storage"
)

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Publish due queue entries to one platform",
	Long:  "Reads Scheduled entries whose time has come, posts them to the given platform and records the resulting URL or failure in the queue.",
	RunE:  runPost,
}

var (
	postPlatform string
	postDryRun   bool
)

func init() {
	postCmd.Flags().StringVarP(&postPlatform, "platform", "p", "", "Target platform: x, linkedin or telegram (required)")
	postCmd.Flags().BoolVar(&postDryRun, "dry-run", false, "Log what would be posted without posting or updating the queue")
	if err := postCmd.MarkFlagRequired("platform"); err != nil {
		panic(fmt.Sprintf("failed to mark platform flag as required: %v", err))
	}
	rootCmd.AddCommand(postCmd)
}

func runPost(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, log, err := setup("")
	if err != nil {
		return err
	}
	if err := cfg.RequireQueue(); err != nil {
		return err
	}
	poster, err := social.New(cfg, postPlatform, log)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: cfg.HTTP.Timeout}
	store, err := storage.Open(ctx, cfg.Queue, client, log)
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}
	defer store.Close()

	pub := &app.Publisher{
		Store:    store,
		Poster:   poster,
		Required: cfg.Social.Required,
		Pacer:    ratelimit.NewPacer(cfg.Social.Pace),
		Log:      log,
		Metrics:  metrics.Global,
	}
	rep, err := pub.Run(ctx, postDryRun)
	if err != nil {
		return err
	}
	log.Info("posting finished", "platform", postPlatform, "due", rep.Due, "posted", rep.Posted, "failed", rep.Failed, "skipped", rep.Skipped)
	if rep.Failed > 0 && rep.Posted == 0 {
		return fmt.Errorf("%d of %d entries failed on %s", rep.Failed, rep.Due, postPlatform)
	}
	return nil
}
