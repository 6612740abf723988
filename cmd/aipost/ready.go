package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/deusflow/aipost/internal/app"
	"github.com/deusflow/aipost/internal/storage"
)

var errNothingDue = errors.New("no entries due")

var readyCmd = &cobra.Command{
	Use:   "ready",
	Short: "Exit 0 when at least one queue entry is due",
	Long:  "Readiness probe for schedulers: succeeds when a Scheduled entry is due, optionally only counting entries not yet posted to --platform.",
	RunE:  runReady,
}

var readyPlatform string

func init() {
	readyCmd.Flags().StringVarP(&readyPlatform, "platform", "p", "", "Only count entries not yet posted to this platform")
	rootCmd.AddCommand(readyCmd)
}

func runReady(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, log, err := setup("")
	if err != nil {
		return err
	}
	if err := cfg.RequireQueue(); err != nil {
		return err
	}

	store, err := storage.Open(ctx, cfg.Queue, &http.Client{Timeout: cfg.HTTP.Timeout}, log)
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}
	defer store.Close()

	ok, err := app.Ready(ctx, store, readyPlatform, time.Now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		return errNothingDue
	}
	fmt.Fprintln(cmd.OutOrStdout(), "ready")
	return nil
}
