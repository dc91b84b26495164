package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/meetbridge/meetbridge/internal/backfill"
	"github.com/meetbridge/meetbridge/internal/config"
	"github.com/meetbridge/meetbridge/internal/server"
)

func newBackfillCmd() *cobra.Command {
	var (
		fromDate          string
		toDate            string
		dryRun            bool
		storeType         string
		natsURL           string
		requestsPerSecond float64
	)

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Import historical meetings into the participation ledger",
		Long: `Walk every active user's hosted meetings through the platform's
reporting API and write participation records into the ledger.

Record keys are derived from (occurrence, participant), so re-running
the same range is safe: the import resumes instead of duplicating.
Rate-limit responses from the platform pause the import and retry the
same call, so an interrupted run never silently skips meetings.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cmd.Flags().Changed("store") {
				cfg.Store = storeType
			}
			if cmd.Flags().Changed("nats-url") {
				cfg.NATSURL = natsURL
			}
			if cmd.Flags().Changed("rate-limit") {
				cfg.RequestsPerSecond = requestsPerSecond
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			opts := backfill.Options{DryRun: dryRun}
			var err error
			if fromDate != "" {
				opts.From, err = parseDate(fromDate)
				if err != nil {
					return fmt.Errorf("invalid --from date: %w", err)
				}
			}
			if toDate != "" {
				opts.To, err = parseDate(toDate)
				if err != nil {
					return fmt.Errorf("invalid --to date: %w", err)
				}
			}
			if opts.From.IsZero() {
				opts.From = time.Now().UTC().AddDate(0, -6, 0)
			}

			return runBackfill(cfg, opts)
		},
	}

	cmd.Flags().StringVar(&fromDate, "from", "", "Start of the import range, YYYY-MM-DD (default: 6 months ago)")
	cmd.Flags().StringVar(&toDate, "to", "", "End of the import range, YYYY-MM-DD (default: today)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Walk the range and report what would be written without touching the ledger")
	cmd.Flags().StringVar(&storeType, "store", config.StoreNATS, "Ledger store backend: nats or memory. Can also use MEETBRIDGE_STORE env var.")
	cmd.Flags().StringVar(&natsURL, "nats-url", config.DefaultNATSURL, "NATS server URL for the durable ledger. Can also use NATS_URL env var.")
	cmd.Flags().Float64Var(&requestsPerSecond, "rate-limit", config.DefaultRequestsPerSecond, "Platform API requests per second. Can also use ZOOM_REQUESTS_PER_SECOND env var.")

	return cmd
}

func runBackfill(cfg config.Config, opts backfill.Options) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(false)

	serverContext, err := server.NewServerContext(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		_ = serverContext.Shutdown()
	}()

	importer := backfill.NewImporter(serverContext.ZoomClient(), serverContext.Store(), logger)

	summary, err := importer.Run(ctx, opts)
	if err != nil {
		return fmt.Errorf("backfill failed: %w", err)
	}

	mode := "imported"
	if summary.DryRun {
		mode = "would import"
	}
	fmt.Printf("Backfill complete: %s %d record(s) across %d occurrence(s) from %d user(s)\n",
		mode, summary.Records, summary.Occurrences, summary.Users)
	return nil
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
