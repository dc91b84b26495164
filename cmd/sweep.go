package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/meetbridge/meetbridge/internal/config"
	"github.com/meetbridge/meetbridge/internal/server"
)

func newSweepCmd() *cobra.Command {
	var (
		retentionDays   int
		revalidateRules bool
		storeType       string
		natsURL         string
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete ledger records past the retention window",
		Long: `Run one retention sweep against the participation ledger.

Records whose meeting started before the retention cutoff are deleted.
The sweep is idempotent; a second run over the same ledger deletes
nothing. With --revalidate-rules, standing access rules whose grantee
is no longer an active account member are removed as well.

The same sweep is also reachable over HTTP as POST /api/retention/sweep
for scheduler-driven deployments.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cmd.Flags().Changed("retention-days") {
				cfg.RetentionDays = retentionDays
			}
			if cmd.Flags().Changed("store") {
				cfg.Store = storeType
			}
			if cmd.Flags().Changed("nats-url") {
				cfg.NATSURL = natsURL
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return runSweep(cfg, revalidateRules)
		},
	}

	cmd.Flags().IntVar(&retentionDays, "retention-days", config.DefaultRetentionDays, "Ledger retention window in days. Can also use MEETBRIDGE_RETENTION_DAYS env var.")
	cmd.Flags().BoolVar(&revalidateRules, "revalidate-rules", false, "Also remove standing access rules for users no longer in the account")
	cmd.Flags().StringVar(&storeType, "store", config.StoreNATS, "Ledger store backend: nats or memory. Can also use MEETBRIDGE_STORE env var.")
	cmd.Flags().StringVar(&natsURL, "nats-url", config.DefaultNATSURL, "NATS server URL for the durable ledger. Can also use NATS_URL env var.")

	return cmd
}

func runSweep(cfg config.Config, revalidateRules bool) error {
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

	deleted, cutoff, err := serverContext.Sweeper().Sweep(ctx)
	if err != nil {
		return fmt.Errorf("retention sweep failed: %w", err)
	}
	fmt.Printf("Retention sweep complete: deleted %d record(s) older than %s\n",
		deleted, cutoff.Format("2006-01-02"))

	if revalidateRules {
		removed, err := serverContext.Sweeper().RevalidateRules(ctx)
		if err != nil {
			return fmt.Errorf("rule revalidation failed: %w", err)
		}
		fmt.Printf("Rule revalidation complete: removed %d rule(s)\n", removed)
	}

	return nil
}
