package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"moral-quiz-service/internal/config"
	"github.com/spf13/cobra"
)

// NewReconcileCmd runs one sweep over pending purchases.
func NewReconcileCmd(configPath *string) *cobra.Command {
	var minAge string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Check pending purchases against Stripe once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd.Context(), *configPath, minAge)
		},
	}
	cmd.Flags().StringVar(&minAge, "min-age", "", "only check purchases older than this (defaults to reconcile.min_age)")
	return cmd
}

func runReconcile(ctx context.Context, configPath, minAgeFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	// in-memory purchases live only inside the running server
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("reconcile needs postgres: set DATABASE_URL or postgres.url")
	}
	s, err := buildStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	raw := cfg.Reconcile.MinAge
	if minAgeFlag != "" {
		raw = minAgeFlag
	}
	minAge := config.TTLDuration(raw, 10*time.Minute)
	report, err := s.reconciler.Sweep(ctx, minAge, cfg.Reconcile.BatchSize)
	if err != nil {
		return err
	}
	log.Printf("reconcile complete checked=%d completed=%d failed=%d pending=%d errors=%d",
		report.Checked, report.Completed, report.Failed, report.Pending, report.Errors)
	return nil
}
