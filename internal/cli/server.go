package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moral-quiz-service/internal/config"
	transport "moral-quiz-service/internal/transport/http"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	s, err := buildStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	router := transport.NewRouter(transport.Deps{
		Quiz:        s.quiz,
		Purchases:   s.purchases,
		Coupons:     s.coupons,
		Reconciler:  s.reconciler,
		Webhooks:    s.webhooks,
		Auth:        s.auth,
		CORSOrigins: cfg.Server.CORSOrigins,
	})

	// verification polls the provider for several seconds, so writes get more room than reads
	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	if interval := config.TTLDuration(cfg.Reconcile.Interval, 0); interval > 0 {
		go runSweeper(sweepCtx, s, interval)
	}

	go func() {
		log.Printf("starting moral quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}
	stopSweeper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runSweeper(ctx context.Context, s *stack, interval time.Duration) {
	minAge := config.TTLDuration(s.cfg.Reconcile.MinAge, 10*time.Minute)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Printf("reconcile sweeper started interval=%s min_age=%s", interval, minAge)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := s.reconciler.Sweep(ctx, minAge, s.cfg.Reconcile.BatchSize)
			if err != nil {
				log.Printf("reconcile sweep failed: %v", err)
				continue
			}
			if report.Checked > 0 {
				log.Printf("reconcile sweep checked=%d completed=%d failed=%d pending=%d errors=%d",
					report.Checked, report.Completed, report.Failed, report.Pending, report.Errors)
			}
		}
	}
}
