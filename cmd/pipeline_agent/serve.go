package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/talent-pipeline/internal/candidature"
	"github.com/jonathan/talent-pipeline/internal/config"
	"github.com/jonathan/talent-pipeline/internal/contrat"
	"github.com/jonathan/talent-pipeline/internal/entretien"
	"github.com/jonathan/talent-pipeline/internal/facture"
	"github.com/jonathan/talent-pipeline/internal/matching"
	"github.com/jonathan/talent-pipeline/internal/notify"
	"github.com/jonathan/talent-pipeline/internal/server"
	"github.com/jonathan/talent-pipeline/internal/server/ratelimit"
	"github.com/jonathan/talent-pipeline/internal/shortlist"
)

var (
	servePort     int
	sweepInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes the talent pipeline REST endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides server.port)")
	serveCmd.Flags().DurationVar(&sweepInterval, "sweep-interval", time.Hour, "How often overdue invoices are flagged (0 disables)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	jwtConfig, err := config.NewJWTConfig(cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to create JWT config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := openDB(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer database.Close()

	dispatcher, closeDispatcher, err := newDispatcher(cfg, log)
	if err != nil {
		return err
	}
	defer closeDispatcher()
	sender := notify.NewSender(dispatcher, log, cfg.Notify.PublishTimeout)

	factures := facture.NewService(database, sender, log.Named("facture"), facture.Settings{
		TVARate:        cfg.Billing.TVARate,
		DefaultDueDays: cfg.Billing.DefaultDueDays,
	})

	limiter := ratelimit.NewLimiter(ratelimit.FromSettings(cfg.RateLimit))
	defer limiter.Stop()

	srv := server.New(cfg.Server, server.Deps{
		Candidatures: candidature.NewService(database, sender, log.Named("candidature"),
			candidature.WithExperienceGate(cfg.Matching.ExperienceGate)),
		Shortlists: shortlist.NewService(database, sender, log.Named("shortlist")),
		Entretiens: entretien.NewService(database, sender, log.Named("entretien")),
		Contrats:   contrat.NewService(database, sender, log.Named("contrat")),
		Factures:   factures,
		Matching: matching.NewRunner(database, log.Named("matching"), matching.Settings{
			TopN:           cfg.Matching.TopN,
			Workers:        cfg.Matching.Workers,
			ExperienceGate: cfg.Matching.ExperienceGate,
		}),
		Tokens:      server.NewJWTService(jwtConfig).AsTokenValidator(),
		RateLimiter: limiter,
		Health:      database,
		Logger:      log,
	})

	if sweepInterval > 0 {
		go runSweeps(ctx, factures, sweepInterval, log)
	}

	return srv.Start(ctx)
}

// runSweeps flags overdue invoices every interval until ctx is done.
func runSweeps(ctx context.Context, factures *facture.Service, interval time.Duration, log *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := factures.MarquerEnRetard(ctx, now)
			if err != nil {
				log.Error("overdue sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("overdue invoices flagged", zap.Int("count", n))
			}
		}
	}
}
