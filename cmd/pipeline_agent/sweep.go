package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/talent-pipeline/internal/facture"
	"github.com/jonathan/talent-pipeline/internal/notify"
	"github.com/jonathan/talent-pipeline/internal/observability"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Flag issued invoices past their due date as overdue",
	RunE:  runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	database, err := openDB(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer database.Close()

	dispatcher, closeDispatcher, err := newDispatcher(cfg, log)
	if err != nil {
		return err
	}
	defer closeDispatcher()

	svc := facture.NewService(database, notify.NewSender(dispatcher, log, cfg.Notify.PublishTimeout), log, facture.Settings{
		TVARate:        cfg.Billing.TVARate,
		DefaultDueDays: cfg.Billing.DefaultDueDays,
	})
	n, err := svc.MarquerEnRetard(cmd.Context(), time.Now())
	if err != nil {
		return err
	}

	if pretty {
		observability.NewPrinter(cmd.OutOrStdout()).PrintSweep(n)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d invoice(s) flagged overdue\n", n)
	return nil
}
