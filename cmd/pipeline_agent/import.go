package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/talent-pipeline/internal/catalog"
	"github.com/jonathan/talent-pipeline/internal/observability"
)

var importFile string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load users, clients, talents and offres from a JSON document",
	Long:  `Validate a catalog document against the import schema and write it in a single transaction.`,
	RunE:  runImport,
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "Path to the JSON document")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, _ []string) error {
	raw, err := os.ReadFile(importFile)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", importFile, err)
	}

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

	report, err := catalog.NewImporter(database, log).Import(cmd.Context(), raw)
	if err != nil {
		return err
	}

	if pretty {
		observability.NewPrinter(cmd.OutOrStdout()).PrintImportReport(report)
		return nil
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
