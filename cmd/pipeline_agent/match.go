package main

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/talent-pipeline/internal/matching"
	"github.com/jonathan/talent-pipeline/internal/observability"
	"github.com/jonathan/talent-pipeline/internal/types"
)

var matchOffre string

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Score every active talent against a published offre",
	Long:  `Run matching synchronously for one offre and store its top-ranked matches.`,
	RunE:  runMatch,
}

func init() {
	matchCmd.Flags().StringVar(&matchOffre, "offre", "", "Public id of the offre")
	_ = matchCmd.MarkFlagRequired("offre")
	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, _ []string) error {
	offreUID, err := uuid.Parse(matchOffre)
	if err != nil {
		return fmt.Errorf("invalid offre id %q: %w", matchOffre, err)
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

	runner := matching.NewRunner(database, log, matching.Settings{
		TopN:           cfg.Matching.TopN,
		Workers:        cfg.Matching.Workers,
		ExperienceGate: cfg.Matching.ExperienceGate,
	})
	summary, err := runner.Run(cmd.Context(), offreUID)
	if err != nil {
		return err
	}

	if !pretty {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	matches, err := runner.Matches(cmd.Context(), types.Principal{Role: types.RoleAdmin}, offreUID)
	if err != nil {
		return err
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintMatchSummary(summary, matches)
	return nil
}
