// Package matching scores every active talent against an offre and caches the
// best matches.
package matching

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/talent-pipeline/internal/access"
	"github.com/jonathan/talent-pipeline/internal/apperr"
	"github.com/jonathan/talent-pipeline/internal/scoring"
	"github.com/jonathan/talent-pipeline/internal/store"
	"github.com/jonathan/talent-pipeline/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Settings configure bulk scoring.
type Settings struct {
	TopN           int
	Workers        int
	ExperienceGate bool
}

// Summary describes one matching run.
type Summary struct {
	OffreUID uuid.UUID     `json:"offreUid"`
	Scored   int           `json:"scored"`
	Kept     int           `json:"kept"`
	TopScore int           `json:"topScore"`
	Duration time.Duration `json:"duration"`
}

// Runner computes and stores matches. Runs are idempotent: scoring the same
// offre again replaces the cached rows.
type Runner struct {
	store    store.Store
	log      *zap.Logger
	settings Settings
	now      func() time.Time
	wg       sync.WaitGroup
}

// NewRunner creates a Runner. Workers defaults to 4 and a non-positive TopN keeps every talent.
func NewRunner(st store.Store, log *zap.Logger, settings Settings) *Runner {
	if settings.Workers <= 0 {
		settings.Workers = 4
	}
	return &Runner{store: st, log: log, settings: settings, now: time.Now}
}

// Run scores every ACTIVE talent against a published offre and upserts the top matches.
func (r *Runner) Run(ctx context.Context, offreUID uuid.UUID) (*Summary, error) {
	start := r.now()

	var offre *types.Offre
	var talents []types.Talent
	err := r.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		offre, err = tx.GetOffre(ctx, offreUID)
		if err != nil {
			return fmt.Errorf("failed to load offre: %w", err)
		}
		if offre == nil {
			return apperr.NotFound("offre", offreUID)
		}
		if offre.Status != types.OffrePublished {
			return apperr.Conflict("offre %s is %s, only published offres are matched", offreUID, offre.Status)
		}
		talents, err = tx.ListTalentsByStatus(ctx, types.TalentActive)
		if err != nil {
			return fmt.Errorf("failed to list talents: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	candidates, err := r.score(ctx, offre, talents)
	if err != nil {
		return nil, err
	}
	ranked := scoring.Rank(candidates, r.settings.TopN)

	computedAt := r.now()
	err = r.store.InTx(ctx, func(tx store.Tx) error {
		for _, c := range ranked {
			m := &types.Match{
				OffreID:         offre.ID,
				TalentID:        c.TalentID,
				Score:           c.Result.Score,
				MatchedRequired: c.Result.MatchedRequired,
				MatchedDesired:  c.Result.MatchedDesired,
				MissingRequired: c.Result.MissingRequired,
				ComputedAt:      computedAt,
			}
			if err := tx.UpsertMatch(ctx, m); err != nil {
				return fmt.Errorf("failed to store match for talent %d: %w", c.TalentID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		OffreUID: offreUID,
		Scored:   len(candidates),
		Kept:     len(ranked),
		Duration: r.now().Sub(start),
	}
	if len(ranked) > 0 {
		summary.TopScore = ranked[0].Result.Score
	}

	r.log.Info("matching run complete",
		zap.String("offre", offreUID.String()),
		zap.Int("scored", summary.Scored),
		zap.Int("kept", summary.Kept),
		zap.Int("top_score", summary.TopScore),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

// score computes every talent's result with a bounded pool of workers.
func (r *Runner) score(ctx context.Context, offre *types.Offre, talents []types.Talent) ([]scoring.Candidate, error) {
	out := make([]scoring.Candidate, len(talents))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.settings.Workers)

	for i := range talents {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			t := &talents[i]
			out[i] = scoring.Candidate{
				TalentID: t.ID,
				Result:   scoring.ForPair(t, offre, r.settings.ExperienceGate),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scoring interrupted: %w", err)
	}
	return out, nil
}

// RunAsync starts a run in the background, detached from the caller's
// cancellation. Failures are logged.
func (r *Runner) RunAsync(ctx context.Context, offreUID uuid.UUID) {
	ctx = context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if _, err := r.Run(ctx, offreUID); err != nil {
			r.log.Error("matching run failed", zap.String("offre", offreUID.String()), zap.Error(err))
		}
	}()
}

// Wait blocks until every background run has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Matches returns the cached matches of an offre, best first.
func (r *Runner) Matches(ctx context.Context, p types.Principal, offreUID uuid.UUID) ([]types.Match, error) {
	if err := access.RequireAdmin(p); err != nil {
		return nil, err
	}

	var out []types.Match
	err := r.store.InTx(ctx, func(tx store.Tx) error {
		offre, err := tx.GetOffre(ctx, offreUID)
		if err != nil {
			return fmt.Errorf("failed to load offre: %w", err)
		}
		if offre == nil {
			return apperr.NotFound("offre", offreUID)
		}
		out, err = tx.ListMatches(ctx, offre.ID)
		if err != nil {
			return fmt.Errorf("failed to list matches: %w", err)
		}
		return nil
	})
	return out, err
}
