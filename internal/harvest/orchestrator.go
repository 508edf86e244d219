// Package harvest iterates the listing backlog under a cost ceiling,
// dispatching each listing to the attempt engine and aggregating outcomes.
package harvest

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/procure-cli/internal/config"
	"github.com/sells-group/procure-cli/internal/model"
	"github.com/sells-group/procure-cli/internal/store"
)

// Attempter runs the extraction state machine for one listing.
type Attempter interface {
	Attempt(ctx context.Context, listing model.Listing, runID string) *model.ExtractionAttempt
}

// Orchestrator owns one harvest run at a time.
type Orchestrator struct {
	store  store.Store
	engine Attempter
	cfg    config.HarvestConfig
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(st store.Store, engine Attempter, cfg config.HarvestConfig) *Orchestrator {
	return &Orchestrator{store: st, engine: engine, cfg: cfg}
}

// Run executes one harvest run. The cost accumulator is checked before each
// dispatch: once it meets the ceiling no new listing starts, but in-flight
// attempts finish. Run fails only on configuration or store errors; a run
// where every attempt failed still returns a summary.
func (o *Orchestrator) Run(ctx context.Context) (*model.HarvestSummary, error) {
	run, err := o.store.CreateHarvestRun(ctx)
	if err != nil {
		return nil, err
	}
	started := time.Now()

	listings, err := o.store.PendingListings(ctx, o.cfg.MaxListings)
	if err != nil {
		return nil, err
	}

	zap.L().Info("harvest run started",
		zap.String("run", run.ID),
		zap.Int("backlog", len(listings)),
		zap.Float64("cost_ceiling", o.cfg.CostCeiling),
	)

	summary := &model.HarvestSummary{
		RunID:         run.ID,
		FlagsByReason: make(map[string]int),
		Outcomes:      make(map[string]int),
	}
	spend := &budget{}

	attempts := o.dispatch(ctx, run.ID, listings, spend, summary)
	o.aggregate(ctx, summary, attempts, started)

	summary.TotalCost = spend.value()
	summary.ElapsedMS = time.Since(started).Milliseconds()

	if err := o.store.CompleteHarvestRun(ctx, run.ID, summary); err != nil {
		zap.L().Error("complete harvest run", zap.String("run", run.ID), zap.Error(err))
	}

	zap.L().Info("harvest run finished",
		zap.String("run", run.ID),
		zap.Int("processed", summary.Processed),
		zap.Int("successes", summary.Successes),
		zap.Int("flagged", summary.Flagged),
		zap.Int("skipped", summary.Skipped),
		zap.Float64("total_cost", summary.TotalCost),
	)
	return summary, nil
}

// dispatch feeds listings to the engine, respecting the ceiling and the
// concurrency limit.
func (o *Orchestrator) dispatch(ctx context.Context, runID string, listings []model.Listing, spend *budget, summary *model.HarvestSummary) []*model.ExtractionAttempt {
	concurrency := o.cfg.MaxConcurrent
	if concurrency <= 1 {
		return o.dispatchSequential(ctx, runID, listings, spend, summary)
	}

	results := make([]*model.ExtractionAttempt, len(listings))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, listing := range listings {
		// SetLimit blocks Go() once the limit is reached, so by the time a
		// new slot opens the budget reflects every finished attempt. An
		// in-flight attempt's cost can still land after this check; that is
		// the allowed overshoot of letting billed work finish.
		if spend.exhausted(o.cfg.CostCeiling) || gctx.Err() != nil {
			summary.Skipped = len(listings) - i
			zap.L().Warn("cost ceiling reached, skipping remaining backlog",
				zap.String("run", runID),
				zap.Float64("spent", spend.value()),
				zap.Int("skipped", summary.Skipped),
			)
			break
		}

		o.markInProgress(gctx, listing.ID)

		i, listing := i, listing
		g.Go(func() error {
			attempt := o.engine.Attempt(gctx, listing, runID)
			spend.add(attempt.CostEstimate)
			results[i] = attempt
			return nil
		})
	}
	_ = g.Wait()

	attempts := make([]*model.ExtractionAttempt, 0, len(results))
	for _, a := range results {
		if a != nil {
			attempts = append(attempts, a)
		}
	}
	return attempts
}

func (o *Orchestrator) dispatchSequential(ctx context.Context, runID string, listings []model.Listing, spend *budget, summary *model.HarvestSummary) []*model.ExtractionAttempt {
	var attempts []*model.ExtractionAttempt
	for i, listing := range listings {
		if spend.exhausted(o.cfg.CostCeiling) || ctx.Err() != nil {
			summary.Skipped = len(listings) - i
			zap.L().Warn("cost ceiling reached, skipping remaining backlog",
				zap.String("run", runID),
				zap.Float64("spent", spend.value()),
				zap.Int("skipped", summary.Skipped),
			)
			break
		}
		o.markInProgress(ctx, listing.ID)
		attempt := o.engine.Attempt(ctx, listing, runID)
		spend.add(attempt.CostEstimate)
		attempts = append(attempts, attempt)
	}
	return attempts
}

func (o *Orchestrator) markInProgress(ctx context.Context, listingID string) {
	if err := o.store.UpdateListingStatus(ctx, listingID, model.ListingStatusInProgress); err != nil {
		zap.L().Error("mark listing in progress", zap.String("listing", listingID), zap.Error(err))
	}
}

func (o *Orchestrator) aggregate(ctx context.Context, summary *model.HarvestSummary, attempts []*model.ExtractionAttempt, started time.Time) {
	for _, a := range attempts {
		summary.Processed++
		summary.Outcomes[string(a.Outcome)]++
		switch a.Outcome {
		case model.OutcomeSuccess:
			summary.Successes++
		case model.OutcomeRegistrationNeeded:
			summary.Flagged++
		}
	}
	if summary.Flagged > 0 {
		o.countFlagReasons(ctx, summary, started)
	}
}

// countFlagReasons folds the pending flags this run created or re-touched
// into the summary so the report shows the manual work the run generated.
// Flags untouched since the run started belong to earlier runs.
func (o *Orchestrator) countFlagReasons(ctx context.Context, summary *model.HarvestSummary, since time.Time) {
	flags, err := o.store.PendingFlags(ctx, 0)
	if err != nil {
		zap.L().Error("list pending flags", zap.Error(err))
		return
	}
	for _, f := range flags {
		if f.UpdatedAt.Before(since) {
			continue
		}
		summary.FlagsByReason[string(f.Reason)]++
	}
}
