package harvest

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/procure-cli/internal/config"
	"github.com/sells-group/procure-cli/internal/model"
	"github.com/sells-group/procure-cli/internal/store"
)

// costedEngine returns a fixed outcome and cost per attempt, persisting the
// attempt row the way the real engine does.
type costedEngine struct {
	store       store.Store
	costPer     float64
	outcome     model.Outcome
	mu          sync.Mutex
	dispatched  []string
	perListing  map[string]model.Outcome
}

func (e *costedEngine) Attempt(ctx context.Context, listing model.Listing, runID string) *model.ExtractionAttempt {
	e.mu.Lock()
	e.dispatched = append(e.dispatched, listing.ID)
	e.mu.Unlock()

	outcome := e.outcome
	if o, ok := e.perListing[listing.ID]; ok {
		outcome = o
	}
	attempt := &model.ExtractionAttempt{
		ListingID:    listing.ID,
		RunID:        runID,
		Outcome:      outcome,
		CostEstimate: e.costPer,
	}
	_ = e.store.AppendAttempt(ctx, attempt)
	if outcome == model.OutcomeRegistrationNeeded {
		site := listing.SiteIdentity()
		flag, _ := e.store.GetPendingFlag(ctx, site, model.FamilyDemandStar)
		if flag == nil {
			flag = &model.RegistrationFlag{
				SiteIdentity: site,
				Family:       model.FamilyDemandStar,
				Reason:       model.FlagRegistrationNeeded,
				Status:       model.FlagPending,
			}
		}
		_ = e.store.SaveFlag(ctx, flag)
	}
	status := model.ListingStatusFailed
	if outcome == model.OutcomeSuccess {
		status = model.ListingStatusCompleted
	}
	_ = e.store.UpdateListingStatus(ctx, listing.ID, status)
	return attempt
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedListings(t *testing.T, st store.Store, n int) {
	t.Helper()
	listings := make([]model.Listing, n)
	for i := range listings {
		listings[i] = model.Listing{
			ID:        fmt.Sprintf("l-%d", i+1),
			Title:     fmt.Sprintf("Listing %d", i+1),
			OriginURL: fmt.Sprintf("https://bids.example.gov/rfp/%d", i+1),
		}
		// Distinct created_at keeps the pending order deterministic.
		time.Sleep(2 * time.Millisecond)
		_, err := st.InsertListings(context.Background(), listings[i:i+1])
		require.NoError(t, err)
	}
}

func TestRun_ProcessesBacklog(t *testing.T) {
	st := newTestStore(t)
	seedListings(t, st, 3)
	eng := &costedEngine{store: st, costPer: 0.5, outcome: model.OutcomeSuccess}

	o := NewOrchestrator(st, eng, config.HarvestConfig{MaxListings: 10, CostCeiling: 10})
	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 3, summary.Successes)
	assert.Zero(t, summary.Skipped)
	assert.InDelta(t, 1.5, summary.TotalCost, 1e-9)
	assert.Equal(t, 3, summary.Outcomes[string(model.OutcomeSuccess)])
	assert.NotEmpty(t, summary.RunID)
}

func TestRun_CostCeilingStopsNewDispatch(t *testing.T) {
	st := newTestStore(t)
	seedListings(t, st, 5)
	eng := &costedEngine{store: st, costPer: 1.0, outcome: model.OutcomeSuccess}

	o := NewOrchestrator(st, eng, config.HarvestConfig{MaxListings: 10, CostCeiling: 3.0, MaxConcurrent: 1})
	summary, err := o.Run(context.Background())
	require.NoError(t, err)

	// Attempts 1..3 spend the whole budget; 4 and 5 never start.
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 2, summary.Skipped)
	assert.InDelta(t, 3.0, summary.TotalCost, 1e-9)
	assert.Len(t, eng.dispatched, 3)

	// Skipped listings stay pending for the next run.
	pending, err := st.PendingListings(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestRun_ZeroCeilingIsUnlimited(t *testing.T) {
	st := newTestStore(t)
	seedListings(t, st, 4)
	eng := &costedEngine{store: st, costPer: 99, outcome: model.OutcomeNoRFPFound}

	o := NewOrchestrator(st, eng, config.HarvestConfig{MaxListings: 10})
	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Processed)
	assert.Zero(t, summary.Skipped)
}

func TestRun_MaxListingsLimitsBacklog(t *testing.T) {
	st := newTestStore(t)
	seedListings(t, st, 5)
	eng := &costedEngine{store: st, costPer: 0.1, outcome: model.OutcomeSuccess}

	o := NewOrchestrator(st, eng, config.HarvestConfig{MaxListings: 2, CostCeiling: 10})
	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
}

func TestRun_AllFailuresStillReturnsSummary(t *testing.T) {
	st := newTestStore(t)
	seedListings(t, st, 2)
	eng := &costedEngine{store: st, costPer: 0.2, outcome: model.OutcomeNavigationFailed}

	o := NewOrchestrator(st, eng, config.HarvestConfig{MaxListings: 10, CostCeiling: 10})
	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, 2, summary.Processed)
	assert.Zero(t, summary.Successes)
	assert.Equal(t, 2, summary.Outcomes[string(model.OutcomeNavigationFailed)])
}

func TestRun_EmptyBacklog(t *testing.T) {
	st := newTestStore(t)
	eng := &costedEngine{store: st, outcome: model.OutcomeSuccess}

	o := NewOrchestrator(st, eng, config.HarvestConfig{MaxListings: 10, CostCeiling: 10})
	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Processed)
	assert.Zero(t, summary.TotalCost)
}

func TestRun_FlaggedOutcomesFoldPendingFlags(t *testing.T) {
	st := newTestStore(t)
	seedListings(t, st, 2)
	ctx := context.Background()

	// A leftover pending flag from an earlier run must not inflate this
	// run's report.
	require.NoError(t, st.SaveFlag(ctx, &model.RegistrationFlag{
		SiteIdentity: "old.example.gov",
		Family:       model.FamilyBonfire,
		Reason:       model.FlagLoginFailed,
		Status:       model.FlagPending,
	}))
	time.Sleep(5 * time.Millisecond)

	eng := &costedEngine{store: st, costPer: 0.1, outcome: model.OutcomeRegistrationNeeded}
	o := NewOrchestrator(st, eng, config.HarvestConfig{MaxListings: 10, CostCeiling: 10})
	summary, err := o.Run(ctx)
	require.NoError(t, err)

	// Both attempts hit the same site, so the run touches one flag.
	assert.Equal(t, 2, summary.Flagged)
	assert.Equal(t, 1, summary.FlagsByReason[string(model.FlagRegistrationNeeded)])
	assert.Zero(t, summary.FlagsByReason[string(model.FlagLoginFailed)])
}

func TestRun_ConcurrentDispatchProcessesEverything(t *testing.T) {
	st := newTestStore(t)
	seedListings(t, st, 6)
	eng := &costedEngine{store: st, costPer: 0.1, outcome: model.OutcomeSuccess}

	o := NewOrchestrator(st, eng, config.HarvestConfig{MaxListings: 10, CostCeiling: 10, MaxConcurrent: 3})
	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Processed)
	assert.InDelta(t, 0.6, summary.TotalCost, 1e-9)
	assert.Len(t, eng.dispatched, 6)
}

func TestRun_PersistsCompletedRun(t *testing.T) {
	st := newTestStore(t)
	seedListings(t, st, 1)
	eng := &costedEngine{store: st, costPer: 0.1, outcome: model.OutcomeSuccess}

	o := NewOrchestrator(st, eng, config.HarvestConfig{MaxListings: 10, CostCeiling: 10})
	summary, err := o.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, summary.RunID)
}

func TestBudget_Exhausted(t *testing.T) {
	t.Parallel()

	var b budget
	assert.False(t, b.exhausted(1.0))
	assert.False(t, b.exhausted(0), "zero ceiling means unlimited")

	b.add(0.6)
	assert.False(t, b.exhausted(1.0))
	b.add(0.4)
	assert.True(t, b.exhausted(1.0), "meeting the ceiling exhausts it")
	assert.False(t, b.exhausted(0))
	assert.InDelta(t, 1.0, b.value(), 1e-9)
}
