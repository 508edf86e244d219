package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/procure-cli/internal/model"
)

// newTestSQLiteStore creates a migrated SQLite store backed by a temp file.
func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_Listings_InsertAndPending(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := st.InsertListings(ctx, []model.Listing{
		{ID: "l-1", Title: "Road Resurfacing", Agency: "City of Pasadena", OriginURL: "https://bids.pasadena.gov/rfp/1"},
		{ID: "l-2", Title: "HVAC Maintenance", Agency: "City of Glendale", OriginURL: "https://glendale.bonfirehub.com/opp/2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Duplicate IDs are ignored, not errors.
	n, err = st.InsertListings(ctx, []model.Listing{
		{ID: "l-1", Title: "Road Resurfacing", OriginURL: "https://bids.pasadena.gov/rfp/1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	pending, err := st.PendingListings(ctx, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, l := range pending {
		assert.Equal(t, model.ListingStatusPending, l.Status)
	}

	limited, err := st.PendingListings(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_Listings_StatusTransition(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.InsertListings(ctx, []model.Listing{
		{ID: "l-1", Title: "Sewer Line Repair", OriginURL: "https://www.longbeach.gov/bids/44"},
	})
	require.NoError(t, err)

	require.NoError(t, st.UpdateListingStatus(ctx, "l-1", model.ListingStatusCompleted))

	got, err := st.GetListing(ctx, "l-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.ListingStatusCompleted, got.Status)

	pending, err := st.PendingListings(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSQLite_GetListing_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetListing(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_SiteProfile_UpsertAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	profile := &model.SiteProfile{
		SiteIdentity: "glendale.bonfirehub.com",
		Family:       model.FamilyBonfire,
		LoginURL:     "https://glendale.bonfirehub.com/login",
		AuthRequired: true,
		Confidence:   0.85,
	}
	require.NoError(t, st.UpsertSiteProfile(ctx, profile))
	assert.NotEmpty(t, profile.ID)

	got, err := st.GetSiteProfile(ctx, "glendale.bonfirehub.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.FamilyBonfire, got.Family)
	assert.True(t, got.AuthRequired)
	assert.InDelta(t, 0.85, got.Confidence, 1e-9)

	// Re-upsert for the same identity updates in place.
	profile.Confidence = 0.95
	profile.Family = model.FamilyUnknown
	require.NoError(t, st.UpsertSiteProfile(ctx, profile))

	got, err = st.GetSiteProfile(ctx, "glendale.bonfirehub.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.FamilyUnknown, got.Family)
	assert.InDelta(t, 0.95, got.Confidence, 1e-9)
}

func TestSQLite_SiteProfile_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetSiteProfile(context.Background(), "nowhere.example.com")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_Credentials_PutGetDelete(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	cred := &model.Credential{
		SiteIdentity: "vendors.planetbids.com",
		Family:       model.FamilyPlanetBids,
		Account:      "bids@sellsgroup.com",
		Sealed:       []byte{0x01, 0x02, 0x03},
		Registration: model.BusinessRegistration{LegalName: "Sells Group LLC", ContactEmail: "bids@sellsgroup.com"},
	}
	require.NoError(t, st.PutCredential(ctx, cred))
	assert.Equal(t, model.CredentialUnverified, cred.Status)

	got, err := st.GetCredential(ctx, "vendors.planetbids.com", model.FamilyPlanetBids)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "bids@sellsgroup.com", got.Account)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, got.Sealed)
	assert.Equal(t, "Sells Group LLC", got.Registration.LegalName)

	// Same (site, family) replaces rather than duplicates.
	cred2 := &model.Credential{
		SiteIdentity: "vendors.planetbids.com",
		Family:       model.FamilyPlanetBids,
		Account:      "procurement@sellsgroup.com",
		Sealed:       []byte{0x09},
	}
	require.NoError(t, st.PutCredential(ctx, cred2))

	got, err = st.GetCredential(ctx, "vendors.planetbids.com", model.FamilyPlanetBids)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "procurement@sellsgroup.com", got.Account)

	n, err := st.DeleteCredential(ctx, "vendors.planetbids.com", model.FamilyPlanetBids)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	// Deleting again is a no-op.
	n, err = st.DeleteCredential(ctx, "vendors.planetbids.com", model.FamilyPlanetBids)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	got, err = st.GetCredential(ctx, "vendors.planetbids.com", model.FamilyPlanetBids)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_Credentials_StatusUpdate(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	cred := &model.Credential{
		SiteIdentity: "demandstar.com",
		Family:       model.FamilyDemandStar,
		Account:      "ops@sellsgroup.com",
		Sealed:       []byte("sealed"),
	}
	require.NoError(t, st.PutCredential(ctx, cred))

	verifiedAt := time.Now().UTC()
	require.NoError(t, st.UpdateCredentialStatus(ctx, cred.ID, model.CredentialFailed, "invalid password", verifiedAt))

	got, err := st.GetCredential(ctx, "demandstar.com", model.FamilyDemandStar)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.CredentialFailed, got.Status)
	assert.Equal(t, "invalid password", got.FailureReason)
}

func TestSQLite_CredentialSummary_GroupsByFamilyAndStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	creds := []*model.Credential{
		{SiteIdentity: "a.bonfirehub.com", Family: model.FamilyBonfire, Account: "a", Sealed: []byte{1}},
		{SiteIdentity: "b.bonfirehub.com", Family: model.FamilyBonfire, Account: "b", Sealed: []byte{1}},
		{SiteIdentity: "demandstar.com", Family: model.FamilyDemandStar, Account: "c", Sealed: []byte{1}, Status: model.CredentialVerified},
	}
	for _, c := range creds {
		require.NoError(t, st.PutCredential(ctx, c))
	}

	summary, err := st.CredentialSummary(ctx)
	require.NoError(t, err)
	require.Len(t, summary, 2)

	counts := map[string]int{}
	for _, row := range summary {
		counts[string(row.Family)+"/"+string(row.Status)] = row.Count
	}
	assert.Equal(t, 2, counts["bonfire/unverified"])
	assert.Equal(t, 1, counts["demandstar/verified"])
}

func TestSQLite_Flags_SaveAndPendingLookup(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	flag := &model.RegistrationFlag{
		SiteIdentity:   "vendors.opengov.com",
		Family:         model.FamilyOpenGov,
		Reason:         model.FlagRegistrationNeeded,
		Description:    "portal account required before bid documents are reachable",
		Priority:       60,
		EstimatedHours: 0.5,
		Status:         model.FlagPending,
	}
	require.NoError(t, st.SaveFlag(ctx, flag))
	assert.NotEmpty(t, flag.ID)

	got, err := st.GetPendingFlag(ctx, "vendors.opengov.com", model.FamilyOpenGov)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, flag.ID, got.ID)
	assert.Equal(t, model.FlagRegistrationNeeded, got.Reason)

	// Resolving removes it from the pending lookup.
	now := time.Now().UTC()
	got.Status = model.FlagResolved
	got.ResolutionNotes = "account created manually"
	got.ResolvedAt = &now
	require.NoError(t, st.SaveFlag(ctx, got))

	pending, err := st.GetPendingFlag(ctx, "vendors.opengov.com", model.FamilyOpenGov)
	require.NoError(t, err)
	assert.Nil(t, pending)

	byID, err := st.GetFlag(ctx, got.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, model.FlagResolved, byID.Status)
	assert.Equal(t, "account created manually", byID.ResolutionNotes)
	require.NotNil(t, byID.ResolvedAt)
}

func TestSQLite_PendingFlags_OrderedByPriority(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	flags := []*model.RegistrationFlag{
		{SiteIdentity: "low.example.gov", Family: model.FamilyBidNet, Reason: model.FlagManualFollowUp, Priority: 30, Status: model.FlagPending},
		{SiteIdentity: "high.example.gov", Family: model.FamilyBonfire, Reason: model.FlagLoginFailed, Priority: 80, Status: model.FlagPending},
		{SiteIdentity: "mid.example.gov", Family: model.FamilyPlanetBids, Reason: model.FlagRegistrationNeeded, Priority: 50, Status: model.FlagPending},
	}
	for _, f := range flags {
		require.NoError(t, st.SaveFlag(ctx, f))
	}

	got, err := st.PendingFlags(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "high.example.gov", got[0].SiteIdentity)
	assert.Equal(t, "mid.example.gov", got[1].SiteIdentity)
	assert.Equal(t, "low.example.gov", got[2].SiteIdentity)

	limited, err := st.PendingFlags(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSQLite_Patterns_SaveAndSelectByFamily(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	strong := &model.NavigationPattern{
		Name:   "bonfire-standard",
		Family: model.FamilyBonfire,
		Template: model.Template{
			Listing:   model.ListingSteps{RowSelector: "table.opportunities tr"},
			Documents: model.DocumentSteps{LinkSelector: "a[href$='.pdf']", Extensions: []string{".pdf"}},
		},
		TotalAttempts:      10,
		SuccessfulAttempts: 9,
		SuccessRate:        0.9,
		ProvenSites:        []string{"glendale.bonfirehub.com"},
		Active:             true,
	}
	weak := &model.NavigationPattern{
		Name:               "bonfire-legacy",
		Family:             model.FamilyBonfire,
		TotalAttempts:      10,
		SuccessfulAttempts: 3,
		SuccessRate:        0.3,
		Active:             true,
	}
	require.NoError(t, st.SavePattern(ctx, strong))
	require.NoError(t, st.SavePattern(ctx, weak))

	got, err := st.PatternsByFamily(ctx, model.FamilyBonfire)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "bonfire-standard", got[0].Name)
	assert.Equal(t, []string{"glendale.bonfirehub.com"}, got[0].ProvenSites)
	assert.Equal(t, "table.opportunities tr", got[0].Template.Listing.RowSelector)

	byID, err := st.GetPattern(ctx, weak.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "bonfire-legacy", byID.Name)
}

func TestSQLite_Patterns_DeactivateExcludesFromSelection(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p := &model.NavigationPattern{Name: "ionwave-default", Family: model.FamilyIonWave, Active: true}
	require.NoError(t, st.SavePattern(ctx, p))

	require.NoError(t, st.DeactivatePattern(ctx, p.ID))

	got, err := st.PatternsByFamily(ctx, model.FamilyIonWave)
	require.NoError(t, err)
	assert.Empty(t, got)

	// The row itself survives; deactivation is not deletion.
	byID, err := st.GetPattern(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.False(t, byID.Active)
}

func TestSQLite_Attempts_AppendOnly(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	first := &model.ExtractionAttempt{
		ListingID:    "l-1",
		RunID:        "r-1",
		Outcome:      model.OutcomeNavigationFailed,
		Reason:       "login page did not load",
		CostEstimate: 0.004,
	}
	require.NoError(t, st.AppendAttempt(ctx, first))
	time.Sleep(5 * time.Millisecond)
	second := &model.ExtractionAttempt{
		ListingID:           "l-1",
		RunID:               "r-2",
		Outcome:             model.OutcomeSuccess,
		DocumentsFound:      3,
		DocumentsDownloaded: 3,
		CostEstimate:        0.011,
	}
	require.NoError(t, st.AppendAttempt(ctx, second))

	attempts, err := st.AttemptsForListing(ctx, "l-1")
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, model.OutcomeNavigationFailed, attempts[0].Outcome)
	assert.Equal(t, model.OutcomeSuccess, attempts[1].Outcome)
	assert.Equal(t, 3, attempts[1].DocumentsDownloaded)
}

func TestSQLite_HarvestRun_CreateAndComplete(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateHarvestRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "running", run.Status)

	summary := &model.HarvestSummary{
		RunID:     run.ID,
		Processed: 4,
		Successes: 2,
		Flagged:   1,
		Skipped:   1,
		TotalCost: 0.42,
		Outcomes:  map[string]int{string(model.OutcomeSuccess): 2},
	}
	require.NoError(t, st.CompleteHarvestRun(ctx, run.ID, summary))
}

func TestSQLite_VaultSalt_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	salt, err := st.GetVaultSalt(ctx)
	require.NoError(t, err)
	assert.Nil(t, salt)

	require.NoError(t, st.SetVaultSalt(ctx, []byte("0123456789abcdef")))

	salt, err = st.GetVaultSalt(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("0123456789abcdef"), salt)

	// Overwrite is allowed; last write wins.
	require.NoError(t, st.SetVaultSalt(ctx, []byte("fedcba9876543210")))
	salt, err = st.GetVaultSalt(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("fedcba9876543210"), salt)
}
