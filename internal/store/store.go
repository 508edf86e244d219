// Package store persists the harvest data model behind a dual-backend
// (SQLite/Postgres) interface.
package store

import (
	"context"
	"time"

	"github.com/sells-group/procure-cli/internal/model"
)

// Store defines the persistence interface for the harvest core.
type Store interface {
	// Listings (owned upstream; only status transitions here)
	InsertListings(ctx context.Context, listings []model.Listing) (int, error)
	PendingListings(ctx context.Context, limit int) ([]model.Listing, error)
	GetListing(ctx context.Context, id string) (*model.Listing, error)
	UpdateListingStatus(ctx context.Context, id string, status model.ListingStatus) error

	// Site profiles
	GetSiteProfile(ctx context.Context, siteIdentity string) (*model.SiteProfile, error)
	UpsertSiteProfile(ctx context.Context, profile *model.SiteProfile) error

	// Credentials
	GetCredential(ctx context.Context, siteIdentity string, family model.PortalFamily) (*model.Credential, error)
	PutCredential(ctx context.Context, cred *model.Credential) error
	UpdateCredentialStatus(ctx context.Context, id string, status model.CredentialStatus, reason string, verifiedAt time.Time) error
	DeleteCredential(ctx context.Context, siteIdentity string, family model.PortalFamily) (int64, error)
	CredentialSummary(ctx context.Context) ([]model.CredentialCount, error)

	// Registration flags
	GetFlag(ctx context.Context, id string) (*model.RegistrationFlag, error)
	GetPendingFlag(ctx context.Context, siteIdentity string, family model.PortalFamily) (*model.RegistrationFlag, error)
	SaveFlag(ctx context.Context, flag *model.RegistrationFlag) error
	PendingFlags(ctx context.Context, limit int) ([]model.RegistrationFlag, error)

	// Navigation patterns
	GetPattern(ctx context.Context, id string) (*model.NavigationPattern, error)
	PatternsByFamily(ctx context.Context, family model.PortalFamily) ([]model.NavigationPattern, error)
	SavePattern(ctx context.Context, pattern *model.NavigationPattern) error
	DeactivatePattern(ctx context.Context, id string) error

	// Extraction attempts (append-only)
	AppendAttempt(ctx context.Context, attempt *model.ExtractionAttempt) error
	AttemptsForListing(ctx context.Context, listingID string) ([]model.ExtractionAttempt, error)

	// Analysis records (append-only)
	AppendAnalysisRecord(ctx context.Context, rec *model.AnalysisRecord) error

	// Harvest runs
	CreateHarvestRun(ctx context.Context) (*model.HarvestRun, error)
	CompleteHarvestRun(ctx context.Context, runID string, summary *model.HarvestSummary) error

	// Vault metadata (key derivation salt)
	GetVaultSalt(ctx context.Context) ([]byte, error)
	SetVaultSalt(ctx context.Context, salt []byte) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
