package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/procure-cli/internal/db"
	"github.com/sells-group/procure-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. The caller owns the pool lifecycle.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS listings (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	agency     TEXT NOT NULL DEFAULT '',
	location   TEXT NOT NULL DEFAULT '',
	origin_url TEXT NOT NULL,
	region     TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'pending',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS site_profiles (
	id               TEXT PRIMARY KEY,
	site_identity    TEXT NOT NULL UNIQUE,
	family           TEXT NOT NULL DEFAULT 'unknown',
	login_url        TEXT NOT NULL DEFAULT '',
	registration_url TEXT NOT NULL DEFAULT '',
	auth_required    BOOLEAN NOT NULL DEFAULT false,
	confidence       DOUBLE PRECISION NOT NULL DEFAULT 0,
	notes            TEXT NOT NULL DEFAULT '',
	last_verified_at TIMESTAMPTZ NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS credentials (
	id               TEXT PRIMARY KEY,
	site_identity    TEXT NOT NULL,
	family           TEXT NOT NULL,
	account          TEXT NOT NULL,
	sealed           BYTEA NOT NULL,
	registration     JSONB NOT NULL DEFAULT '{}',
	status           TEXT NOT NULL DEFAULT 'unverified',
	failure_reason   TEXT NOT NULL DEFAULT '',
	last_verified_at TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (site_identity, family)
);

CREATE TABLE IF NOT EXISTS registration_flags (
	id               TEXT PRIMARY KEY,
	site_identity    TEXT NOT NULL,
	family           TEXT NOT NULL,
	reason           TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	priority         INTEGER NOT NULL DEFAULT 0,
	estimated_hours  DOUBLE PRECISION NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'pending',
	resolution_notes TEXT NOT NULL DEFAULT '',
	resolved_at      TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS navigation_patterns (
	id                  TEXT PRIMARY KEY,
	name                TEXT NOT NULL,
	family              TEXT NOT NULL,
	template            JSONB NOT NULL,
	total_attempts      INTEGER NOT NULL DEFAULT 0,
	successful_attempts INTEGER NOT NULL DEFAULT 0,
	success_rate        DOUBLE PRECISION NOT NULL DEFAULT 0,
	confidence          DOUBLE PRECISION NOT NULL DEFAULT 0,
	proven_sites        JSONB NOT NULL DEFAULT '[]',
	active              BOOLEAN NOT NULL DEFAULT true,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS extraction_attempts (
	id                   TEXT PRIMARY KEY,
	listing_id           TEXT NOT NULL,
	run_id               TEXT NOT NULL DEFAULT '',
	site_profile_id      TEXT NOT NULL DEFAULT '',
	pattern_id           TEXT NOT NULL DEFAULT '',
	outcome              TEXT NOT NULL,
	reason               TEXT NOT NULL DEFAULT '',
	documents_found      INTEGER NOT NULL DEFAULT 0,
	documents_downloaded INTEGER NOT NULL DEFAULT 0,
	resolution_priority  INTEGER NOT NULL DEFAULT 0,
	elapsed_ms           BIGINT NOT NULL DEFAULT 0,
	cost_estimate        DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS analysis_records (
	id            TEXT PRIMARY KEY,
	site_identity TEXT NOT NULL,
	analyzer      TEXT NOT NULL,
	success       BOOLEAN NOT NULL DEFAULT false,
	confidence    DOUBLE PRECISION NOT NULL DEFAULT 0,
	cost          DOUBLE PRECISION NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS harvest_runs (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT 'running',
	summary      JSONB,
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS vault_meta (
	key   TEXT PRIMARY KEY,
	value BYTEA NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status);
CREATE INDEX IF NOT EXISTS idx_flags_status_priority ON registration_flags(status, priority DESC);
CREATE INDEX IF NOT EXISTS idx_flags_site ON registration_flags(site_identity, family, status);
CREATE INDEX IF NOT EXISTS idx_patterns_family ON navigation_patterns(family, active, success_rate DESC);
CREATE INDEX IF NOT EXISTS idx_attempts_listing ON extraction_attempts(listing_id);
CREATE INDEX IF NOT EXISTS idx_attempts_run ON extraction_attempts(run_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Listings ---

func (s *PostgresStore) InsertListings(ctx context.Context, listings []model.Listing) (int, error) {
	if len(listings) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	inserted := 0
	for _, l := range listings {
		if l.ID == "" {
			l.ID = uuid.New().String()
		}
		if l.Status == "" {
			l.Status = model.ListingStatusPending
		}
		tag, err := s.pool.Exec(ctx,
			`INSERT INTO listings (id, title, agency, location, origin_url, region, status, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (id) DO NOTHING`,
			l.ID, l.Title, l.Agency, l.Location, l.OriginURL, l.Region, string(l.Status), now, now,
		)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: insert listing")
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

func (s *PostgresStore) PendingListings(ctx context.Context, limit int) ([]model.Listing, error) {
	query := `SELECT id, title, agency, location, origin_url, region, status, created_at, updated_at
		FROM listings WHERE status = $1 ORDER BY created_at`
	args := []any{string(model.ListingStatusPending)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: pending listings")
	}
	defer rows.Close()

	var out []model.Listing
	for rows.Next() {
		var l model.Listing
		var status string
		if err := rows.Scan(&l.ID, &l.Title, &l.Agency, &l.Location, &l.OriginURL, &l.Region, &status, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan listing")
		}
		l.Status = model.ListingStatus(status)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	var l model.Listing
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, agency, location, origin_url, region, status, created_at, updated_at FROM listings WHERE id = $1`,
		id,
	).Scan(&l.ID, &l.Title, &l.Agency, &l.Location, &l.OriginURL, &l.Region, &status, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get listing %s", id)
	}
	l.Status = model.ListingStatus(status)
	return &l, nil
}

func (s *PostgresStore) UpdateListingStatus(ctx context.Context, id string, status model.ListingStatus) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE listings SET status = $1, updated_at = now() WHERE id = $2`,
		string(status), id,
	)
	return eris.Wrapf(err, "postgres: update listing status %s", id)
}

// --- Site profiles ---

func (s *PostgresStore) GetSiteProfile(ctx context.Context, siteIdentity string) (*model.SiteProfile, error) {
	var p model.SiteProfile
	var family string
	err := s.pool.QueryRow(ctx,
		`SELECT id, site_identity, family, login_url, registration_url, auth_required, confidence, notes, last_verified_at, created_at, updated_at
		 FROM site_profiles WHERE site_identity = $1`,
		siteIdentity,
	).Scan(&p.ID, &p.SiteIdentity, &family, &p.LoginURL, &p.RegistrationURL, &p.AuthRequired, &p.Confidence, &p.Notes, &p.LastVerifiedAt, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get site profile %s", siteIdentity)
	}
	p.Family = model.PortalFamily(family)
	return &p, nil
}

func (s *PostgresStore) UpsertSiteProfile(ctx context.Context, profile *model.SiteProfile) error {
	if err := profile.Validate(); err != nil {
		return err
	}
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO site_profiles (id, site_identity, family, login_url, registration_url, auth_required, confidence, notes, last_verified_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (site_identity) DO UPDATE SET
			family = EXCLUDED.family,
			login_url = EXCLUDED.login_url,
			registration_url = EXCLUDED.registration_url,
			auth_required = EXCLUDED.auth_required,
			confidence = EXCLUDED.confidence,
			notes = EXCLUDED.notes,
			last_verified_at = EXCLUDED.last_verified_at,
			updated_at = EXCLUDED.updated_at`,
		profile.ID, profile.SiteIdentity, string(profile.Family), profile.LoginURL, profile.RegistrationURL,
		profile.AuthRequired, profile.Confidence, profile.Notes, profile.LastVerifiedAt, profile.CreatedAt, profile.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert site profile %s", profile.SiteIdentity)
}

// --- Credentials ---

func (s *PostgresStore) GetCredential(ctx context.Context, siteIdentity string, family model.PortalFamily) (*model.Credential, error) {
	var c model.Credential
	var fam, status string
	var regJSON []byte
	var verifiedAt *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT id, site_identity, family, account, sealed, registration, status, failure_reason, last_verified_at, created_at, updated_at
		 FROM credentials WHERE site_identity = $1 AND family = $2`,
		siteIdentity, string(family),
	).Scan(&c.ID, &c.SiteIdentity, &fam, &c.Account, &c.Sealed, &regJSON, &status, &c.FailureReason, &verifiedAt, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get credential %s/%s", siteIdentity, family)
	}
	c.Family = model.PortalFamily(fam)
	c.Status = model.CredentialStatus(status)
	c.LastVerifiedAt = verifiedAt
	if err := json.Unmarshal(regJSON, &c.Registration); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal registration")
	}
	return &c, nil
}

func (s *PostgresStore) PutCredential(ctx context.Context, cred *model.Credential) error {
	if cred.ID == "" {
		cred.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now
	if cred.Status == "" {
		cred.Status = model.CredentialUnverified
	}
	regJSON, err := json.Marshal(cred.Registration)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal registration")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO credentials (id, site_identity, family, account, sealed, registration, status, failure_reason, last_verified_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (site_identity, family) DO UPDATE SET
			account = EXCLUDED.account,
			sealed = EXCLUDED.sealed,
			registration = EXCLUDED.registration,
			status = EXCLUDED.status,
			failure_reason = EXCLUDED.failure_reason,
			updated_at = EXCLUDED.updated_at`,
		cred.ID, cred.SiteIdentity, string(cred.Family), cred.Account, cred.Sealed, regJSON,
		string(cred.Status), cred.FailureReason, cred.LastVerifiedAt, cred.CreatedAt, cred.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: put credential %s/%s", cred.SiteIdentity, cred.Family)
}

func (s *PostgresStore) UpdateCredentialStatus(ctx context.Context, id string, status model.CredentialStatus, reason string, verifiedAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE credentials SET status = $1, failure_reason = $2, last_verified_at = $3, updated_at = now() WHERE id = $4`,
		string(status), reason, verifiedAt, id,
	)
	return eris.Wrapf(err, "postgres: update credential status %s", id)
}

func (s *PostgresStore) DeleteCredential(ctx context.Context, siteIdentity string, family model.PortalFamily) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM credentials WHERE site_identity = $1 AND family = $2`,
		siteIdentity, string(family),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: delete credential %s/%s", siteIdentity, family)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) CredentialSummary(ctx context.Context) ([]model.CredentialCount, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT family, status, COUNT(*) FROM credentials GROUP BY family, status ORDER BY family, status`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: credential summary")
	}
	defer rows.Close()

	var out []model.CredentialCount
	for rows.Next() {
		var cc model.CredentialCount
		var fam, status string
		if err := rows.Scan(&fam, &status, &cc.Count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan credential summary")
		}
		cc.Family = model.PortalFamily(fam)
		cc.Status = model.CredentialStatus(status)
		out = append(out, cc)
	}
	return out, rows.Err()
}

// --- Registration flags ---

const flagSelectPG = `SELECT id, site_identity, family, reason, description, priority, estimated_hours, status, resolution_notes, resolved_at, created_at, updated_at FROM registration_flags`

func (s *PostgresStore) scanFlag(row pgx.Row) (*model.RegistrationFlag, error) {
	var f model.RegistrationFlag
	var fam, reason, status string
	var resolvedAt *time.Time
	err := row.Scan(&f.ID, &f.SiteIdentity, &fam, &reason, &f.Description, &f.Priority, &f.EstimatedHours, &status, &f.ResolutionNotes, &resolvedAt, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan flag")
	}
	f.Family = model.PortalFamily(fam)
	f.Reason = model.FlagReason(reason)
	f.Status = model.FlagStatus(status)
	f.ResolvedAt = resolvedAt
	return &f, nil
}

func (s *PostgresStore) GetFlag(ctx context.Context, id string) (*model.RegistrationFlag, error) {
	return s.scanFlag(s.pool.QueryRow(ctx, flagSelectPG+` WHERE id = $1`, id))
}

func (s *PostgresStore) GetPendingFlag(ctx context.Context, siteIdentity string, family model.PortalFamily) (*model.RegistrationFlag, error) {
	return s.scanFlag(s.pool.QueryRow(ctx,
		flagSelectPG+` WHERE site_identity = $1 AND family = $2 AND status = $3`,
		siteIdentity, string(family), string(model.FlagPending),
	))
}

func (s *PostgresStore) SaveFlag(ctx context.Context, flag *model.RegistrationFlag) error {
	if flag.ID == "" {
		flag.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if flag.CreatedAt.IsZero() {
		flag.CreatedAt = now
	}
	flag.UpdatedAt = now
	_, err := s.pool.Exec(ctx,
		`INSERT INTO registration_flags (id, site_identity, family, reason, description, priority, estimated_hours, status, resolution_notes, resolved_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO UPDATE SET
			reason = EXCLUDED.reason,
			description = EXCLUDED.description,
			priority = EXCLUDED.priority,
			estimated_hours = EXCLUDED.estimated_hours,
			status = EXCLUDED.status,
			resolution_notes = EXCLUDED.resolution_notes,
			resolved_at = EXCLUDED.resolved_at,
			updated_at = EXCLUDED.updated_at`,
		flag.ID, flag.SiteIdentity, string(flag.Family), string(flag.Reason), flag.Description,
		flag.Priority, flag.EstimatedHours, string(flag.Status), flag.ResolutionNotes, flag.ResolvedAt,
		flag.CreatedAt, flag.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: save flag %s", flag.ID)
}

func (s *PostgresStore) PendingFlags(ctx context.Context, limit int) ([]model.RegistrationFlag, error) {
	query := flagSelectPG + ` WHERE status = $1 ORDER BY priority DESC, created_at`
	args := []any{string(model.FlagPending)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: pending flags")
	}
	defer rows.Close()

	var out []model.RegistrationFlag
	for rows.Next() {
		f, err := s.scanFlag(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// --- Navigation patterns ---

const patternSelectPG = `SELECT id, name, family, template, total_attempts, successful_attempts, success_rate, confidence, proven_sites, active, created_at, updated_at FROM navigation_patterns`

func scanPatternPG(row pgx.Row) (*model.NavigationPattern, error) {
	var p model.NavigationPattern
	var fam string
	var tmplJSON, sitesJSON []byte
	err := row.Scan(&p.ID, &p.Name, &fam, &tmplJSON, &p.TotalAttempts, &p.SuccessfulAttempts, &p.SuccessRate, &p.Confidence, &sitesJSON, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan pattern")
	}
	p.Family = model.PortalFamily(fam)
	if err := json.Unmarshal(tmplJSON, &p.Template); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal template")
	}
	if err := json.Unmarshal(sitesJSON, &p.ProvenSites); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal proven sites")
	}
	return &p, nil
}

func (s *PostgresStore) GetPattern(ctx context.Context, id string) (*model.NavigationPattern, error) {
	return scanPatternPG(s.pool.QueryRow(ctx, patternSelectPG+` WHERE id = $1`, id))
}

func (s *PostgresStore) PatternsByFamily(ctx context.Context, family model.PortalFamily) ([]model.NavigationPattern, error) {
	rows, err := s.pool.Query(ctx,
		patternSelectPG+` WHERE family = $1 AND active ORDER BY success_rate DESC, total_attempts DESC`,
		string(family),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: patterns by family %s", family)
	}
	defer rows.Close()

	var out []model.NavigationPattern
	for rows.Next() {
		p, err := scanPatternPG(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SavePattern(ctx context.Context, pattern *model.NavigationPattern) error {
	if pattern.ID == "" {
		pattern.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if pattern.CreatedAt.IsZero() {
		pattern.CreatedAt = now
	}
	pattern.UpdatedAt = now
	tmplJSON, err := json.Marshal(pattern.Template)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal template")
	}
	sites := pattern.ProvenSites
	if sites == nil {
		sites = []string{}
	}
	sitesJSON, err := json.Marshal(sites)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal proven sites")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO navigation_patterns (id, name, family, template, total_attempts, successful_attempts, success_rate, confidence, proven_sites, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			template = EXCLUDED.template,
			total_attempts = EXCLUDED.total_attempts,
			successful_attempts = EXCLUDED.successful_attempts,
			success_rate = EXCLUDED.success_rate,
			confidence = EXCLUDED.confidence,
			proven_sites = EXCLUDED.proven_sites,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at`,
		pattern.ID, pattern.Name, string(pattern.Family), tmplJSON, pattern.TotalAttempts,
		pattern.SuccessfulAttempts, pattern.SuccessRate, pattern.Confidence, sitesJSON,
		pattern.Active, pattern.CreatedAt, pattern.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: save pattern %s", pattern.ID)
}

func (s *PostgresStore) DeactivatePattern(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE navigation_patterns SET active = false, updated_at = now() WHERE id = $1`,
		id,
	)
	return eris.Wrapf(err, "postgres: deactivate pattern %s", id)
}

// --- Extraction attempts ---

func (s *PostgresStore) AppendAttempt(ctx context.Context, attempt *model.ExtractionAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO extraction_attempts (id, listing_id, run_id, site_profile_id, pattern_id, outcome, reason, documents_found, documents_downloaded, resolution_priority, elapsed_ms, cost_estimate, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		attempt.ID, attempt.ListingID, attempt.RunID, attempt.SiteProfileID, attempt.PatternID,
		string(attempt.Outcome), attempt.Reason, attempt.DocumentsFound, attempt.DocumentsDownloaded,
		attempt.ResolutionPriority, attempt.ElapsedMS, attempt.CostEstimate, attempt.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: append attempt for listing %s", attempt.ListingID)
}

func (s *PostgresStore) AttemptsForListing(ctx context.Context, listingID string) ([]model.ExtractionAttempt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, listing_id, run_id, site_profile_id, pattern_id, outcome, reason, documents_found, documents_downloaded, resolution_priority, elapsed_ms, cost_estimate, created_at
		 FROM extraction_attempts WHERE listing_id = $1 ORDER BY created_at`,
		listingID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: attempts for listing %s", listingID)
	}
	defer rows.Close()

	var out []model.ExtractionAttempt
	for rows.Next() {
		var a model.ExtractionAttempt
		var outcome string
		if err := rows.Scan(&a.ID, &a.ListingID, &a.RunID, &a.SiteProfileID, &a.PatternID, &outcome, &a.Reason, &a.DocumentsFound, &a.DocumentsDownloaded, &a.ResolutionPriority, &a.ElapsedMS, &a.CostEstimate, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan attempt")
		}
		a.Outcome = model.Outcome(outcome)
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- Analysis records ---

func (s *PostgresStore) AppendAnalysisRecord(ctx context.Context, rec *model.AnalysisRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO analysis_records (id, site_identity, analyzer, success, confidence, cost, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.SiteIdentity, rec.Analyzer, rec.Success, rec.Confidence, rec.Cost, rec.Error, rec.CreatedAt,
	)
	return eris.Wrap(err, "postgres: append analysis record")
}

// --- Harvest runs ---

func (s *PostgresStore) CreateHarvestRun(ctx context.Context) (*model.HarvestRun, error) {
	run := &model.HarvestRun{
		ID:        uuid.New().String(),
		Status:    "running",
		StartedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO harvest_runs (id, status, started_at) VALUES ($1, $2, $3)`,
		run.ID, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create harvest run")
	}
	return run, nil
}

func (s *PostgresStore) CompleteHarvestRun(ctx context.Context, runID string, summary *model.HarvestSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE harvest_runs SET status = 'complete', summary = $1, completed_at = now() WHERE id = $2`,
		summaryJSON, runID,
	)
	return eris.Wrapf(err, "postgres: complete harvest run %s", runID)
}

// --- Vault metadata ---

func (s *PostgresStore) GetVaultSalt(ctx context.Context) ([]byte, error) {
	var salt []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM vault_meta WHERE key = 'kdf_salt'`).Scan(&salt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get vault salt")
	}
	return salt, nil
}

func (s *PostgresStore) SetVaultSalt(ctx context.Context, salt []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO vault_meta (key, value) VALUES ('kdf_salt', $1)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		salt,
	)
	return eris.Wrap(err, "postgres: set vault salt")
}
