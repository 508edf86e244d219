package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/procure-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS listings (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	agency     TEXT NOT NULL DEFAULT '',
	location   TEXT NOT NULL DEFAULT '',
	origin_url TEXT NOT NULL,
	region     TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'pending',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS site_profiles (
	id               TEXT PRIMARY KEY,
	site_identity    TEXT NOT NULL UNIQUE,
	family           TEXT NOT NULL DEFAULT 'unknown',
	login_url        TEXT NOT NULL DEFAULT '',
	registration_url TEXT NOT NULL DEFAULT '',
	auth_required    INTEGER NOT NULL DEFAULT 0,
	confidence       REAL NOT NULL DEFAULT 0,
	notes            TEXT NOT NULL DEFAULT '',
	last_verified_at DATETIME NOT NULL,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS credentials (
	id               TEXT PRIMARY KEY,
	site_identity    TEXT NOT NULL,
	family           TEXT NOT NULL,
	account          TEXT NOT NULL,
	sealed           BLOB NOT NULL,
	registration     TEXT NOT NULL DEFAULT '{}',
	status           TEXT NOT NULL DEFAULT 'unverified',
	failure_reason   TEXT NOT NULL DEFAULT '',
	last_verified_at DATETIME,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (site_identity, family)
);

CREATE TABLE IF NOT EXISTS registration_flags (
	id               TEXT PRIMARY KEY,
	site_identity    TEXT NOT NULL,
	family           TEXT NOT NULL,
	reason           TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	priority         INTEGER NOT NULL DEFAULT 0,
	estimated_hours  REAL NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'pending',
	resolution_notes TEXT NOT NULL DEFAULT '',
	resolved_at      DATETIME,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS navigation_patterns (
	id                  TEXT PRIMARY KEY,
	name                TEXT NOT NULL,
	family              TEXT NOT NULL,
	template            TEXT NOT NULL,
	total_attempts      INTEGER NOT NULL DEFAULT 0,
	successful_attempts INTEGER NOT NULL DEFAULT 0,
	success_rate        REAL NOT NULL DEFAULT 0,
	confidence          REAL NOT NULL DEFAULT 0,
	proven_sites        TEXT NOT NULL DEFAULT '[]',
	active              INTEGER NOT NULL DEFAULT 1,
	created_at          DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at          DATETIME NOT NULL DEFAULT (datetime('now'))
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
	elapsed_ms           INTEGER NOT NULL DEFAULT 0,
	cost_estimate        REAL NOT NULL DEFAULT 0,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS analysis_records (
	id            TEXT PRIMARY KEY,
	site_identity TEXT NOT NULL,
	analyzer      TEXT NOT NULL,
	success       INTEGER NOT NULL DEFAULT 0,
	confidence    REAL NOT NULL DEFAULT 0,
	cost          REAL NOT NULL DEFAULT 0,
	error         TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS harvest_runs (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT 'running',
	summary      TEXT,
	started_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS vault_meta (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status);
CREATE INDEX IF NOT EXISTS idx_profiles_site ON site_profiles(site_identity);
CREATE INDEX IF NOT EXISTS idx_credentials_site ON credentials(site_identity, family);
CREATE INDEX IF NOT EXISTS idx_flags_status_priority ON registration_flags(status, priority DESC);
CREATE INDEX IF NOT EXISTS idx_flags_site ON registration_flags(site_identity, family, status);
CREATE INDEX IF NOT EXISTS idx_patterns_family ON navigation_patterns(family, active, success_rate DESC);
CREATE INDEX IF NOT EXISTS idx_attempts_listing ON extraction_attempts(listing_id);
CREATE INDEX IF NOT EXISTS idx_attempts_run ON extraction_attempts(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Listings ---

func (s *SQLiteStore) InsertListings(ctx context.Context, listings []model.Listing) (int, error) {
	if len(listings) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert listings")
	}
	defer tx.Rollback() //nolint:errcheck

	inserted := 0
	now := time.Now().UTC()
	for _, l := range listings {
		if l.ID == "" {
			l.ID = uuid.New().String()
		}
		if l.Status == "" {
			l.Status = model.ListingStatusPending
		}
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO listings (id, title, agency, location, origin_url, region, status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, l.Title, l.Agency, l.Location, l.OriginURL, l.Region, string(l.Status), now, now,
		)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: insert listing")
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit insert listings")
	}
	return inserted, nil
}

func (s *SQLiteStore) PendingListings(ctx context.Context, limit int) ([]model.Listing, error) {
	query := `SELECT id, title, agency, location, origin_url, region, status, created_at, updated_at
		FROM listings WHERE status = ? ORDER BY created_at`
	args := []any{string(model.ListingStatusPending)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: pending listings")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Listing
	for rows.Next() {
		var l model.Listing
		var status string
		if err := rows.Scan(&l.ID, &l.Title, &l.Agency, &l.Location, &l.OriginURL, &l.Region, &status, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan listing")
		}
		l.Status = model.ListingStatus(status)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	var l model.Listing
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, agency, location, origin_url, region, status, created_at, updated_at FROM listings WHERE id = ?`,
		id,
	).Scan(&l.ID, &l.Title, &l.Agency, &l.Location, &l.OriginURL, &l.Region, &status, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get listing %s", id)
	}
	l.Status = model.ListingStatus(status)
	return &l, nil
}

func (s *SQLiteStore) UpdateListingStatus(ctx context.Context, id string, status model.ListingStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE listings SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	return eris.Wrapf(err, "sqlite: update listing status %s", id)
}

// --- Site profiles ---

func (s *SQLiteStore) GetSiteProfile(ctx context.Context, siteIdentity string) (*model.SiteProfile, error) {
	var p model.SiteProfile
	var family string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, site_identity, family, login_url, registration_url, auth_required, confidence, notes, last_verified_at, created_at, updated_at
		 FROM site_profiles WHERE site_identity = ?`,
		siteIdentity,
	).Scan(&p.ID, &p.SiteIdentity, &family, &p.LoginURL, &p.RegistrationURL, &p.AuthRequired, &p.Confidence, &p.Notes, &p.LastVerifiedAt, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get site profile %s", siteIdentity)
	}
	p.Family = model.PortalFamily(family)
	return &p, nil
}

func (s *SQLiteStore) UpsertSiteProfile(ctx context.Context, profile *model.SiteProfile) error {
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

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO site_profiles (id, site_identity, family, login_url, registration_url, auth_required, confidence, notes, last_verified_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (site_identity) DO UPDATE SET
			family = excluded.family,
			login_url = excluded.login_url,
			registration_url = excluded.registration_url,
			auth_required = excluded.auth_required,
			confidence = excluded.confidence,
			notes = excluded.notes,
			last_verified_at = excluded.last_verified_at,
			updated_at = excluded.updated_at`,
		profile.ID, profile.SiteIdentity, string(profile.Family), profile.LoginURL, profile.RegistrationURL,
		profile.AuthRequired, profile.Confidence, profile.Notes, profile.LastVerifiedAt, profile.CreatedAt, profile.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert site profile %s", profile.SiteIdentity)
}

// --- Credentials ---

func (s *SQLiteStore) GetCredential(ctx context.Context, siteIdentity string, family model.PortalFamily) (*model.Credential, error) {
	var c model.Credential
	var fam, status, regJSON string
	var verifiedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, site_identity, family, account, sealed, registration, status, failure_reason, last_verified_at, created_at, updated_at
		 FROM credentials WHERE site_identity = ? AND family = ?`,
		siteIdentity, string(family),
	).Scan(&c.ID, &c.SiteIdentity, &fam, &c.Account, &c.Sealed, &regJSON, &status, &c.FailureReason, &verifiedAt, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get credential %s/%s", siteIdentity, family)
	}
	c.Family = model.PortalFamily(fam)
	c.Status = model.CredentialStatus(status)
	if verifiedAt.Valid {
		c.LastVerifiedAt = &verifiedAt.Time
	}
	if err := json.Unmarshal([]byte(regJSON), &c.Registration); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal registration")
	}
	return &c, nil
}

func (s *SQLiteStore) PutCredential(ctx context.Context, cred *model.Credential) error {
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
		return eris.Wrap(err, "sqlite: marshal registration")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO credentials (id, site_identity, family, account, sealed, registration, status, failure_reason, last_verified_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (site_identity, family) DO UPDATE SET
			account = excluded.account,
			sealed = excluded.sealed,
			registration = excluded.registration,
			status = excluded.status,
			failure_reason = excluded.failure_reason,
			updated_at = excluded.updated_at`,
		cred.ID, cred.SiteIdentity, string(cred.Family), cred.Account, cred.Sealed, string(regJSON),
		string(cred.Status), cred.FailureReason, cred.LastVerifiedAt, cred.CreatedAt, cred.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: put credential %s/%s", cred.SiteIdentity, cred.Family)
}

func (s *SQLiteStore) UpdateCredentialStatus(ctx context.Context, id string, status model.CredentialStatus, reason string, verifiedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE credentials SET status = ?, failure_reason = ?, last_verified_at = ?, updated_at = ? WHERE id = ?`,
		string(status), reason, verifiedAt, time.Now().UTC(), id,
	)
	return eris.Wrapf(err, "sqlite: update credential status %s", id)
}

func (s *SQLiteStore) DeleteCredential(ctx context.Context, siteIdentity string, family model.PortalFamily) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM credentials WHERE site_identity = ? AND family = ?`,
		siteIdentity, string(family),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: delete credential %s/%s", siteIdentity, family)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete credential rows affected")
	}
	return n, nil
}

func (s *SQLiteStore) CredentialSummary(ctx context.Context) ([]model.CredentialCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT family, status, COUNT(*) FROM credentials GROUP BY family, status ORDER BY family, status`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: credential summary")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.CredentialCount
	for rows.Next() {
		var cc model.CredentialCount
		var fam, status string
		if err := rows.Scan(&fam, &status, &cc.Count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan credential summary")
		}
		cc.Family = model.PortalFamily(fam)
		cc.Status = model.CredentialStatus(status)
		out = append(out, cc)
	}
	return out, rows.Err()
}

// --- Registration flags ---

func (s *SQLiteStore) GetFlag(ctx context.Context, id string) (*model.RegistrationFlag, error) {
	return s.scanFlagRow(s.db.QueryRowContext(ctx, flagSelectSQLite+` WHERE id = ?`, id))
}

func (s *SQLiteStore) GetPendingFlag(ctx context.Context, siteIdentity string, family model.PortalFamily) (*model.RegistrationFlag, error) {
	return s.scanFlagRow(s.db.QueryRowContext(ctx,
		flagSelectSQLite+` WHERE site_identity = ? AND family = ? AND status = ?`,
		siteIdentity, string(family), string(model.FlagPending),
	))
}

const flagSelectSQLite = `SELECT id, site_identity, family, reason, description, priority, estimated_hours, status, resolution_notes, resolved_at, created_at, updated_at FROM registration_flags`

func (s *SQLiteStore) scanFlagRow(row *sql.Row) (*model.RegistrationFlag, error) {
	var f model.RegistrationFlag
	var fam, reason, status string
	var resolvedAt sql.NullTime
	err := row.Scan(&f.ID, &f.SiteIdentity, &fam, &reason, &f.Description, &f.Priority, &f.EstimatedHours, &status, &f.ResolutionNotes, &resolvedAt, &f.CreatedAt, &f.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan flag")
	}
	f.Family = model.PortalFamily(fam)
	f.Reason = model.FlagReason(reason)
	f.Status = model.FlagStatus(status)
	if resolvedAt.Valid {
		f.ResolvedAt = &resolvedAt.Time
	}
	return &f, nil
}

func (s *SQLiteStore) SaveFlag(ctx context.Context, flag *model.RegistrationFlag) error {
	if flag.ID == "" {
		flag.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if flag.CreatedAt.IsZero() {
		flag.CreatedAt = now
	}
	flag.UpdatedAt = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO registration_flags (id, site_identity, family, reason, description, priority, estimated_hours, status, resolution_notes, resolved_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			reason = excluded.reason,
			description = excluded.description,
			priority = excluded.priority,
			estimated_hours = excluded.estimated_hours,
			status = excluded.status,
			resolution_notes = excluded.resolution_notes,
			resolved_at = excluded.resolved_at,
			updated_at = excluded.updated_at`,
		flag.ID, flag.SiteIdentity, string(flag.Family), string(flag.Reason), flag.Description,
		flag.Priority, flag.EstimatedHours, string(flag.Status), flag.ResolutionNotes, flag.ResolvedAt,
		flag.CreatedAt, flag.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: save flag %s", flag.ID)
}

func (s *SQLiteStore) PendingFlags(ctx context.Context, limit int) ([]model.RegistrationFlag, error) {
	query := flagSelectSQLite + ` WHERE status = ? ORDER BY priority DESC, created_at`
	args := []any{string(model.FlagPending)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: pending flags")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.RegistrationFlag
	for rows.Next() {
		var f model.RegistrationFlag
		var fam, reason, status string
		var resolvedAt sql.NullTime
		if err := rows.Scan(&f.ID, &f.SiteIdentity, &fam, &reason, &f.Description, &f.Priority, &f.EstimatedHours, &status, &f.ResolutionNotes, &resolvedAt, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pending flag")
		}
		f.Family = model.PortalFamily(fam)
		f.Reason = model.FlagReason(reason)
		f.Status = model.FlagStatus(status)
		if resolvedAt.Valid {
			f.ResolvedAt = &resolvedAt.Time
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// --- Navigation patterns ---

const patternSelectSQLite = `SELECT id, name, family, template, total_attempts, successful_attempts, success_rate, confidence, proven_sites, active, created_at, updated_at FROM navigation_patterns`

func (s *SQLiteStore) GetPattern(ctx context.Context, id string) (*model.NavigationPattern, error) {
	row := s.db.QueryRowContext(ctx, patternSelectSQLite+` WHERE id = ?`, id)
	p, err := scanPatternSQLite(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get pattern %s", id)
	}
	return p, nil
}

func scanPatternSQLite(scan func(...any) error) (*model.NavigationPattern, error) {
	var p model.NavigationPattern
	var fam, tmplJSON, sitesJSON string
	err := scan(&p.ID, &p.Name, &fam, &tmplJSON, &p.TotalAttempts, &p.SuccessfulAttempts, &p.SuccessRate, &p.Confidence, &sitesJSON, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Family = model.PortalFamily(fam)
	if err := json.Unmarshal([]byte(tmplJSON), &p.Template); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal template")
	}
	if err := json.Unmarshal([]byte(sitesJSON), &p.ProvenSites); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal proven sites")
	}
	return &p, nil
}

func (s *SQLiteStore) PatternsByFamily(ctx context.Context, family model.PortalFamily) ([]model.NavigationPattern, error) {
	rows, err := s.db.QueryContext(ctx,
		patternSelectSQLite+` WHERE family = ? AND active = 1 ORDER BY success_rate DESC, total_attempts DESC`,
		string(family),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: patterns by family %s", family)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.NavigationPattern
	for rows.Next() {
		p, err := scanPatternSQLite(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pattern")
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SavePattern(ctx context.Context, pattern *model.NavigationPattern) error {
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
		return eris.Wrap(err, "sqlite: marshal template")
	}
	sites := pattern.ProvenSites
	if sites == nil {
		sites = []string{}
	}
	sitesJSON, err := json.Marshal(sites)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal proven sites")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO navigation_patterns (id, name, family, template, total_attempts, successful_attempts, success_rate, confidence, proven_sites, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			template = excluded.template,
			total_attempts = excluded.total_attempts,
			successful_attempts = excluded.successful_attempts,
			success_rate = excluded.success_rate,
			confidence = excluded.confidence,
			proven_sites = excluded.proven_sites,
			active = excluded.active,
			updated_at = excluded.updated_at`,
		pattern.ID, pattern.Name, string(pattern.Family), string(tmplJSON), pattern.TotalAttempts,
		pattern.SuccessfulAttempts, pattern.SuccessRate, pattern.Confidence, string(sitesJSON),
		pattern.Active, pattern.CreatedAt, pattern.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: save pattern %s", pattern.ID)
}

func (s *SQLiteStore) DeactivatePattern(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE navigation_patterns SET active = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	return eris.Wrapf(err, "sqlite: deactivate pattern %s", id)
}

// --- Extraction attempts ---

func (s *SQLiteStore) AppendAttempt(ctx context.Context, attempt *model.ExtractionAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO extraction_attempts (id, listing_id, run_id, site_profile_id, pattern_id, outcome, reason, documents_found, documents_downloaded, resolution_priority, elapsed_ms, cost_estimate, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		attempt.ID, attempt.ListingID, attempt.RunID, attempt.SiteProfileID, attempt.PatternID,
		string(attempt.Outcome), attempt.Reason, attempt.DocumentsFound, attempt.DocumentsDownloaded,
		attempt.ResolutionPriority, attempt.ElapsedMS, attempt.CostEstimate, attempt.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: append attempt for listing %s", attempt.ListingID)
}

func (s *SQLiteStore) AttemptsForListing(ctx context.Context, listingID string) ([]model.ExtractionAttempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, listing_id, run_id, site_profile_id, pattern_id, outcome, reason, documents_found, documents_downloaded, resolution_priority, elapsed_ms, cost_estimate, created_at
		 FROM extraction_attempts WHERE listing_id = ? ORDER BY created_at`,
		listingID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: attempts for listing %s", listingID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ExtractionAttempt
	for rows.Next() {
		var a model.ExtractionAttempt
		var outcome string
		if err := rows.Scan(&a.ID, &a.ListingID, &a.RunID, &a.SiteProfileID, &a.PatternID, &outcome, &a.Reason, &a.DocumentsFound, &a.DocumentsDownloaded, &a.ResolutionPriority, &a.ElapsedMS, &a.CostEstimate, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan attempt")
		}
		a.Outcome = model.Outcome(outcome)
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- Analysis records ---

func (s *SQLiteStore) AppendAnalysisRecord(ctx context.Context, rec *model.AnalysisRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO analysis_records (id, site_identity, analyzer, success, confidence, cost, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SiteIdentity, rec.Analyzer, rec.Success, rec.Confidence, rec.Cost, rec.Error, rec.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: append analysis record")
}

// --- Harvest runs ---

func (s *SQLiteStore) CreateHarvestRun(ctx context.Context) (*model.HarvestRun, error) {
	run := &model.HarvestRun{
		ID:        uuid.New().String(),
		Status:    "running",
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO harvest_runs (id, status, started_at) VALUES (?, ?, ?)`,
		run.ID, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: create harvest run")
	}
	return run, nil
}

func (s *SQLiteStore) CompleteHarvestRun(ctx context.Context, runID string, summary *model.HarvestSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE harvest_runs SET status = 'complete', summary = ?, completed_at = ? WHERE id = ?`,
		string(summaryJSON), time.Now().UTC(), runID,
	)
	return eris.Wrapf(err, "sqlite: complete harvest run %s", runID)
}

// --- Vault metadata ---

func (s *SQLiteStore) GetVaultSalt(ctx context.Context) ([]byte, error) {
	var salt []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM vault_meta WHERE key = 'kdf_salt'`).Scan(&salt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get vault salt")
	}
	return salt, nil
}

func (s *SQLiteStore) SetVaultSalt(ctx context.Context, salt []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vault_meta (key, value) VALUES ('kdf_salt', ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		salt,
	)
	return eris.Wrap(err, "sqlite: set vault salt")
}
