// Package engine runs the extraction state machine for a single listing:
// portal classification, credential resolution, template selection, document
// search and download. Every terminal state writes exactly one attempt row
// and no failure ever escapes as an error.
package engine

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/sells-group/procure-cli/internal/cost"
	"github.com/sells-group/procure-cli/internal/discovery"
	"github.com/sells-group/procure-cli/internal/docstore"
	"github.com/sells-group/procure-cli/internal/model"
	"github.com/sells-group/procure-cli/internal/navigator"
	"github.com/sells-group/procure-cli/internal/policy"
	"github.com/sells-group/procure-cli/internal/store"
)

// SiteClassifier resolves SiteProfiles, from cache or a live page.
type SiteClassifier interface {
	Classify(ctx context.Context, siteIdentity, siteURL string) (*model.SiteProfile, error)
}

// CredentialSource retrieves decrypted credentials.
type CredentialSource interface {
	Get(ctx context.Context, siteIdentity string, family model.PortalFamily) (*model.Credential, string, error)
}

// CredentialVerifier drives a live login to check a credential.
type CredentialVerifier interface {
	Verify(ctx context.Context, cred *model.Credential, secret, loginURL string, steps model.LoginSteps) model.CredentialStatus
}

// PatternSource selects patterns and records outcomes against them.
type PatternSource interface {
	Best(ctx context.Context, siteIdentity string, family model.PortalFamily) (*model.NavigationPattern, error)
	RecordOutcome(ctx context.Context, p *model.NavigationPattern, siteIdentity string, success bool) error
}

// TemplateDiscoverer is the capability-discovery boundary.
type TemplateDiscoverer interface {
	Discover(ctx context.Context, siteIdentity, siteURL string, sampleURLs []string) (*discovery.Result, error)
}

// DocumentDownloader fetches one document to local storage.
type DocumentDownloader interface {
	Download(ctx context.Context, listingID, docURL string) (string, error)
}

// Options tune engine behavior.
type Options struct {
	// PatternMinRate is the success rate below which a stored pattern is
	// considered inadequate and discovery is consulted.
	PatternMinRate float64
	// MaxDocuments caps downloads per listing. Zero means no cap.
	MaxDocuments int
	// KeywordMatchThreshold is the fraction of listing title keywords that
	// must appear on the portal page to confirm it is the same listing.
	// Zero disables the check.
	KeywordMatchThreshold float64
}

// Engine executes extraction attempts. All collaborators are injected; the
// engine holds no ambient state beyond the flag locks.
type Engine struct {
	store      store.Store
	classifier SiteClassifier
	creds      CredentialSource
	verifier   CredentialVerifier
	patterns   PatternSource
	discoverer TemplateDiscoverer
	nav        navigator.Navigator
	docs       DocumentDownloader
	policy     policy.Policy
	calc       *cost.Calculator
	opts       Options

	flags *flagUpserter
}

// New creates an Engine.
func New(
	st store.Store,
	classifier SiteClassifier,
	creds CredentialSource,
	verifier CredentialVerifier,
	patterns PatternSource,
	discoverer TemplateDiscoverer,
	nav navigator.Navigator,
	docs DocumentDownloader,
	pol policy.Policy,
	calc *cost.Calculator,
	opts Options,
) *Engine {
	if opts.PatternMinRate <= 0 {
		opts.PatternMinRate = 0.5
	}
	return &Engine{
		store:      st,
		classifier: classifier,
		creds:      creds,
		verifier:   verifier,
		patterns:   patterns,
		discoverer: discoverer,
		nav:        nav,
		docs:       docs,
		policy:     pol,
		calc:       calc,
		opts:       opts,
		flags:      newFlagUpserter(st, pol),
	}
}

// Attempt runs the state machine for one listing and returns the terminal
// attempt record. It never returns an error: any unhandled failure becomes a
// technical-error outcome.
func (e *Engine) Attempt(ctx context.Context, listing model.Listing, runID string) *model.ExtractionAttempt {
	started := time.Now()
	attempt := &model.ExtractionAttempt{
		ListingID: listing.ID,
		RunID:     runID,
	}

	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("attempt panicked",
				zap.String("listing", listing.ID),
				zap.Any("panic", r),
			)
			attempt.Outcome = model.OutcomeTechnicalError
			attempt.Reason = "internal panic during attempt"
		}
		attempt.ElapsedMS = time.Since(started).Milliseconds()
		e.finish(ctx, listing, attempt)
	}()

	e.run(ctx, listing, attempt)
	return attempt
}

// run drives the state transitions, setting attempt.Outcome at the terminal
// state.
func (e *Engine) run(ctx context.Context, listing model.Listing, attempt *model.ExtractionAttempt) {
	siteIdentity := listing.SiteIdentity()
	if siteIdentity == "" {
		attempt.Outcome = model.OutcomeTechnicalError
		attempt.Reason = "listing has no usable origin URL"
		return
	}

	// portal-classified
	profile, err := e.classifier.Classify(ctx, siteIdentity, listing.OriginURL)
	if err != nil {
		attempt.Outcome = model.OutcomeNavigationFailed
		attempt.Reason = "site classification failed: " + err.Error()
		return
	}
	attempt.SiteProfileID = profile.ID
	if !profile.FromCache {
		attempt.CostEstimate += e.calc.PageLoads(1)
	}

	// auth-resolved
	if profile.AuthRequired {
		if done := e.resolveAuth(ctx, listing, profile, attempt); done {
			return
		}
	}

	// template-ready
	pat, discoveryCost := e.resolveTemplate(ctx, siteIdentity, listing.OriginURL, profile)
	attempt.CostEstimate += discoveryCost
	if pat == nil {
		attempt.Outcome = model.OutcomeTechnicalError
		attempt.Reason = "no navigation template available"
		return
	}
	attempt.PatternID = pat.ID

	// searching-documents
	e.searchDocuments(ctx, listing, profile, pat, attempt)
}

// resolveAuth handles the credentialed branch. Returns true when the attempt
// reached a terminal state.
func (e *Engine) resolveAuth(ctx context.Context, listing model.Listing, profile *model.SiteProfile, attempt *model.ExtractionAttempt) bool {
	siteIdentity := listing.SiteIdentity()

	cred, secret, err := e.creds.Get(ctx, siteIdentity, profile.Family)
	if err != nil {
		attempt.Outcome = model.OutcomeTechnicalError
		attempt.Reason = "credential lookup failed: " + err.Error()
		return true
	}

	if cred == nil {
		flag := e.flags.upsert(ctx, siteIdentity, profile.Family, model.FlagRegistrationNeeded,
			"site requires registration and no credential is stored")
		attempt.Outcome = model.OutcomeRegistrationNeeded
		attempt.Reason = "no credential for " + siteIdentity
		if flag != nil {
			attempt.ResolutionPriority = flag.Priority
		}
		return true
	}

	if cred.Status != model.CredentialVerified {
		pat, _ := e.patterns.Best(ctx, siteIdentity, profile.Family)
		var steps model.LoginSteps
		if pat != nil {
			steps = pat.Template.Login
		}
		loginURL := profile.LoginURL
		if loginURL == "" && pat != nil && pat.Template.LoginPath != "" {
			loginURL = joinSitePath(listing.OriginURL, pat.Template.LoginPath)
		}

		attempt.CostEstimate += e.calc.PageLoads(1)
		status := e.verifier.Verify(ctx, cred, secret, loginURL, steps)
		if status != model.CredentialVerified {
			flag := e.flags.upsert(ctx, siteIdentity, profile.Family, model.FlagLoginFailed,
				"stored credential failed verification: "+cred.FailureReason)
			attempt.Outcome = model.OutcomeRegistrationNeeded
			attempt.Reason = "login failed"
			if flag != nil {
				attempt.ResolutionPriority = flag.Priority
			}
			return true
		}
	}
	return false
}

// resolveTemplate picks the best stored pattern, consulting discovery when
// the stored evidence is inadequate. Discovery cost is billed even when it
// fails.
func (e *Engine) resolveTemplate(ctx context.Context, siteIdentity, siteURL string, profile *model.SiteProfile) (*model.NavigationPattern, float64) {
	pat, err := e.patterns.Best(ctx, siteIdentity, profile.Family)
	if err != nil {
		pat = nil
	}

	if pat != nil && e.patternAdequate(pat, siteIdentity) {
		return pat, 0
	}

	result, err := e.discoverer.Discover(ctx, siteIdentity, siteURL, nil)
	if err != nil {
		var spent float64
		if result != nil {
			spent = result.Cost
		}
		// Discovery failed: fall back to whatever the library offered.
		return pat, spent
	}

	discovered := &model.NavigationPattern{
		Name:       "discovered-" + siteIdentity,
		Family:     profile.Family,
		Template:   result.Template,
		Confidence: result.Confidence,
		Active:     true,
	}
	return discovered, result.Cost
}

func (e *Engine) patternAdequate(pat *model.NavigationPattern, siteIdentity string) bool {
	if pat.ProvenOn(siteIdentity) {
		return true
	}
	return pat.TotalAttempts > 0 && pat.SuccessRate >= e.opts.PatternMinRate
}

// searchDocuments applies the template to the listing page and downloads
// what it finds.
func (e *Engine) searchDocuments(ctx context.Context, listing model.Listing, profile *model.SiteProfile, pat *model.NavigationPattern, attempt *model.ExtractionAttempt) {
	page, err := e.nav.Open(ctx)
	if err != nil {
		attempt.Outcome = model.OutcomeTechnicalError
		attempt.Reason = "browser unavailable: " + err.Error()
		return
	}
	defer page.Close() //nolint:errcheck

	if err := page.Navigate(ctx, listing.OriginURL); err != nil {
		attempt.Outcome = model.OutcomeNavigationFailed
		attempt.Reason = "page load failed: " + err.Error()
		e.recordPatternOutcome(ctx, pat, listing.SiteIdentity(), false)
		return
	}
	attempt.CostEstimate += e.calc.PageLoads(1)

	if e.opts.KeywordMatchThreshold > 0 {
		content, cerr := page.Content(ctx)
		if cerr == nil && content != "" && !listingConfirmed(listing.Title, content, e.opts.KeywordMatchThreshold) {
			attempt.Outcome = model.OutcomeNoRFPFound
			attempt.Reason = "page reached but listing title keywords not found"
			e.recordPatternOutcome(ctx, pat, listing.SiteIdentity(), false)
			return
		}
	}

	docURLs, err := e.collectDocumentLinks(ctx, page, listing.OriginURL, pat.Template.Documents)
	if err != nil {
		attempt.Outcome = model.OutcomeNavigationFailed
		attempt.Reason = "document selector failed: " + err.Error()
		e.recordPatternOutcome(ctx, pat, listing.SiteIdentity(), false)
		return
	}

	attempt.DocumentsFound = len(docURLs)
	if len(docURLs) == 0 {
		attempt.Outcome = model.OutcomeNoRFPFound
		attempt.Reason = "page reached but no document links matched"
		e.recordPatternOutcome(ctx, pat, listing.SiteIdentity(), false)
		return
	}

	if e.opts.MaxDocuments > 0 && len(docURLs) > e.opts.MaxDocuments {
		docURLs = docURLs[:e.opts.MaxDocuments]
	}

	denied := false
	for _, docURL := range docURLs {
		if _, err := e.docs.Download(ctx, listing.ID, docURL); err != nil {
			if errors.Is(err, docstore.ErrAccessDenied) {
				denied = true
			}
			zap.L().Warn("document download failed",
				zap.String("listing", listing.ID),
				zap.String("url", docURL),
				zap.Error(err),
			)
			continue
		}
		attempt.DocumentsDownloaded++
	}
	attempt.CostEstimate += e.calc.Downloads(len(docURLs))

	switch {
	case attempt.DocumentsDownloaded > 0:
		attempt.Outcome = model.OutcomeSuccess
		e.recordPatternOutcome(ctx, pat, listing.SiteIdentity(), true)
		e.touchProfile(ctx, profile)
	case denied:
		attempt.Outcome = model.OutcomeAccessDenied
		attempt.Reason = "document downloads rejected"
	default:
		attempt.Outcome = model.OutcomeNavigationFailed
		attempt.Reason = "all document downloads failed"
		e.recordPatternOutcome(ctx, pat, listing.SiteIdentity(), false)
	}
}

// collectDocumentLinks finds document URLs on the current page, preferring
// the template's document section and falling back to its link selector.
func (e *Engine) collectDocumentLinks(ctx context.Context, page navigator.Page, baseURL string, steps model.DocumentSteps) ([]string, error) {
	selector := steps.LinkSelector
	if selector == "" {
		selector = "a[href]"
	}
	elements, err := page.Find(ctx, selector)
	if err != nil {
		return nil, err
	}

	extensions := steps.Extensions
	if len(extensions) == 0 {
		extensions = []string{".pdf", ".doc", ".docx", ".xls", ".xlsx", ".zip"}
	}

	seen := make(map[string]bool)
	var out []string
	for _, el := range elements {
		href := el.Attr("href")
		if href == "" {
			continue
		}
		abs := absoluteURL(baseURL, href)
		if abs == "" || seen[abs] {
			continue
		}
		lower := strings.ToLower(abs)
		for _, ext := range extensions {
			if strings.HasSuffix(lower, ext) || strings.Contains(lower, ext+"?") {
				seen[abs] = true
				out = append(out, abs)
				break
			}
		}
	}
	return out, nil
}

func (e *Engine) recordPatternOutcome(ctx context.Context, pat *model.NavigationPattern, siteIdentity string, success bool) {
	if err := e.patterns.RecordOutcome(ctx, pat, siteIdentity, success); err != nil {
		zap.L().Error("record pattern outcome", zap.String("pattern", pat.Name), zap.Error(err))
	}
}

func (e *Engine) touchProfile(ctx context.Context, profile *model.SiteProfile) {
	profile.LastVerifiedAt = time.Now().UTC()
	if err := e.store.UpsertSiteProfile(ctx, profile); err != nil {
		zap.L().Error("update site profile", zap.String("site", profile.SiteIdentity), zap.Error(err))
	}
}

// finish writes the attempt row and moves the listing's status.
func (e *Engine) finish(ctx context.Context, listing model.Listing, attempt *model.ExtractionAttempt) {
	if err := e.store.AppendAttempt(ctx, attempt); err != nil {
		zap.L().Error("append attempt", zap.String("listing", listing.ID), zap.Error(err))
	}

	status := model.ListingStatusFailed
	if attempt.Outcome == model.OutcomeSuccess {
		status = model.ListingStatusCompleted
	}
	if err := e.store.UpdateListingStatus(ctx, listing.ID, status); err != nil {
		zap.L().Error("update listing status", zap.String("listing", listing.ID), zap.Error(err))
	}

	zap.L().Info("attempt finished",
		zap.String("listing", listing.ID),
		zap.String("outcome", string(attempt.Outcome)),
		zap.Int("documents_found", attempt.DocumentsFound),
		zap.Int("documents_downloaded", attempt.DocumentsDownloaded),
		zap.Float64("cost", attempt.CostEstimate),
		zap.Int64("elapsed_ms", attempt.ElapsedMS),
	)
}

// listingConfirmed reports whether enough of the title's keywords appear in
// the page content. Short words carry no signal and are skipped; a title with
// no usable keywords confirms trivially.
func listingConfirmed(title, content string, threshold float64) bool {
	lower := strings.ToLower(content)
	total, matched := 0, 0
	for _, word := range strings.FieldsFunc(strings.ToLower(title), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(word) < 4 {
			continue
		}
		total++
		if strings.Contains(lower, word) {
			matched++
		}
	}
	if total == 0 {
		return true
	}
	return float64(matched)/float64(total) >= threshold
}

// joinSitePath resolves a template path against the listing's origin.
func joinSitePath(originURL, p string) string {
	u, err := url.Parse(originURL)
	if err != nil {
		return p
	}
	u.Path = p
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func absoluteURL(baseURL, href string) string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
