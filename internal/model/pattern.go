package model

import "time"

// LoginSteps are the selectors driving a portal login form.
type LoginSteps struct {
	UsernameSelector string `json:"username_selector,omitempty"`
	PasswordSelector string `json:"password_selector,omitempty"`
	SubmitSelector   string `json:"submit_selector,omitempty"`
	SuccessSelector  string `json:"success_selector,omitempty"`
}

// ListingSteps are the selectors for traversing a portal's bid listing pages.
type ListingSteps struct {
	SearchPath         string `json:"search_path,omitempty"`
	RowSelector        string `json:"row_selector,omitempty"`
	TitleSelector      string `json:"title_selector,omitempty"`
	DetailLinkSelector string `json:"detail_link_selector,omitempty"`
	NextPageSelector   string `json:"next_page_selector,omitempty"`
}

// DocumentSteps are the selectors and filters for locating bid documents.
type DocumentSteps struct {
	SectionSelector string   `json:"section_selector,omitempty"`
	LinkSelector    string   `json:"link_selector,omitempty"`
	Extensions      []string `json:"extensions,omitempty"`
}

// Template is the selector/flow bundle a pattern or discovery run produces.
type Template struct {
	LoginPath string        `json:"login_path,omitempty"`
	Login     LoginSteps    `json:"login"`
	Listing   ListingSteps  `json:"listing"`
	Documents DocumentSteps `json:"documents"`
}

// Selectors returns every non-empty CSS selector in the template, in a
// stable order, for validation probing.
func (t Template) Selectors() []string {
	candidates := []string{
		t.Login.UsernameSelector,
		t.Login.PasswordSelector,
		t.Login.SubmitSelector,
		t.Listing.RowSelector,
		t.Listing.TitleSelector,
		t.Listing.DetailLinkSelector,
		t.Listing.NextPageSelector,
		t.Documents.SectionSelector,
		t.Documents.LinkSelector,
	}
	var out []string
	for _, s := range candidates {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// NavigationPattern is a reusable template scoped to a portal family,
// accumulating evidence from recorded attempt outcomes. Patterns are never
// deleted; deactivation excludes them from future selection.
type NavigationPattern struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"`
	Family             PortalFamily `json:"family"`
	Template           Template     `json:"template"`
	TotalAttempts      int          `json:"total_attempts"`
	SuccessfulAttempts int          `json:"successful_attempts"`
	SuccessRate        float64      `json:"success_rate"`
	Confidence         float64      `json:"confidence"`
	ProvenSites        []string     `json:"proven_sites"`
	Active             bool         `json:"active"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// ProvenOn reports whether the pattern has succeeded on the given site.
func (p *NavigationPattern) ProvenOn(siteIdentity string) bool {
	for _, s := range p.ProvenSites {
		if s == siteIdentity {
			return true
		}
	}
	return false
}

// AddProvenSite adds a site identity with set semantics.
func (p *NavigationPattern) AddProvenSite(siteIdentity string) {
	if siteIdentity == "" || p.ProvenOn(siteIdentity) {
		return
	}
	p.ProvenSites = append(p.ProvenSites, siteIdentity)
}

// RecordAttempt updates the evidence counters and recomputes the success
// rate. 0/0 is defined as 0.0.
func (p *NavigationPattern) RecordAttempt(success bool) {
	p.TotalAttempts++
	if success {
		p.SuccessfulAttempts++
	}
	if p.TotalAttempts == 0 {
		p.SuccessRate = 0
		return
	}
	p.SuccessRate = float64(p.SuccessfulAttempts) / float64(p.TotalAttempts)
}
