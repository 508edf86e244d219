package model

import (
	"net/url"
	"strings"
	"time"
)

// ListingStatus represents the lifecycle state of a procurement listing.
type ListingStatus string

const (
	ListingStatusPending    ListingStatus = "pending"
	ListingStatusInProgress ListingStatus = "in_progress"
	ListingStatusCompleted  ListingStatus = "completed"
	ListingStatusFailed     ListingStatus = "failed"
)

// Listing is a single procurement opportunity ingested from the primary
// bidding board. The harvest core reads it and transitions its status but
// never mutates it structurally.
type Listing struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Agency    string        `json:"agency"`
	Location  string        `json:"location"`
	OriginURL string        `json:"origin_url"`
	Region    string        `json:"region,omitempty"`
	Status    ListingStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// SiteIdentity returns the normalized host of the listing's origin URL,
// which keys SiteProfiles, Credentials, and RegistrationFlags.
func (l Listing) SiteIdentity() string {
	return SiteIdentityFromURL(l.OriginURL)
}

// SiteIdentityFromURL normalizes a URL to its site identity (lowercased
// host with any "www." prefix stripped). Returns "" for unparseable input.
func SiteIdentityFromURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}
	return host
}
