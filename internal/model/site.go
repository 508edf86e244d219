package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// PortalFamily classifies which third-party bid-hosting platform a site uses.
type PortalFamily string

const (
	FamilyNone           PortalFamily = "none"
	FamilyUnknown        PortalFamily = "unknown"
	FamilyBidNet         PortalFamily = "bidnet"
	FamilyPlanetBids     PortalFamily = "planetbids"
	FamilyDemandStar     PortalFamily = "demandstar"
	FamilyBonfire        PortalFamily = "bonfire"
	FamilyPublicPurchase PortalFamily = "publicpurchase"
	FamilyOpenGov        PortalFamily = "opengov"
	FamilyIonWave        PortalFamily = "ionwave"
)

// KnownFamilies returns the portal families the classifier can detect.
// "none" and "unknown" are sentinel values, not detectable families.
func KnownFamilies() []PortalFamily {
	return []PortalFamily{
		FamilyBidNet,
		FamilyPlanetBids,
		FamilyDemandStar,
		FamilyBonfire,
		FamilyPublicPurchase,
		FamilyOpenGov,
		FamilyIonWave,
	}
}

// SiteProfile holds what the portal classifier has learned about one
// external site. One row per distinct site identity.
type SiteProfile struct {
	ID              string       `json:"id"`
	SiteIdentity    string       `json:"site_identity"`
	Family          PortalFamily `json:"family"`
	LoginURL        string       `json:"login_url,omitempty"`
	RegistrationURL string       `json:"registration_url,omitempty"`
	AuthRequired    bool         `json:"auth_required"`
	Confidence      float64      `json:"confidence"`
	Notes           string       `json:"notes,omitempty"`
	LastVerifiedAt  time.Time    `json:"last_verified_at"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`

	// FromCache marks a profile served from the store rather than a fresh
	// classification. Not persisted.
	FromCache bool `json:"from_cache,omitempty"`
}

// Validate enforces profile invariants before persistence.
func (p *SiteProfile) Validate() error {
	if p.SiteIdentity == "" {
		return eris.New("site profile: empty site identity")
	}
	if p.AuthRequired && p.Family == FamilyNone {
		return eris.New("site profile: auth required implies a portal family")
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return eris.Errorf("site profile: confidence %f out of range", p.Confidence)
	}
	return nil
}
