package model

import "time"

// CredentialStatus tracks whether a stored credential has been proven to work.
type CredentialStatus string

const (
	CredentialUnverified CredentialStatus = "unverified"
	CredentialVerified   CredentialStatus = "verified"
	CredentialFailed     CredentialStatus = "failed"
)

// BusinessRegistration is the vendor-registration metadata attached to a
// credential. Portals typically require it when creating an account.
type BusinessRegistration struct {
	LegalName    string `json:"legal_name,omitempty"`
	TaxID        string `json:"tax_id,omitempty"`
	ContactName  string `json:"contact_name,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
}

// Credential is a per-(site, portal family) login. The secret is sealed at
// rest; only the vault decrypts it, and only inside a verify/use operation.
type Credential struct {
	ID             string               `json:"id"`
	SiteIdentity   string               `json:"site_identity"`
	Family         PortalFamily         `json:"family"`
	Account        string               `json:"account"`
	Sealed         []byte               `json:"-"`
	Registration   BusinessRegistration `json:"registration"`
	Status         CredentialStatus     `json:"status"`
	FailureReason  string               `json:"failure_reason,omitempty"`
	LastVerifiedAt *time.Time           `json:"last_verified_at,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

// CredentialCount is one row of the vault summary aggregation.
type CredentialCount struct {
	Family PortalFamily     `json:"family"`
	Status CredentialStatus `json:"status"`
	Count  int              `json:"count"`
}
