package model

import "time"

// FlagReason is the closed set of reasons a registration flag exists.
type FlagReason string

const (
	FlagRegistrationNeeded FlagReason = "registration-needed"
	FlagLoginFailed        FlagReason = "login-failed"
	FlagManualFollowUp     FlagReason = "manual-follow-up"
)

// FlagStatus is the lifecycle of a registration flag.
type FlagStatus string

const (
	FlagPending   FlagStatus = "pending"
	FlagResolved  FlagStatus = "resolved"
	FlagAbandoned FlagStatus = "abandoned"
)

// RegistrationFlag marks a site that needs manual human action before
// automated access is possible. At most one pending flag exists per
// (site identity, portal family); re-flagging updates the open flag.
type RegistrationFlag struct {
	ID              string       `json:"id"`
	SiteIdentity    string       `json:"site_identity"`
	Family          PortalFamily `json:"family"`
	Reason          FlagReason   `json:"reason"`
	Description     string       `json:"description"`
	Priority        int          `json:"priority"` // 0-100
	EstimatedHours  float64      `json:"estimated_hours"`
	Status          FlagStatus   `json:"status"`
	ResolutionNotes string       `json:"resolution_notes,omitempty"`
	ResolvedAt      *time.Time   `json:"resolved_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}
