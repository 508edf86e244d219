package model

import "time"

// Outcome is the closed taxonomy of extraction attempt results.
type Outcome string

const (
	OutcomeSuccess            Outcome = "success"
	OutcomeRegistrationNeeded Outcome = "portal-registration-needed"
	OutcomeNavigationFailed   Outcome = "navigation-failed"
	OutcomeAccessDenied       Outcome = "access-denied"
	OutcomeNoRFPFound         Outcome = "no-rfp-found"
	OutcomeTechnicalError     Outcome = "technical-error"
)

// AllOutcomes returns the full outcome taxonomy.
func AllOutcomes() []Outcome {
	return []Outcome{
		OutcomeSuccess,
		OutcomeRegistrationNeeded,
		OutcomeNavigationFailed,
		OutcomeAccessDenied,
		OutcomeNoRFPFound,
		OutcomeTechnicalError,
	}
}

// ExtractionAttempt is one full pass of the attempt engine against one
// listing. Immutable once written; retries append new rows.
type ExtractionAttempt struct {
	ID                  string    `json:"id"`
	ListingID           string    `json:"listing_id"`
	RunID               string    `json:"run_id"`
	SiteProfileID       string    `json:"site_profile_id,omitempty"`
	PatternID           string    `json:"pattern_id,omitempty"`
	Outcome             Outcome   `json:"outcome"`
	Reason              string    `json:"reason,omitempty"`
	DocumentsFound      int       `json:"documents_found"`
	DocumentsDownloaded int       `json:"documents_downloaded"`
	ResolutionPriority  int       `json:"resolution_priority"`
	ElapsedMS           int64     `json:"elapsed_ms"`
	CostEstimate        float64   `json:"cost_estimate"`
	CreatedAt           time.Time `json:"created_at"`
}

// AnalysisRecord logs one capability-discovery invocation, success or not,
// so its cost enters budget accounting either way.
type AnalysisRecord struct {
	ID           string    `json:"id"`
	SiteIdentity string    `json:"site_identity"`
	Analyzer     string    `json:"analyzer"`
	Success      bool      `json:"success"`
	Confidence   float64   `json:"confidence"`
	Cost         float64   `json:"cost"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// HarvestRun anchors one orchestrator invocation in the audit trail.
type HarvestRun struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	Summary     *HarvestSummary `json:"summary,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// HarvestSummary is the result object a harvest run always returns, even
// when every attempt failed.
type HarvestSummary struct {
	RunID         string         `json:"run_id"`
	Processed     int            `json:"processed"`
	Successes     int            `json:"successes"`
	Flagged       int            `json:"flagged"`
	Skipped       int            `json:"skipped"`
	FlagsByReason map[string]int `json:"flags_by_reason"`
	Outcomes      map[string]int `json:"outcomes"`
	TotalCost     float64        `json:"total_cost"`
	ElapsedMS     int64          `json:"elapsed_ms"`
}
