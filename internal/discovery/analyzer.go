// Package discovery produces navigation templates for sites not yet covered
// by a proven pattern. The analyzer behind it is a capability boundary: a
// heuristic over sampled page structure and a Claude-backed analyzer are
// interchangeable.
package discovery

import (
	"context"

	"github.com/sells-group/procure-cli/internal/model"
)

// Analysis is the analyzer's proposal for a site.
type Analysis struct {
	Template   model.Template
	Confidence float64
	Cost       float64
}

// Analyzer turns sampled pages into a navigation template.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, siteURL string, samples []SamplePage) (*Analysis, error)
}
