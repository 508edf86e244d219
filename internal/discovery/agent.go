package discovery

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/procure-cli/internal/config"
	"github.com/sells-group/procure-cli/internal/model"
	"github.com/sells-group/procure-cli/internal/navigator"
	"github.com/sells-group/procure-cli/internal/store"
)

// Result is a discovered template with its validation evidence.
type Result struct {
	Template        model.Template
	Confidence      float64
	Cost            float64
	Validated       bool
	ValidationScore float64
}

// PageSampler collects pages and structural statistics from a site.
type PageSampler interface {
	Sample(ctx context.Context, siteURL string, extraURLs []string) ([]SamplePage, error)
}

// Agent samples a site, asks the analyzer for a template, and validates the
// proposal against the live page. Every invocation is recorded as an
// analysis record with its cost, success or failure.
type Agent struct {
	sampler   PageSampler
	analyzer  Analyzer
	nav       navigator.Navigator
	store     store.Store
	threshold float64
}

// NewAgent creates an Agent.
func NewAgent(sampler PageSampler, analyzer Analyzer, nav navigator.Navigator, st store.Store, cfg config.DiscoveryConfig) *Agent {
	threshold := cfg.ValidationThreshold
	if threshold <= 0 {
		threshold = 0.5
	}
	return &Agent{
		sampler:   sampler,
		analyzer:  analyzer,
		nav:       nav,
		store:     st,
		threshold: threshold,
	}
}

// Discover produces a template for the site. A validation score below the
// threshold marks the result unvalidated but still returns it so the caller
// can try it once.
func (a *Agent) Discover(ctx context.Context, siteIdentity, siteURL string, sampleURLs []string) (*Result, error) {
	samples, err := a.sampler.Sample(ctx, siteURL, sampleURLs)
	if err != nil {
		a.record(ctx, siteIdentity, false, 0, 0, err)
		return &Result{}, err
	}

	analysis, err := a.analyzer.Analyze(ctx, siteURL, samples)
	if err != nil {
		// The analyzer may have spent money before failing. The caller
		// still owes that cost.
		var cost float64
		if analysis != nil {
			cost = analysis.Cost
		}
		a.record(ctx, siteIdentity, false, 0, cost, err)
		return &Result{Cost: cost}, err
	}

	result := &Result{
		Template:   analysis.Template,
		Confidence: analysis.Confidence,
		Cost:       analysis.Cost,
	}

	result.ValidationScore = a.validate(ctx, siteURL, analysis.Template)
	result.Validated = result.ValidationScore >= a.threshold

	a.record(ctx, siteIdentity, true, analysis.Confidence, analysis.Cost, nil)

	zap.L().Info("template discovered",
		zap.String("site", siteIdentity),
		zap.String("analyzer", a.analyzer.Name()),
		zap.Float64("confidence", result.Confidence),
		zap.Float64("validation_score", result.ValidationScore),
		zap.Bool("validated", result.Validated),
		zap.Float64("cost", result.Cost),
	)
	return result, nil
}

func (a *Agent) validate(ctx context.Context, siteURL string, tmpl model.Template) float64 {
	page, err := a.nav.Open(ctx)
	if err != nil {
		return 0
	}
	defer page.Close() //nolint:errcheck

	if err := page.Navigate(ctx, siteURL); err != nil {
		return 0
	}
	return ValidateTemplate(ctx, page, tmpl).Score
}

func (a *Agent) record(ctx context.Context, siteIdentity string, success bool, confidence, cost float64, cause error) {
	rec := &model.AnalysisRecord{
		SiteIdentity: siteIdentity,
		Analyzer:     a.analyzer.Name(),
		Success:      success,
		Confidence:   confidence,
		Cost:         cost,
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	if err := a.store.AppendAnalysisRecord(ctx, rec); err != nil {
		zap.L().Error("append analysis record", zap.String("site", siteIdentity), zap.Error(err))
	}
}
