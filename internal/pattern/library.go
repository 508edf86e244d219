// Package pattern selects and maintains reusable navigation templates. A
// pattern accumulates success evidence over time and is never deleted, only
// deactivated.
package pattern

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/procure-cli/internal/model"
	"github.com/sells-group/procure-cli/internal/store"
)

// Library serves NavigationPatterns and records outcomes against them.
// Outcome recording is serialized per pattern so concurrent attempts never
// lose counter updates.
type Library struct {
	store store.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLibrary creates a Library.
func NewLibrary(st store.Store) *Library {
	return &Library{store: st, locks: make(map[string]*sync.Mutex)}
}

// Best returns the most promising pattern for a site. A pattern proven on
// this exact site wins; otherwise the family's best by success rate;
// otherwise a synthetic pattern wrapping the built-in default template. The
// synthetic pattern has an empty ID and is persisted only once an outcome is
// recorded against it.
func (l *Library) Best(ctx context.Context, siteIdentity string, family model.PortalFamily) (*model.NavigationPattern, error) {
	patterns, err := l.store.PatternsByFamily(ctx, family)
	if err != nil {
		return nil, err
	}

	// PatternsByFamily orders by success rate, so first proven wins.
	for i := range patterns {
		if patterns[i].ProvenOn(siteIdentity) {
			return &patterns[i], nil
		}
	}
	if len(patterns) > 0 {
		return &patterns[0], nil
	}

	return &model.NavigationPattern{
		Name:     fmt.Sprintf("builtin-%s", family),
		Family:   family,
		Template: DefaultTemplate(family),
		Active:   true,
	}, nil
}

// RecordOutcome updates a pattern's counters after an attempt. Built-in
// patterns are persisted on their first recorded outcome. Success adds the
// site to the proven set.
func (l *Library) RecordOutcome(ctx context.Context, p *model.NavigationPattern, siteIdentity string, success bool) error {
	unlock := l.lock(p.ID + string(p.Family) + p.Name)
	defer unlock()

	// Re-read persisted patterns so concurrent attempts fold into the same
	// counters instead of clobbering each other.
	if p.ID != "" {
		fresh, err := l.store.GetPattern(ctx, p.ID)
		if err != nil {
			return err
		}
		if fresh != nil {
			p = fresh
		}
	}

	p.RecordAttempt(success)
	if success {
		p.AddProvenSite(siteIdentity)
	}

	if err := l.store.SavePattern(ctx, p); err != nil {
		return err
	}

	zap.L().Debug("pattern outcome recorded",
		zap.String("pattern", p.Name),
		zap.String("family", string(p.Family)),
		zap.Bool("success", success),
		zap.Float64("success_rate", p.SuccessRate),
	)
	return nil
}

// Deactivate excludes a pattern from future selection without destroying its
// history.
func (l *Library) Deactivate(ctx context.Context, id string) error {
	return l.store.DeactivatePattern(ctx, id)
}

func (l *Library) lock(key string) func() {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
