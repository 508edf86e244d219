package discovery

import (
	"context"

	"github.com/sells-group/procure-cli/internal/model"
	"github.com/sells-group/procure-cli/internal/navigator"
)

// Validation records per-selector hits from probing a template against the
// live site.
type Validation struct {
	Score   float64
	Hits    map[string]bool
	Checked int
}

// ValidateTemplate probes every selector in the template against the page.
// Score is (selectors with at least one match) / (selectors checked). An
// empty template scores zero.
func ValidateTemplate(ctx context.Context, page navigator.Page, tmpl model.Template) Validation {
	selectors := tmpl.Selectors()
	v := Validation{Hits: make(map[string]bool, len(selectors))}

	for _, sel := range selectors {
		if sel == "" {
			continue
		}
		v.Checked++
		els, err := page.Find(ctx, sel)
		hit := err == nil && len(els) > 0
		v.Hits[sel] = hit
		if hit {
			v.Score++
		}
	}

	if v.Checked > 0 {
		v.Score /= float64(v.Checked)
	}
	return v
}
