package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/sells-group/procure-cli/internal/model"
)

// HeuristicAnalyzer derives a template from sampled page structure without
// any external call. Costs nothing, so it is the default analyzer.
type HeuristicAnalyzer struct{}

// NewHeuristicAnalyzer creates a HeuristicAnalyzer.
func NewHeuristicAnalyzer() *HeuristicAnalyzer {
	return &HeuristicAnalyzer{}
}

func (a *HeuristicAnalyzer) Name() string { return "heuristic" }

// Analyze builds a template from the sampled pages. Confidence reflects how
// much structure the samples actually showed.
func (a *HeuristicAnalyzer) Analyze(_ context.Context, _ string, samples []SamplePage) (*Analysis, error) {
	tmpl := model.Template{
		Listing: model.ListingSteps{
			RowSelector:        "table tbody tr",
			TitleSelector:      "a",
			DetailLinkSelector: "a[href]",
		},
		Documents: model.DocumentSteps{
			SectionSelector: "body",
			LinkSelector:    "a[href]",
			Extensions:      append([]string(nil), docExtensions...),
		},
	}

	confidence := 0.2
	hasTables := false
	hasDocs := false

	for _, s := range samples {
		if s.TableCount > 0 {
			hasTables = true
		}
		if len(s.DocLinks) > 0 {
			hasDocs = true
		}
		if s.HasLoginForm {
			tmpl.Login = loginStepsFromFields(s.FormFields)
		}
	}

	if hasTables {
		confidence += 0.2
	} else {
		// No tables: fall back to list items for listing rows.
		tmpl.Listing.RowSelector = "li, .row, article"
	}
	if hasDocs {
		confidence += 0.2
	}
	if tmpl.Login.PasswordSelector != "" {
		confidence += 0.1
	}

	return &Analysis{Template: tmpl, Confidence: confidence, Cost: 0}, nil
}

// loginStepsFromFields picks selectors for the first password input and the
// text/email input nearest to it.
func loginStepsFromFields(fields []FormField) model.LoginSteps {
	steps := model.LoginSteps{
		SubmitSelector: "button[type='submit'], input[type='submit']",
	}
	for _, f := range fields {
		sel := fieldSelector(f)
		if sel == "" {
			continue
		}
		switch f.Type {
		case "password":
			if steps.PasswordSelector == "" {
				steps.PasswordSelector = sel
			}
		case "text", "email", "":
			if steps.UsernameSelector == "" && looksLikeUsername(f) {
				steps.UsernameSelector = sel
			}
		}
	}
	if steps.UsernameSelector == "" {
		steps.UsernameSelector = "input[type='text'], input[type='email']"
	}
	return steps
}

func fieldSelector(f FormField) string {
	if f.ID != "" {
		return "#" + f.ID
	}
	if f.Name != "" {
		return fmt.Sprintf("input[name='%s']", f.Name)
	}
	return ""
}

func looksLikeUsername(f FormField) bool {
	probe := strings.ToLower(f.Name + " " + f.ID)
	for _, w := range []string{"user", "email", "login", "account"} {
		if strings.Contains(probe, w) {
			return true
		}
	}
	return false
}
