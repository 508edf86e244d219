// Package policy scores registration flags. The weights encode business
// judgment, so they load from an external YAML table and the compiled-in
// defaults are just a starting point.
package policy

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/procure-cli/internal/model"
)

// Policy holds the priority weights for registration flags.
type Policy struct {
	// BasePriority per flag reason.
	BasePriority map[string]int `yaml:"base_priority"`
	// FamilyBonus rewards portal families worth registering on because one
	// registration unlocks many sites.
	FamilyBonus map[string]int `yaml:"family_bonus"`
	// CityBonus rewards sites whose identity mentions a major city.
	CityBonus int `yaml:"city_bonus"`
	// MajorCities are matched as substrings of the site identity.
	MajorCities []string `yaml:"major_cities"`
	// EstimatedHours of manual effort per flag reason.
	EstimatedHours map[string]float64 `yaml:"estimated_hours"`
}

// Default returns the compiled-in policy table.
func Default() Policy {
	return Policy{
		BasePriority: map[string]int{
			string(model.FlagRegistrationNeeded): 50,
			string(model.FlagLoginFailed):        60,
			string(model.FlagManualFollowUp):     30,
		},
		FamilyBonus: map[string]int{
			string(model.FamilyBidNet):     20,
			string(model.FamilyPlanetBids): 20,
			string(model.FamilyDemandStar): 15,
			string(model.FamilyBonfire):    15,
			string(model.FamilyOpenGov):    10,
		},
		CityBonus:   10,
		MajorCities: []string{"losangeles", "lacity", "longbeach", "anaheim", "santaana", "irvine", "riverside", "sanbernardino"},
		EstimatedHours: map[string]float64{
			string(model.FlagRegistrationNeeded): 1.5,
			string(model.FlagLoginFailed):        0.5,
			string(model.FlagManualFollowUp):     1.0,
		},
	}
}

// Load reads a policy table from a YAML file. Missing sections fall back to
// defaults. An empty path returns the defaults.
func Load(path string) (Policy, error) {
	p := Default()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return p, eris.Wrapf(err, "policy: read %s", path)
	}

	var loaded Policy
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return p, eris.Wrapf(err, "policy: parse %s", path)
	}

	if len(loaded.BasePriority) > 0 {
		p.BasePriority = loaded.BasePriority
	}
	if len(loaded.FamilyBonus) > 0 {
		p.FamilyBonus = loaded.FamilyBonus
	}
	if loaded.CityBonus > 0 {
		p.CityBonus = loaded.CityBonus
	}
	if len(loaded.MajorCities) > 0 {
		p.MajorCities = loaded.MajorCities
	}
	if len(loaded.EstimatedHours) > 0 {
		p.EstimatedHours = loaded.EstimatedHours
	}
	return p, nil
}

// Priority computes the flag priority, clamped to [0, 100].
func (p Policy) Priority(reason model.FlagReason, siteIdentity string, family model.PortalFamily) int {
	score := p.BasePriority[string(reason)]
	score += p.FamilyBonus[string(family)]

	compact := strings.ReplaceAll(strings.ToLower(siteIdentity), ".", "")
	compact = strings.ReplaceAll(compact, "-", "")
	for _, city := range p.MajorCities {
		if strings.Contains(compact, city) {
			score += p.CityBonus
			break
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// Hours returns the estimated manual effort for a flag reason.
func (p Policy) Hours(reason model.FlagReason) float64 {
	return p.EstimatedHours[string(reason)]
}
