package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/procure-cli/internal/model"
)

func TestPriority(t *testing.T) {
	t.Parallel()
	p := Default()

	tests := []struct {
		name   string
		reason model.FlagReason
		site   string
		family model.PortalFamily
		want   int
	}{
		{
			name:   "base only",
			reason: model.FlagManualFollowUp,
			site:   "procurement.smalltown.gov",
			family: model.FamilyUnknown,
			want:   30,
		},
		{
			name:   "family bonus",
			reason: model.FlagRegistrationNeeded,
			site:   "vendors.demandstar.com",
			family: model.FamilyDemandStar,
			want:   65,
		},
		{
			name:   "city bonus matches through dots and dashes",
			reason: model.FlagRegistrationNeeded,
			site:   "bids.long-beach.gov",
			family: model.FamilyUnknown,
			want:   60,
		},
		{
			name:   "login failed with family and city",
			reason: model.FlagLoginFailed,
			site:   "pbsystem.planetbids.com/portal/anaheim",
			family: model.FamilyPlanetBids,
			want:   90,
		},
		{
			name:   "unknown reason scores zero base",
			reason: model.FlagReason("mystery"),
			site:   "example.gov",
			family: model.FamilyUnknown,
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, p.Priority(tt.reason, tt.site, tt.family))
		})
	}
}

func TestPriority_ClampsToHundred(t *testing.T) {
	t.Parallel()
	p := Default()
	p.BasePriority[string(model.FlagLoginFailed)] = 95
	p.CityBonus = 40

	got := p.Priority(model.FlagLoginFailed, "irvine.bidnetdirect.com", model.FamilyBidNet)
	assert.Equal(t, 100, got)
}

func TestPriority_CityBonusAppliedOnce(t *testing.T) {
	t.Parallel()
	p := Default()

	// Identity mentions two major cities; the bonus still counts once.
	with := p.Priority(model.FlagManualFollowUp, "longbeach-anaheim.regional.gov", model.FamilyUnknown)
	without := p.Priority(model.FlagManualFollowUp, "regional.gov", model.FamilyUnknown)
	assert.Equal(t, p.CityBonus, with-without)
}

func TestHours(t *testing.T) {
	t.Parallel()
	p := Default()

	assert.Equal(t, 1.5, p.Hours(model.FlagRegistrationNeeded))
	assert.Equal(t, 0.5, p.Hours(model.FlagLoginFailed))
	assert.Zero(t, p.Hours(model.FlagReason("mystery")))
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	t.Parallel()

	p, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), p)
}

func TestLoad_PartialFileKeepsDefaultSections(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_priority:
  registration-needed: 80
city_bonus: 25
`), 0o600))

	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 80, p.BasePriority[string(model.FlagRegistrationNeeded)])
	assert.Equal(t, 25, p.CityBonus)
	// Sections absent from the file keep the compiled-in values.
	assert.Equal(t, Default().FamilyBonus, p.FamilyBonus)
	assert.Equal(t, Default().EstimatedHours, p.EstimatedHours)
	assert.Equal(t, Default().MajorCities, p.MajorCities)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "policy: read")
}

func TestLoad_MalformedYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_priority: [not, a, map]"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "policy: parse")
}
