package cost

// Rates holds per-operation pricing configuration.
type Rates struct {
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	PageLoad  float64              `yaml:"page_load" mapstructure:"page_load"`
	Geocode   float64              `yaml:"geocode" mapstructure:"geocode"`
	Download  float64              `yaml:"download" mapstructure:"download"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// Calculator computes cost estimates for harvest operations. Page loads and
// downloads carry small flat rates so browser-heavy attempts count against
// the run budget even when no Claude call is made.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost for a Claude API call.
func (c *Calculator) Claude(model string, input, output int) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// PageLoads returns the flat cost for n browser page loads.
func (c *Calculator) PageLoads(n int) float64 {
	return float64(n) * c.rates.PageLoad
}

// GeocodeCall returns the flat cost per geocoder lookup.
func (c *Calculator) GeocodeCall() float64 {
	return c.rates.Geocode
}

// Downloads returns the flat cost for n document downloads.
func (c *Calculator) Downloads(n int) float64 {
	return float64(n) * c.rates.Download
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001":  {Input: 0.80, Output: 4.00},
			"claude-sonnet-4-5-20250929": {Input: 3.00, Output: 15.00},
		},
		PageLoad: 0.002,
		Geocode:  0.0,
		Download: 0.001,
	}
}
