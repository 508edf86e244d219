package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClaude(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(DefaultRates())

	tests := []struct {
		name   string
		model  string
		input  int
		output int
		want   float64
	}{
		{
			name:   "haiku",
			model:  "claude-haiku-4-5-20251001",
			input:  10_000,
			output: 2_000,
			want:   10_000.0/1e6*0.80 + 2_000.0/1e6*4.00,
		},
		{
			name:   "sonnet",
			model:  "claude-sonnet-4-5-20250929",
			input:  50_000,
			output: 5_000,
			want:   50_000.0/1e6*3.00 + 5_000.0/1e6*15.00,
		},
		{
			name:  "unknown model costs nothing",
			model: "claude-instant-1",
			input: 10_000,
			want:  0,
		},
		{
			name:  "zero tokens",
			model: "claude-haiku-4-5-20251001",
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, calc.Claude(tt.model, tt.input, tt.output), 1e-9)
		})
	}
}

func TestFlatRates(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(DefaultRates())

	assert.InDelta(t, 0.002, calc.PageLoads(1), 1e-9)
	assert.InDelta(t, 0.010, calc.PageLoads(5), 1e-9)
	assert.Zero(t, calc.PageLoads(0))

	assert.InDelta(t, 0.003, calc.Downloads(3), 1e-9)
	assert.Zero(t, calc.Downloads(0))

	// Nominatim lookups are free by default.
	assert.Zero(t, calc.GeocodeCall())
}

func TestCustomRates(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(Rates{
		Anthropic: map[string]ModelRate{"test-model": {Input: 1.00, Output: 2.00}},
		PageLoad:  0.01,
		Geocode:   0.005,
		Download:  0.02,
	})

	assert.InDelta(t, 1.0+2.0, calc.Claude("test-model", 1_000_000, 1_000_000), 1e-9)
	assert.InDelta(t, 0.02, calc.PageLoads(2), 1e-9)
	assert.InDelta(t, 0.005, calc.GeocodeCall(), 1e-9)
	assert.InDelta(t, 0.04, calc.Downloads(2), 1e-9)
}
