package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const matchedResponse = `{
	"result": {
		"addressMatches": [
			{
				"coordinates": {"x": -118.2437, "y": 34.0522},
				"matchedAddress": "200 N SPRING ST, LOS ANGELES, CA, 90012"
			}
		]
	}
}`

func TestGeocode_Matched(t *testing.T) {
	t.Parallel()

	var gotAddress, gotBenchmark string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAddress = r.URL.Query().Get("address")
		gotBenchmark = r.URL.Query().Get("benchmark")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(matchedResponse))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(WithBaseURL(srv.URL))
	res, err := client.Geocode(context.Background(), "200 N Spring St, Los Angeles, CA")
	require.NoError(t, err)

	assert.True(t, res.Matched)
	assert.InDelta(t, 34.0522, res.Latitude, 1e-6)
	assert.InDelta(t, -118.2437, res.Longitude, 1e-6)
	assert.Equal(t, "200 N SPRING ST, LOS ANGELES, CA, 90012", res.MatchedAddress)
	assert.Equal(t, "200 N Spring St, Los Angeles, CA", gotAddress)
	assert.Equal(t, "Public_AR_Current", gotBenchmark)
}

func TestGeocode_UnmatchedIsNotAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result": {"addressMatches": []}}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(WithBaseURL(srv.URL))
	res, err := client.Geocode(context.Background(), "Nowhere In Particular")
	require.NoError(t, err)
	assert.False(t, res.Matched)
}

func TestGeocode_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.Geocode(context.Background(), "anywhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestGeocode_MalformedJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.Geocode(context.Background(), "anywhere")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse response")
}

func TestGeocode_ContextCancelled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(matchedResponse))
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.Geocode(ctx, "anywhere")
	require.Error(t, err)
}

func TestGeocode_RateLimitAppliesAcrossCalls(t *testing.T) {
	t.Parallel()

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"result": {"addressMatches": []}}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClient(WithBaseURL(srv.URL), WithRateLimit(1000))
	for i := 0; i < 3; i++ {
		_, err := client.Geocode(context.Background(), "somewhere")
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls)
}
