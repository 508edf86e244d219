package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/procure-cli/internal/config"
)

const samplePortalHTML = `<html><body>
<table><tr><td><a href="/bids/1">Road Resurfacing</a></td></tr></table>
<a href="/docs/spec.pdf">Specification</a>
<a href="#top">Back to top</a>
<form action="/login">
  <input type="email" name="email" id="email">
  <input type="password" name="password" id="password">
</form>
</body></html>`

func TestSampler_CollectsStructure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(samplePortalHTML)) //nolint:errcheck
	}))
	defer srv.Close()

	s := NewSampler(config.DiscoveryConfig{MaxSamplePages: 3, PageTimeoutSecs: 5})
	pages, err := s.Sample(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	require.Len(t, pages, 1)

	page := pages[0]
	assert.Equal(t, 1, page.TableCount)
	assert.True(t, page.HasLoginForm)
	assert.Contains(t, page.HTML, "Road Resurfacing")

	// Fragment links are skipped, absolute links kept.
	assert.Len(t, page.Links, 2)
	require.Len(t, page.DocLinks, 1)
	assert.Equal(t, srv.URL+"/docs/spec.pdf", page.DocLinks[0])

	require.Len(t, page.FormFields, 2)
	assert.Equal(t, "password", page.FormFields[1].Type)
}

func TestSampler_CapsPageCount(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte("<html><body>ok</body></html>")) //nolint:errcheck
	}))
	defer srv.Close()

	s := NewSampler(config.DiscoveryConfig{MaxSamplePages: 2, PageTimeoutSecs: 5})
	pages, err := s.Sample(context.Background(), srv.URL, []string{
		srv.URL + "/a", srv.URL + "/b", srv.URL + "/c",
	})
	require.NoError(t, err)
	assert.Len(t, pages, 2)
	assert.Equal(t, 2, requests)
}

func TestSampler_SkipsFailedPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("<html><body><table></table></body></html>")) //nolint:errcheck
	}))
	defer srv.Close()

	s := NewSampler(config.DiscoveryConfig{MaxSamplePages: 3, PageTimeoutSecs: 5})
	pages, err := s.Sample(context.Background(), srv.URL, []string{srv.URL + "/broken"})
	require.NoError(t, err)
	assert.Len(t, pages, 1)
}

func TestSampler_ErrorsWhenNothingSampled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewSampler(config.DiscoveryConfig{MaxSamplePages: 3, PageTimeoutSecs: 5})
	_, err := s.Sample(context.Background(), srv.URL, nil)
	require.Error(t, err)
}
