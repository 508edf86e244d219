package discovery

import (
	"context"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rotisserie/eris"

	"github.com/sells-group/procure-cli/internal/config"
)

// FormField describes one input element found on a sampled page.
type FormField struct {
	Type string
	Name string
	ID   string
}

// SamplePage holds the raw HTML and structural statistics for one fetched
// page.
type SamplePage struct {
	URL          string
	HTML         string
	Links        []string
	DocLinks     []string
	FormFields   []FormField
	TableCount   int
	HasLoginForm bool
}

var docExtensions = []string{".pdf", ".doc", ".docx", ".xls", ".xlsx", ".zip"}

// Sampler fetches a bounded number of pages from a site and collects
// structural statistics for the analyzer.
type Sampler struct {
	maxPages int
	timeout  time.Duration
}

// NewSampler creates a Sampler from discovery configuration.
func NewSampler(cfg config.DiscoveryConfig) *Sampler {
	maxPages := cfg.MaxSamplePages
	if maxPages <= 0 || maxPages > 3 {
		maxPages = 3
	}
	timeout := time.Duration(cfg.PageTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Sampler{maxPages: maxPages, timeout: timeout}
}

// Sample fetches the site URL plus optional sub-page URLs, capped at the
// configured maximum. A page that fails to fetch is skipped; Sample only
// errors when no page could be fetched at all.
func (s *Sampler) Sample(ctx context.Context, siteURL string, extraURLs []string) ([]SamplePage, error) {
	urls := append([]string{siteURL}, extraURLs...)
	if len(urls) > s.maxPages {
		urls = urls[:s.maxPages]
	}

	var pages []SamplePage
	var lastErr error
	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		page, err := s.fetchOne(u)
		if err != nil {
			lastErr = err
			continue
		}
		pages = append(pages, *page)
	}

	if len(pages) == 0 {
		if lastErr == nil {
			lastErr = eris.New("discovery: no pages sampled")
		}
		return nil, eris.Wrapf(lastErr, "discovery: sample %s", siteURL)
	}
	return pages, nil
}

func (s *Sampler) fetchOne(pageURL string) (*SamplePage, error) {
	sample := &SamplePage{URL: pageURL}

	c := colly.NewCollector(
		colly.UserAgent("Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(s.timeout)

	c.OnResponse(func(r *colly.Response) {
		sample.HTML = string(r.Body)
	})

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		href := e.Attr("href")
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		abs := e.Request.AbsoluteURL(href)
		if abs == "" {
			return
		}
		sample.Links = append(sample.Links, abs)
		lower := strings.ToLower(abs)
		for _, ext := range docExtensions {
			if strings.HasSuffix(lower, ext) {
				sample.DocLinks = append(sample.DocLinks, abs)
				break
			}
		}
	})

	c.OnHTML("input", func(e *colly.HTMLElement) {
		field := FormField{
			Type: e.Attr("type"),
			Name: e.Attr("name"),
			ID:   e.Attr("id"),
		}
		sample.FormFields = append(sample.FormFields, field)
		if field.Type == "password" {
			sample.HasLoginForm = true
		}
	})

	c.OnHTML("table", func(_ *colly.HTMLElement) {
		sample.TableCount++
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, eris.Wrapf(err, "discovery: fetch %s", pageURL)
	}
	c.Wait()

	return sample, nil
}
