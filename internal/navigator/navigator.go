// Package navigator drives a headless browser through portal pages. The
// engine and vault talk to the Navigator and Page interfaces so tests can
// substitute scripted fakes for a live browser.
package navigator

import (
	"context"
	"time"
)

// Element is a flattened view of a DOM element.
type Element struct {
	Text  string
	Attrs map[string]string
}

// Attr returns the named attribute or empty string.
func (e Element) Attr(name string) string {
	return e.Attrs[name]
}

// Page is a single browser tab.
type Page interface {
	// Navigate loads the URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) error

	// Content returns the current HTML of the page.
	Content(ctx context.Context) (string, error)

	// URL returns the current page URL after any redirects.
	URL(ctx context.Context) (string, error)

	// Find returns all elements matching the CSS selector. A selector with
	// no matches returns an empty slice, not an error.
	Find(ctx context.Context, selector string) ([]Element, error)

	// Fill types value into the first element matching the selector.
	Fill(ctx context.Context, selector, value string) error

	// Click clicks the first element matching the selector.
	Click(ctx context.Context, selector string) error

	// WaitVisible blocks until the selector matches a visible element or
	// the timeout elapses.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error

	Close() error
}

// Navigator owns a browser instance and opens pages against it.
type Navigator interface {
	Open(ctx context.Context) (Page, error)
	Close() error
}
