// Package docstore downloads procurement documents to local storage.
package docstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/procure-cli/internal/config"
	"github.com/sells-group/procure-cli/internal/resilience"
)

// ErrAccessDenied marks a download rejected with 401/403, which the attempt
// engine maps to an access-denied outcome.
var ErrAccessDenied = errors.New("docstore: access denied")

// ErrTooLarge marks a document over the configured size limit.
var ErrTooLarge = errors.New("docstore: document exceeds size limit")

// Downloader fetches documents over HTTP with a size cap and retries on
// transient failures.
type Downloader struct {
	dir      string
	maxBytes int64
	client   *http.Client
	retry    resilience.RetryConfig
}

// NewDownloader creates a Downloader rooted at the configured directory.
func NewDownloader(cfg config.DocsConfig) *Downloader {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxBytes := cfg.MaxFileBytes
	if maxBytes <= 0 {
		maxBytes = 50 * 1024 * 1024
	}
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("docstore", "download")

	return &Downloader{
		dir:      cfg.Dir,
		maxBytes: maxBytes,
		client:   &http.Client{Timeout: timeout},
		retry:    retry,
	}
}

// Download fetches the document and writes it under dir/listingID/. Returns
// the local path.
func (d *Downloader) Download(ctx context.Context, listingID, docURL string) (string, error) {
	return resilience.DoVal(ctx, d.retry, func(ctx context.Context) (string, error) {
		return d.fetch(ctx, listingID, docURL)
	})
}

func (d *Downloader) fetch(ctx context.Context, listingID, docURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return "", eris.Wrapf(err, "docstore: build request %s", docURL)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", eris.Wrapf(err, "docstore: fetch %s", docURL)
	}
	defer resp.Body.Close() //nolint:errcheck

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", eris.Wrapf(ErrAccessDenied, "docstore: %s returned %d", docURL, resp.StatusCode)
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return "", resilience.NewTransientError(
			eris.Errorf("docstore: %s returned %d", docURL, resp.StatusCode),
			resp.StatusCode,
		)
	case resp.StatusCode != http.StatusOK:
		return "", eris.Errorf("docstore: %s returned %d", docURL, resp.StatusCode)
	}

	targetDir := filepath.Join(d.dir, listingID)
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", eris.Wrapf(err, "docstore: create dir %s", targetDir)
	}
	target := filepath.Join(targetDir, fileNameFor(docURL))

	out, err := os.Create(target)
	if err != nil {
		return "", eris.Wrapf(err, "docstore: create %s", target)
	}
	defer out.Close() //nolint:errcheck

	// Read one byte past the limit so an at-limit file still succeeds.
	n, err := io.Copy(out, io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		os.Remove(target) //nolint:errcheck
		return "", eris.Wrapf(err, "docstore: write %s", target)
	}
	if n > d.maxBytes {
		os.Remove(target) //nolint:errcheck
		return "", eris.Wrapf(ErrTooLarge, "docstore: %s over %d bytes", docURL, d.maxBytes)
	}

	zap.L().Debug("document downloaded",
		zap.String("url", docURL),
		zap.String("path", target),
		zap.Int64("bytes", n),
	)
	return target, nil
}

// fileNameFor derives a stable local file name from the document URL.
func fileNameFor(docURL string) string {
	u, err := url.Parse(docURL)
	if err != nil || path.Base(u.Path) == "" || path.Base(u.Path) == "/" || path.Base(u.Path) == "." {
		sum := sha256.Sum256([]byte(docURL))
		return hex.EncodeToString(sum[:8]) + ".bin"
	}
	base := path.Base(u.Path)
	// Query-dependent URLs get a short hash suffix to avoid collisions.
	if u.RawQuery != "" {
		sum := sha256.Sum256([]byte(docURL))
		ext := path.Ext(base)
		base = strings.TrimSuffix(base, ext) + "-" + hex.EncodeToString(sum[:4]) + ext
	}
	return base
}
