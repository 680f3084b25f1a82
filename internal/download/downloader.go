// Package download streams validated URLs to scoped temp files under strict
// byte and wall-clock budgets.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tracklab/ingest/internal/ingest"
	"github.com/tracklab/ingest/internal/metrics"
)

// Config controls downloader behavior.
type Config struct {
	// MaxRetries bounds re-attempts after a transient failure; the first
	// attempt is not counted. Client errors are never retried.
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	UserAgent      string
	TempDir        string
	MaxRedirects   int
}

const copyChunkSize = 32 * 1024

// Downloader implements ingest.Downloader on net/http. Every redirect target
// is re-validated through the SSRF guard before it is followed.
type Downloader struct {
	validator ingest.Validator
	transport http.RoundTripper
	cfg       Config
	logger    *zap.Logger
}

// New builds a Downloader. A nil transport uses http.DefaultTransport.
func New(validator ingest.Validator, transport http.RoundTripper, cfg Config, logger *zap.Logger) *Downloader {
	if transport == nil {
		transport = http.DefaultTransport
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 250 * time.Millisecond
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 2 * time.Second
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 5
	}
	return &Downloader{
		validator: validator,
		transport: transport,
		cfg:       cfg,
		logger:    logger,
	}
}

// transientError marks a failure worth retrying (reset connections, 5xx).
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Fetch downloads target into a temp file. One wall-clock timeout spans the
// whole call, including every retry and redirect hop; the byte cap is applied
// to the streamed total, never to the declared Content-Length.
func (d *Downloader) Fetch(ctx context.Context, target ingest.ValidatedURL, req ingest.SourceRequest) (ingest.DownloadedAsset, error) {
	if req.MaxBytes <= 0 {
		return ingest.DownloadedAsset{}, ingest.NewError(ingest.KindFetchFailed, "no byte budget supplied")
	}
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	start := time.Now()
	backoff := d.cfg.BackoffInitial
	var lastErr error
	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.ObserveDownloadRetry()
			select {
			case <-ctx.Done():
				return ingest.DownloadedAsset{}, d.timeoutError(ctx, lastErr)
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, d.cfg.BackoffMax)
			d.logger.Debug("retrying download",
				zap.String("url", target.Normalized),
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
		}

		asset, err := d.fetchOnce(ctx, target, req, start)
		if err == nil {
			return asset, nil
		}
		var transient *transientError
		if !errors.As(err, &transient) {
			return ingest.DownloadedAsset{}, err
		}
		lastErr = transient.err
	}
	if ctx.Err() != nil {
		return ingest.DownloadedAsset{}, d.timeoutError(ctx, lastErr)
	}
	return ingest.DownloadedAsset{}, ingest.WrapError(ingest.KindFetchFailed, lastErr,
		"download failed after %d attempts", d.cfg.MaxRetries+1)
}

func (d *Downloader) fetchOnce(ctx context.Context, target ingest.ValidatedURL, req ingest.SourceRequest, start time.Time) (ingest.DownloadedAsset, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target.Normalized, nil)
	if err != nil {
		return ingest.DownloadedAsset{}, ingest.WrapError(ingest.KindFetchFailed, err, "build request")
	}
	if d.cfg.UserAgent != "" {
		httpReq.Header.Set("User-Agent", d.cfg.UserAgent)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	client := &http.Client{
		Transport:     d.transport,
		CheckRedirect: d.checkRedirect,
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ingest.DownloadedAsset{}, d.timeoutError(ctx, err)
		}
		var ie *ingest.Error
		if errors.As(err, &ie) {
			// A redirect hop failed validation; surface the guard's verdict.
			return ingest.DownloadedAsset{}, ie
		}
		return ingest.DownloadedAsset{}, &transientError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return ingest.DownloadedAsset{}, &transientError{err: fmt.Errorf("server returned %s", resp.Status)}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return ingest.DownloadedAsset{}, ingest.NewError(ingest.KindFetchFailed, "server returned %s", resp.Status)
	}

	tmp, err := os.CreateTemp(d.cfg.TempDir, "ingest-*")
	if err != nil {
		return ingest.DownloadedAsset{}, ingest.WrapError(ingest.KindFetchFailed, err, "create temp file")
	}

	written, err := d.spool(tmp, resp.Body, req.MaxBytes)
	if cerr := tmp.Close(); cerr != nil && err == nil {
		err = ingest.WrapError(ingest.KindFetchFailed, cerr, "close temp file")
	}
	if err != nil {
		if rmErr := os.Remove(tmp.Name()); rmErr != nil {
			d.logger.Warn("failed to remove temp file", zap.String("path", tmp.Name()), zap.Error(rmErr))
		}
		if ctx.Err() != nil {
			return ingest.DownloadedAsset{}, d.timeoutError(ctx, err)
		}
		return ingest.DownloadedAsset{}, err
	}

	metrics.AddBytesDownloaded(written)
	return ingest.DownloadedAsset{
		Path:        tmp.Name(),
		Size:        written,
		ContentType: resp.Header.Get("Content-Type"),
		Filename:    responseFilename(resp),
		Elapsed:     time.Since(start),
	}, nil
}

// spool copies body to dst, aborting as soon as the running total exceeds
// maxBytes. At most one extra chunk beyond the cap ever reaches disk.
func (d *Downloader) spool(dst io.Writer, body io.Reader, maxBytes int64) (int64, error) {
	var written int64
	buf := make([]byte, copyChunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if written+int64(n) > maxBytes {
				return written, ingest.NewError(ingest.KindSizeExceeded,
					"payload exceeds limit of %d bytes", maxBytes)
			}
			wn, writeErr := dst.Write(buf[:n])
			written += int64(wn)
			if writeErr != nil {
				return written, ingest.WrapError(ingest.KindFetchFailed, writeErr, "write temp file")
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, &transientError{err: readErr}
		}
	}
}

// checkRedirect re-validates every redirect target before it is fetched.
// An unvalidated redirect is equivalent to accepting an unvalidated URL.
func (d *Downloader) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= d.cfg.MaxRedirects {
		return ingest.NewError(ingest.KindFetchFailed, "stopped after %d redirects", d.cfg.MaxRedirects)
	}
	validated, err := d.validator.Validate(req.Context(), req.URL.String(), true)
	if err != nil {
		return err
	}
	parsed, err := url.Parse(validated.Normalized)
	if err != nil {
		return ingest.WrapError(ingest.KindFetchFailed, err, "re-parse validated redirect target")
	}
	*req.URL = *parsed
	return nil
}

func (d *Downloader) timeoutError(ctx context.Context, cause error) error {
	if cause == nil {
		cause = ctx.Err()
	}
	return ingest.WrapError(ingest.KindTimeout, cause, "download budget exhausted")
}

func responseFilename(resp *http.Response) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		for _, part := range strings.Split(cd, ";") {
			part = strings.TrimSpace(part)
			if value, ok := strings.CutPrefix(part, "filename="); ok {
				return strings.Trim(value, `"`)
			}
		}
	}
	if base := path.Base(resp.Request.URL.Path); base != "." && base != "/" {
		return base
	}
	return ""
}
