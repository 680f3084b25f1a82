package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tracklab/ingest/internal/ingest"
)

// passthroughValidator accepts every URL except those matching deny.
type passthroughValidator struct {
	deny  string
	calls int32
}

func (v *passthroughValidator) Validate(_ context.Context, rawURL string, _ bool) (ingest.ValidatedURL, error) {
	atomic.AddInt32(&v.calls, 1)
	if v.deny != "" && strings.Contains(rawURL, v.deny) {
		return ingest.ValidatedURL{}, ingest.NewError(ingest.KindPrivateAddressBlocked, "address blocked")
	}
	return ingest.ValidatedURL{Normalized: rawURL}, nil
}

func newTestDownloader(t *testing.T, v ingest.Validator) *Downloader {
	t.Helper()
	return New(v, nil, Config{
		MaxRetries:     2,
		BackoffInitial: 5 * time.Millisecond,
		BackoffMax:     20 * time.Millisecond,
		TempDir:        t.TempDir(),
	}, nil)
}

func request(maxBytes int64, timeout time.Duration) ingest.SourceRequest {
	return ingest.SourceRequest{MaxBytes: maxBytes, Timeout: timeout}
}

func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	payload := strings.Repeat("a", 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "token", r.Header.Get("X-Auth"))
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	d := newTestDownloader(t, &passthroughValidator{})
	req := request(1<<20, 5*time.Second)
	req.Headers = map[string]string{"X-Auth": "token"}

	asset, err := d.Fetch(context.Background(), ingest.ValidatedURL{Normalized: srv.URL + "/track.mp3"}, req)
	require.NoError(t, err)
	defer os.Remove(asset.Path)

	require.Equal(t, int64(len(payload)), asset.Size)
	require.Equal(t, "audio/mpeg", asset.ContentType)
	require.Equal(t, "track.mp3", asset.Filename)

	data, err := os.ReadFile(asset.Path)
	require.NoError(t, err)
	require.Equal(t, payload, string(data))
}

func TestFetchSizeExceededAbortsStream(t *testing.T) {
	t.Parallel()

	const limit = 64 * 1024
	var sent atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Lie about the length, then stream well past the cap.
		w.Header().Set("Content-Length", "1024")
		chunk := make([]byte, 8*1024)
		flusher := w.(http.Flusher)
		for i := 0; i < 128; i++ {
			n, err := w.Write(chunk)
			sent.Add(int64(n))
			if err != nil {
				return
			}
			flusher.Flush()
		}
	}))
	defer srv.Close()

	tempDir := t.TempDir()
	d := New(&passthroughValidator{}, nil, Config{
		MaxRetries:     0,
		BackoffInitial: time.Millisecond,
		TempDir:        tempDir,
	}, nil)

	_, err := d.Fetch(context.Background(), ingest.ValidatedURL{Normalized: srv.URL}, request(limit, 5*time.Second))
	require.Equal(t, ingest.KindSizeExceeded, ingest.KindOf(err))

	// Temp file must be gone and the stream must have aborted early.
	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestFetchRetriesTransientThenSucceeds(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "flaky", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	d := newTestDownloader(t, &passthroughValidator{})
	asset, err := d.Fetch(context.Background(), ingest.ValidatedURL{Normalized: srv.URL}, request(1024, 5*time.Second))
	require.NoError(t, err)
	defer os.Remove(asset.Path)
	require.EqualValues(t, 3, calls.Load())
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.NotFound(w, nil)
	}))
	defer srv.Close()

	d := newTestDownloader(t, &passthroughValidator{})
	_, err := d.Fetch(context.Background(), ingest.ValidatedURL{Normalized: srv.URL}, request(1024, 5*time.Second))
	require.Equal(t, ingest.KindFetchFailed, ingest.KindOf(err))
	require.EqualValues(t, 1, calls.Load())
}

func TestFetchExhaustsRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := newTestDownloader(t, &passthroughValidator{})
	_, err := d.Fetch(context.Background(), ingest.ValidatedURL{Normalized: srv.URL}, request(1024, 5*time.Second))
	require.Equal(t, ingest.KindFetchFailed, ingest.KindOf(err))
	require.EqualValues(t, 3, calls.Load())
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		time.Sleep(2 * time.Second) // stall mid-transfer
	}))
	defer srv.Close()

	tempDir := t.TempDir()
	d := New(&passthroughValidator{}, nil, Config{TempDir: tempDir}, nil)

	start := time.Now()
	_, err := d.Fetch(context.Background(), ingest.ValidatedURL{Normalized: srv.URL}, request(1024, 150*time.Millisecond))
	require.Equal(t, ingest.KindTimeout, ingest.KindOf(err))
	require.Less(t, time.Since(start), time.Second)

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestFetchRevalidatesRedirectTargets(t *testing.T) {
	t.Parallel()

	var final atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/internal/secret", http.StatusFound)
	})
	mux.HandleFunc("/internal/secret", func(w http.ResponseWriter, _ *http.Request) {
		final.Add(1)
		_, _ = w.Write([]byte("should never be reached"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	v := &passthroughValidator{deny: "/internal/"}
	d := newTestDownloader(t, v)

	_, err := d.Fetch(context.Background(), ingest.ValidatedURL{Normalized: srv.URL + "/start"}, request(1024, 5*time.Second))
	require.Equal(t, ingest.KindPrivateAddressBlocked, ingest.KindOf(err))
	require.Zero(t, final.Load(), "blocked redirect target must not be fetched")
}

func TestFetchFollowsSafeRedirects(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/real.mp3", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/real.mp3", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("audio"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	v := &passthroughValidator{}
	d := newTestDownloader(t, v)

	asset, err := d.Fetch(context.Background(), ingest.ValidatedURL{Normalized: srv.URL + "/start"}, request(1024, 5*time.Second))
	require.NoError(t, err)
	defer os.Remove(asset.Path)
	require.Equal(t, "real.mp3", asset.Filename)
	require.EqualValues(t, 1, atomic.LoadInt32(&v.calls), "each redirect hop is validated once")
}

func TestFetchContentDispositionFilename(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="session.flac"`)
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	d := newTestDownloader(t, &passthroughValidator{})
	asset, err := d.Fetch(context.Background(), ingest.ValidatedURL{Normalized: srv.URL}, request(1024, 5*time.Second))
	require.NoError(t, err)
	defer os.Remove(asset.Path)
	require.Equal(t, "session.flac", asset.Filename)
}

func TestTempFilesLandInConfiguredDir(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	tempDir := t.TempDir()
	d := New(&passthroughValidator{}, nil, Config{TempDir: tempDir}, nil)
	asset, err := d.Fetch(context.Background(), ingest.ValidatedURL{Normalized: srv.URL}, request(1024, 5*time.Second))
	require.NoError(t, err)
	defer os.Remove(asset.Path)
	require.Equal(t, tempDir, filepath.Dir(asset.Path))
	require.True(t, strings.HasPrefix(filepath.Base(asset.Path), "ingest-"))
}
