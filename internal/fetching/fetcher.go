// Package fetching implements the logic for fetching feed content over HTTP,
// including handling conditional requests (ETag, Last-Modified) and retries.
package fetching

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"
)

// Sentinel errors for permanent fetch failures.
var (
	ErrNotFound  = errors.New("resource not found (404)")
	ErrForbidden = errors.New("access forbidden (403)")
	ErrGone      = errors.New("resource gone (410)")
)

// maxBodySize caps how much of a feed response is read into memory.
const maxBodySize = 10 << 20 // 10 MiB

// Config holds configuration specific to the Fetcher.
type Config struct {
	RequestTimeout    time.Duration // Timeout for the entire HTTP request lifecycle.
	MaxRetries        int           // Maximum number of retry attempts for transient errors.
	InitialRetryDelay time.Duration // Base delay for exponential backoff.
	MaxRetryDelay     time.Duration // Maximum delay between retries.
	UserAgent         string        // Custom User-Agent string.
}

// DefaultConfig returns a reasonable default configuration for the Fetcher.
func DefaultConfig() Config {
	return Config{
		RequestTimeout:    30 * time.Second,
		MaxRetries:        3,
		InitialRetryDelay: 500 * time.Millisecond,
		MaxRetryDelay:     5 * time.Second,
		UserAgent:         "WanderhubPublicationIngest/1.0 (+https://wanderhub.example)",
	}
}

// Result encapsulates the outcome of a fetch operation.
type Result struct {
	// Content holds the raw bytes of the fetched feed. Nil when the server
	// answered 304 Not Modified.
	Content []byte
	// ETag is the ETag header from the response, if present.
	ETag string
	// LastModified is the Last-Modified header from the response, if present.
	LastModified string
	// NotModified is true if the server responded 304.
	NotModified bool
	// FetchedAt is when the fetch attempt concluded.
	FetchedAt time.Time
}

// Fetcher retrieves feed content over HTTP.
type Fetcher struct {
	httpClient *http.Client
	cfg        Config
	logger     *slog.Logger
}

// NewFetcher creates a new Fetcher instance.
func NewFetcher(cfg Config, logger *slog.Logger) *Fetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	client := &http.Client{
		Timeout:   cfg.RequestTimeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	return &Fetcher{
		httpClient: client,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "fetcher")),
	}
}

// Fetch retrieves content from url, issuing a conditional GET when etag or
// lastModified are non-empty. Transient failures (network errors, 5xx) are
// retried with exponential backoff; 404/403/410 fail immediately with their
// sentinel error.
func (f *Fetcher) Fetch(ctx context.Context, url, etag, lastModified string) (*Result, error) {
	fetchLog := f.logger.With(slog.String("url", url))
	var lastErr error

	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt, f.cfg.InitialRetryDelay, f.cfg.MaxRetryDelay)
			fetchLog.Info("Retrying fetch",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.Any("last_error", lastErr),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("fetch cancelled during retry backoff: %w", ctx.Err())
			}
		}

		result, retry, err := f.attempt(ctx, fetchLog, url, etag, lastModified)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !retry || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, lastErr
		}
	}

	fetchLog.Error("Fetch failed after all retries",
		slog.Int("max_retries", f.cfg.MaxRetries),
		slog.Any("last_error", lastErr),
	)
	return nil, fmt.Errorf("fetch failed for %s after %d retries: %w", url, f.cfg.MaxRetries, lastErr)
}

// attempt performs a single HTTP round trip. The second return value reports
// whether the error is worth retrying.
func (f *Fetcher) attempt(ctx context.Context, fetchLog *slog.Logger, url, etag, lastModified string) (*Result, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request for %s: %w", url, err)
	}

	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.7")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := f.httpClient.Do(req)
	fetchedAt := time.Now().UTC()
	if err != nil {
		fetchLog.Warn("HTTP request failed", slog.Any("error", err))
		return nil, true, fmt.Errorf("http client error: %w", err)
	}
	defer resp.Body.Close()

	result := &Result{
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		FetchedAt:    fetchedAt,
	}

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			fetchLog.Warn("Failed to read response body", slog.Any("error", err))
			return nil, true, fmt.Errorf("failed to read response body: %w", err)
		}
		result.Content = body
		fetchLog.Debug("Fetch successful", slog.Int("content_length", len(body)))
		return result, false, nil

	case http.StatusNotModified:
		// Drain to allow connection reuse.
		_, _ = io.Copy(io.Discard, resp.Body)
		result.NotModified = true
		fetchLog.Debug("Fetch successful: content not modified")
		return result, false, nil

	case http.StatusNotFound:
		return nil, false, fmt.Errorf("fetch failed for %s: %w", url, ErrNotFound)
	case http.StatusForbidden:
		return nil, false, fmt.Errorf("fetch failed for %s: %w", url, ErrForbidden)
	case http.StatusGone:
		return nil, false, fmt.Errorf("fetch failed for %s: %w", url, ErrGone)

	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		err := fmt.Errorf("unexpected HTTP status %d for %s", resp.StatusCode, url)
		fetchLog.Warn("Fetch failed: unexpected status code", slog.Any("error", err))
		// Retry server-side errors, treat other statuses as permanent.
		return nil, resp.StatusCode >= 500 && resp.StatusCode < 600, err
	}
}

// backoffDelay computes the delay before retry number attempt.
func backoffDelay(attempt int, initial, max time.Duration) time.Duration {
	delay := time.Duration(float64(initial) * math.Pow(2, float64(attempt-1)))
	if delay > max {
		delay = max
	}
	return delay
}
