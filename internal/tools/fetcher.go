package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

const (
	fetchAttempts    = 3
	fetchBaseBackoff = time.Second
	maxRedirects     = 5
)

// fetchSleepFunc is swapped out by tests
var fetchSleepFunc = time.Sleep

// Fetcher fetches raw page bodies
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
}

// NewFetcher creates a new Fetcher with the given configuration
func NewFetcher(timeout time.Duration, userAgent string, maxBytes int64, proxy func(*http.Request) (*url.URL, error)) *Fetcher {
	if proxy == nil {
		proxy = http.ProxyFromEnvironment
	}
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &Fetcher{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{Proxy: proxy},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		userAgent: userAgent,
		maxBytes:  maxBytes,
	}
}

// FetchResult contains the fetched body and metadata
type FetchResult struct {
	Body        []byte
	ContentType string
	FinalURL    *url.URL
}

// Fetch retrieves the body of the given URL once
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &FetchResult{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL,
	}, nil
}

// FetchWithRetry retries transient failures (5xx, 429, network errors) with
// exponential backoff.
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	var lastErr error
	for attempt := 0; attempt < fetchAttempts; attempt++ {
		if attempt > 0 {
			fetchSleepFunc(fetchBaseBackoff << (attempt - 1))
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		result, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryableFetchError(err) {
			break
		}
	}
	return nil, lastErr
}

func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500 || statusErr.Code == http.StatusTooManyRequests
	}

	var netErr net.Error
	var opErr *net.OpError
	return errors.As(err, &netErr) || errors.As(err, &opErr)
}
