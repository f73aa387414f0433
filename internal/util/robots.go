package util

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
)

// RobotsChecker checks robots.txt compliance. Parsed files are cached per
// host for a day.
type RobotsChecker struct {
	cache      *cache.Cache
	httpClient *http.Client
	userAgent  string
}

// NewRobotsChecker creates a new robots.txt checker
func NewRobotsChecker(userAgent string, timeout time.Duration, proxy func(*http.Request) (*url.URL, error)) *RobotsChecker {
	if proxy == nil {
		proxy = http.ProxyFromEnvironment
	}
	return &RobotsChecker{
		cache: cache.New(24*time.Hour, time.Hour),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{Proxy: proxy},
		},
		userAgent: userAgent,
	}
}

// CanFetch checks if the URL can be fetched according to robots.txt
// Returns (allowed, crawlDelay, error)
func (r *RobotsChecker) CanFetch(ctx context.Context, rawURL string) (bool, time.Duration, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, 0, fmt.Errorf("parse URL: %w", err)
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", parsed.Scheme, parsed.Host)

	data, err := r.getRobotsData(ctx, parsed.Host, robotsURL)
	if err != nil {
		// Unreachable robots.txt does not block the fetch
		return true, 0, nil
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	allowed := data.TestAgent(path, r.userAgent)

	crawlDelay := time.Duration(0)
	if group := data.FindGroup(r.userAgent); group != nil {
		crawlDelay = group.CrawlDelay
	}

	return allowed, crawlDelay, nil
}

// getRobotsData fetches and caches robots.txt data
func (r *RobotsChecker) getRobotsData(ctx context.Context, host string, robotsURL string) (*robotstxt.RobotsData, error) {
	if v, ok := r.cache.Get(host); ok {
		return v.(*robotstxt.RobotsData), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// FromResponse treats 4xx as allow-all and 5xx as disallow-all
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	r.cache.SetDefault(host, data)
	return data, nil
}

// Clear clears the robots.txt cache
func (r *RobotsChecker) Clear() {
	r.cache.Flush()
}
