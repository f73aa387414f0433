package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/rs/zerolog"

	"github.com/ppiankov/bsdetector/internal/model"
)

const (
	// DefaultSearchLimit applies when the caller passes no positive limit
	DefaultSearchLimit = 5
	maxSearchLimit     = 20
)

// SearchResult is one web search hit
type SearchResult struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Snippet     string     `json:"snippet"`
	Authority   Authority  `json:"authority,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

// Searcher runs web searches
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// SearxNG queries the JSON API of a SearxNG instance
type SearxNG struct {
	baseURL      string
	defaultLimit int
	userAgent    string
	authority    *AuthorityClassifier
	httpClient   *http.Client
	logger       *zerolog.Logger
}

type searxResponse struct {
	Results []struct {
		URL           string `json:"url"`
		Title         string `json:"title"`
		Content       string `json:"content"`
		PublishedDate string `json:"publishedDate"`
	} `json:"results"`
}

// NewSearxNG creates a SearxNG client
func NewSearxNG(cfg model.SearchConfig, userAgent string, proxy func(*http.Request) (*url.URL, error), logger *zerolog.Logger) *SearxNG {
	if proxy == nil {
		proxy = http.ProxyFromEnvironment
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &SearxNG{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		defaultLimit: cfg.DefaultLimit,
		userAgent:    userAgent,
		authority:    NewAuthorityClassifier(cfg.Authority),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{Proxy: proxy},
		},
		logger: logger,
	}
}

// Search returns up to limit results for query. A non-positive limit uses
// the configured default; limits above 20 are capped.
func (s *SearxNG) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrSearch)
	}
	limit = normalizeLimit(limit, s.defaultLimit)

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("categories", "general")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %w", ErrSearch, err)
	}
	req.Header.Set("Accept", "application/json")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %w", ErrSearch, &StatusError{Code: resp.StatusCode, Status: resp.Status})
	}

	var body searxResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrSearch, err)
	}

	results := make([]SearchResult, 0, limit)
	seen := make(map[string]bool)
	for _, r := range body.Results {
		if r.URL == "" || seen[r.URL] {
			continue
		}
		seen[r.URL] = true

		result := SearchResult{
			Title:     strings.TrimSpace(r.Title),
			URL:       r.URL,
			Snippet:   strings.TrimSpace(r.Content),
			Authority: s.authority.Classify(r.URL),
		}
		if r.PublishedDate != "" {
			if t, err := dateparse.ParseAny(r.PublishedDate); err == nil {
				result.PublishedAt = &t
			} else {
				s.logger.Debug().Str("date", r.PublishedDate).Msg("Unparseable published date")
			}
		}

		results = append(results, result)
		if len(results) == limit {
			break
		}
	}

	return results, nil
}

func normalizeLimit(limit, def int) int {
	if def <= 0 {
		def = DefaultSearchLimit
	}
	if limit <= 0 {
		limit = def
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	return limit
}
