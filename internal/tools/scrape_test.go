package tools

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/bsdetector/internal/model"
)

const articleHTML = `<!DOCTYPE html>
<html><head><title>Acme raises Series A</title></head>
<body>
<nav><a href="/">Home</a> <a href="/pricing">Pricing</a></nav>
<article>
<h1>Acme raises Series A</h1>
<p>Acme raised $10M in a Series A round led by Example Ventures, the company announced on Tuesday.
The startup says its platform is used by more than 500 enterprise customers across three continents.</p>
<p>Founded in 2021, Acme sells a dashboard that wraps several public APIs. The company claims its
models reach 99.9% accuracy, although it has not published any benchmark to support that number.</p>
<p>Competitors include several larger vendors, and analysts quoted in the <a href="/press">press release</a>
were not independent of the company. Acme plans to double its headcount over the next twelve months.</p>
</article>
<footer>Copyright Acme</footer>
</body></html>`

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>Acme News</title><link>https://acme.example</link><description>Company updates</description>
<item><title>Series A</title><link>https://acme.example/a</link>
<description>We raised &lt;b&gt;$10M&lt;/b&gt;</description>
<pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate></item>
</channel></rss>`

func newScrapeServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	})
	mux.HandleFunc("/article", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articleHTML))
	})
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(rssFeed))
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body></body></html>"))
	})
	mux.HandleFunc("/private/page", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<p>secret</p>"))
	})
	return httptest.NewServer(mux)
}

func testScrapeConfig() model.ScrapeConfig {
	return model.ScrapeConfig{
		Timeout:       5 * time.Second,
		UserAgent:     "bsdetector-test",
		MaxBytes:      1 << 20,
		RespectRobots: true,
	}
}

func TestScraper_Article(t *testing.T) {
	server := newScrapeServer()
	defer server.Close()

	s := NewScraper(testScrapeConfig(), nil, nil)
	page, err := s.Scrape(context.Background(), server.URL+"/article")
	require.NoError(t, err)

	assert.Equal(t, server.URL+"/article", page.URL)
	assert.Contains(t, page.Content, "Acme raised $10M in a Series A round")
	assert.Contains(t, page.Content, "99.9% accuracy")
	assert.True(t, strings.HasPrefix(page.Content, "# "), "content starts with a title heading")
	assert.NotContains(t, page.Content, "<p>")
}

func TestScraper_Feed(t *testing.T) {
	server := newScrapeServer()
	defer server.Close()

	s := NewScraper(testScrapeConfig(), nil, nil)
	page, err := s.Scrape(context.Background(), server.URL+"/feed.xml")
	require.NoError(t, err)

	assert.Equal(t, "feed", page.Source)
	assert.Contains(t, page.Content, "# Acme News")
	assert.Contains(t, page.Content, "- [Series A](https://acme.example/a) (2006-01-02)")
	assert.Contains(t, page.Content, "We raised **$10M**")
}

func TestScraper_RobotsDisallowed(t *testing.T) {
	server := newScrapeServer()
	defer server.Close()

	s := NewScraper(testScrapeConfig(), nil, nil)
	_, err := s.Scrape(context.Background(), server.URL+"/private/page")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrScrape))
	assert.True(t, errors.Is(err, ErrRobotsDisallowed))

	cfg := testScrapeConfig()
	cfg.RespectRobots = false
	s = NewScraper(cfg, nil, nil)
	page, err := s.Scrape(context.Background(), server.URL+"/private/page")
	require.NoError(t, err)
	assert.Contains(t, page.Content, "secret")
}

func TestScraper_Failures(t *testing.T) {
	server := newScrapeServer()
	defer server.Close()

	s := NewScraper(testScrapeConfig(), nil, nil)

	_, err := s.Scrape(context.Background(), server.URL+"/empty")
	assert.True(t, errors.Is(err, ErrScrape))

	_, err = s.Scrape(context.Background(), server.URL+"/missing")
	assert.True(t, errors.Is(err, ErrScrape))
	assert.True(t, errors.Is(err, ErrHTTPStatusNotOK))

	_, err = s.Scrape(context.Background(), "ftp://files.example/x")
	assert.True(t, errors.Is(err, ErrScrape))
	assert.True(t, errors.Is(err, ErrInvalidURL))
}

func TestValidateURL(t *testing.T) {
	_, err := ValidateURL("https://acme.example/x")
	assert.NoError(t, err)

	for _, bad := range []string{"", "acme.example", "file:///etc/passwd", "http://"} {
		_, err := ValidateURL(bad)
		assert.ErrorIs(t, err, ErrInvalidURL, bad)
	}
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "short", truncateRunes("short", 10))
	assert.Equal(t, "héll\n\n[truncated]", truncateRunes("héllo wörld", 4))
}

func TestNewScraper_DomainRateOverrides(t *testing.T) {
	cfg := testScrapeConfig()
	cfg.DomainBurst = 1
	cfg.DomainRates = map[string]float64{"slow.example": 0.001}

	s := NewScraper(cfg, nil, nil)

	assert.True(t, s.limiter.Allow("https://slow.example/a"))
	assert.False(t, s.limiter.Allow("https://slow.example/b"), "override allows one request per burst")
	assert.True(t, s.limiter.Allow("https://fast.example/a"))
	assert.True(t, s.limiter.Allow("https://fast.example/b"), "default rate is unlimited")
}
