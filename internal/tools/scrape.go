package tools

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/ppiankov/bsdetector/internal/model"
	"github.com/ppiankov/bsdetector/internal/util"
	"github.com/ppiankov/bsdetector/internal/worker"
)

const (
	maxContentChars = 40000
	maxCrawlDelay   = 10 * time.Second
	maxFeedItems    = 50
	maxFeedSummary  = 280
)

// Page is the markdown rendering of a scraped URL
type Page struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
	Source  string `json:"-"` // feed, readability or fallback
}

// PageScraper turns a URL into markdown
type PageScraper interface {
	Scrape(ctx context.Context, rawURL string) (*Page, error)
}

// Scraper fetches pages politely and extracts their main content
type Scraper struct {
	fetcher *Fetcher
	robots  *util.RobotsChecker
	limiter *worker.Limiter
	logger  *zerolog.Logger
}

// NewScraper creates a Scraper. robots.txt is only consulted when
// cfg.RespectRobots is set.
func NewScraper(cfg model.ScrapeConfig, proxy func(*http.Request) (*url.URL, error), logger *zerolog.Logger) *Scraper {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	s := &Scraper{
		fetcher: NewFetcher(timeout, cfg.UserAgent, cfg.MaxBytes, proxy),
		limiter: worker.NewLimiter(cfg.DomainRate, cfg.DomainBurst),
		logger:  logger,
	}
	for host, rps := range cfg.DomainRates {
		s.limiter.SetDomainRate(host, rps, cfg.DomainBurst)
	}
	if cfg.RespectRobots {
		s.robots = util.NewRobotsChecker(cfg.UserAgent, 10*time.Second, proxy)
	}
	return s
}

// Scrape fetches rawURL and returns its main content as markdown. All
// failures wrap ErrScrape.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (*Page, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScrape, err)
	}

	var crawlDelay time.Duration
	if s.robots != nil {
		allowed, delay, err := s.robots.CanFetch(ctx, u.String())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrScrape, err)
		}
		if !allowed {
			return nil, fmt.Errorf("%w: %w: %s", ErrScrape, ErrRobotsDisallowed, u)
		}
		crawlDelay = min(delay, maxCrawlDelay)
	}

	if err := s.limiter.WaitWithDelay(ctx, u.String(), crawlDelay); err != nil {
		return nil, fmt.Errorf("%w: rate limit: %w", ErrScrape, err)
	}

	res, err := s.fetcher.FetchWithRetry(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScrape, err)
	}

	base := res.FinalURL
	if base == nil {
		base = u
	}

	var page *Page
	if isFeed(res.ContentType, res.Body) {
		page, err = feedPage(res.Body)
		if err != nil {
			s.logger.Debug().Err(err).Str("url", u.String()).Msg("Feed parsing failed, treating as HTML")
		}
	}
	if page == nil {
		page = s.htmlPage(res.Body, base)
	}

	page.URL = u.String()
	if strings.TrimSpace(page.Content) == "" {
		return nil, fmt.Errorf("%w: no readable content at %s", ErrScrape, u)
	}
	page.Content = truncateRunes(page.Content, maxContentChars)

	s.logger.Debug().
		Str("url", page.URL).
		Str("source", page.Source).
		Int("chars", len(page.Content)).
		Msg("Page scraped")

	return page, nil
}

// ValidateURL accepts absolute http and https URLs only
func ValidateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return u, nil
}

func (s *Scraper) htmlPage(body []byte, base *url.URL) *Page {
	article, err := readability.FromReader(bytes.NewReader(body), base)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		if md := HTMLToMarkdown(article.Content, base); md != "" {
			return &Page{Title: strings.TrimSpace(article.Title), Content: withTitle(article.Title, md), Source: "readability"}
		}
	}
	if err != nil {
		s.logger.Debug().Err(err).Str("url", base.String()).Msg("Readability failed, using fallback selection")
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return &Page{Source: "fallback"}
	}

	sel := doc.Find("main, article").First()
	if sel.Length() == 0 {
		sel = doc.Find("body")
	}
	inner, _ := sel.Html()
	title := strings.TrimSpace(doc.Find("title").First().Text())

	return &Page{Title: title, Content: withTitle(title, HTMLToMarkdown(inner, base)), Source: "fallback"}
}

func feedPage(body []byte) (*Page, error) {
	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	var b strings.Builder
	if title := strings.TrimSpace(feed.Title); title != "" {
		b.WriteString("# " + title + "\n\n")
	}
	if desc := singleLine(HTMLToMarkdown(feed.Description, nil)); desc != "" {
		b.WriteString(desc + "\n\n")
	}

	for i, item := range feed.Items {
		if i == maxFeedItems {
			break
		}
		title := singleLine(item.Title)
		if href := resolveURL(nil, item.Link); href != "" {
			fmt.Fprintf(&b, "- [%s](%s)", title, href)
		} else {
			b.WriteString("- " + title)
		}
		if item.PublishedParsed != nil {
			b.WriteString(" (" + item.PublishedParsed.Format("2006-01-02") + ")")
		}
		b.WriteString("\n")
		if summary := singleLine(HTMLToMarkdown(item.Description, nil)); summary != "" {
			b.WriteString("  " + truncateRunes(summary, maxFeedSummary) + "\n")
		}
	}

	return &Page{Title: strings.TrimSpace(feed.Title), Content: strings.TrimSpace(b.String()), Source: "feed"}, nil
}

func isFeed(contentType string, body []byte) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "application/rss") ||
		strings.Contains(ct, "application/atom") ||
		strings.Contains(ct, "application/xml") ||
		strings.Contains(ct, "text/xml") {
		return true
	}

	head := body
	if len(head) > 512 {
		head = head[:512]
	}
	head = bytes.ToLower(head)
	return bytes.Contains(head, []byte("<rss")) || bytes.Contains(head, []byte("<feed"))
}

func withTitle(title, md string) string {
	title = singleLine(title)
	if title == "" || strings.HasPrefix(md, "# ") {
		return md
	}
	return "# " + title + "\n\n" + md
}

func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "\n\n[truncated]"
}
