package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/bsdetector/internal/llm"
	"github.com/ppiankov/bsdetector/internal/model"
	"github.com/ppiankov/bsdetector/internal/observability"
)

// Tool names exposed to the model
const (
	ToolSearch = "search"
	ToolScrape = "scrape"
)

var (
	searchSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "The search query"},
    "limit": {"type": "integer", "description": "Number of results to return (default 5)"}
  },
  "required": ["query"]
}`)

	scrapeSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "url": {"type": "string", "description": "The URL to scrape"}
  },
  "required": ["url"]
}`)
)

// EventSink receives tool progress events
type EventSink interface {
	Push(ctx context.Context, typ model.EventType, message string) model.AgentEvent
}

// Toolset exposes search and scrape to the agent. Execute never returns a
// Go error: failures become {"error": "..."} tool results.
type Toolset struct {
	searcher Searcher
	scraper  PageScraper
	events   EventSink
	logger   *zerolog.Logger
}

// NewToolset creates a toolset. events may be nil.
func NewToolset(searcher Searcher, scraper PageScraper, events EventSink, logger *zerolog.Logger) *Toolset {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Toolset{
		searcher: searcher,
		scraper:  scraper,
		events:   events,
		logger:   logger,
	}
}

// Definitions returns the tool schemas offered to the model
func (t *Toolset) Definitions() []llm.ToolDef {
	return []llm.ToolDef{
		{
			Name:        ToolSearch,
			Description: "Search the web for information. Use this to find evidence about claims: company names, people, funding rounds, awards, metrics, customer reviews and reddit threads. Each result carries an authority tier (primary, secondary or tertiary) ranking the source domain.",
			Parameters:  searchSchema,
		},
		{
			Name:        ToolScrape,
			Description: "Scrape content from a URL and return it as markdown. Use this to check specific pages like LinkedIn, Crunchbase, company websites, app stores and review sites.",
			Parameters:  scrapeSchema,
		},
	}
}

// Execute runs the named tool with JSON arguments and returns a JSON result
func (t *Toolset) Execute(ctx context.Context, name, arguments string) string {
	start := time.Now()
	defer func() {
		observability.ToolDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()

	switch name {
	case ToolSearch:
		return t.search(ctx, arguments)
	case ToolScrape:
		return t.scrape(ctx, arguments)
	default:
		observability.ToolCallsTotal.WithLabelValues(name, "unknown").Inc()
		return errorResult(fmt.Sprintf("unknown tool: %s", name))
	}
}

func (t *Toolset) search(ctx context.Context, arguments string) string {
	var args struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := decodeArgs(arguments, &args); err != nil || strings.TrimSpace(args.Query) == "" {
		observability.ToolCallsTotal.WithLabelValues(ToolSearch, "invalid").Inc()
		return errorResult(fmt.Sprintf("invalid arguments for search: %s", arguments))
	}

	t.push(ctx, model.EventSearch, fmt.Sprintf("Searching: %s", args.Query))

	results, err := t.searcher.Search(ctx, args.Query, args.Limit)
	if err != nil {
		observability.ToolCallsTotal.WithLabelValues(ToolSearch, "error").Inc()
		t.logger.Warn().Err(err).Str("query", args.Query).Msg("Search tool failed")
		t.push(ctx, model.EventSearchResult, fmt.Sprintf("Search failed: %v", err))
		return errorResult(err.Error())
	}

	observability.ToolCallsTotal.WithLabelValues(ToolSearch, "ok").Inc()
	t.push(ctx, model.EventSearchResult, fmt.Sprintf("Found %d results for: %s", len(results), args.Query))

	if results == nil {
		results = []SearchResult{}
	}
	return encodeResult(map[string]any{"results": results})
}

func (t *Toolset) scrape(ctx context.Context, arguments string) string {
	var args struct {
		URL string `json:"url"`
	}
	if err := decodeArgs(arguments, &args); err != nil || strings.TrimSpace(args.URL) == "" {
		observability.ToolCallsTotal.WithLabelValues(ToolScrape, "invalid").Inc()
		return errorResult(fmt.Sprintf("invalid arguments for scrape: %s", arguments))
	}

	t.push(ctx, model.EventScrape, fmt.Sprintf("Scraping: %s", args.URL))

	page, err := t.scraper.Scrape(ctx, args.URL)
	if err != nil {
		observability.ToolCallsTotal.WithLabelValues(ToolScrape, "error").Inc()
		t.logger.Warn().Err(err).Str("url", args.URL).Msg("Scrape tool failed")
		t.push(ctx, model.EventScrapeResult, fmt.Sprintf("Scrape failed: %v", err))
		return errorResult(err.Error())
	}

	observability.ToolCallsTotal.WithLabelValues(ToolScrape, "ok").Inc()
	t.push(ctx, model.EventScrapeResult, fmt.Sprintf("Scraped %d chars from %s", len(page.Content), args.URL))

	return encodeResult(page)
}

func (t *Toolset) push(ctx context.Context, typ model.EventType, message string) {
	if t.events != nil {
		t.events.Push(ctx, typ, message)
	}
}

func decodeArgs(arguments string, v any) error {
	if strings.TrimSpace(arguments) == "" {
		arguments = "{}"
	}
	return json.Unmarshal([]byte(arguments), v)
}

func errorResult(msg string) string {
	return encodeResult(map[string]string{"error": msg})
}

func encodeResult(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{"error":"encode tool result"}`
	}
	return string(b)
}
