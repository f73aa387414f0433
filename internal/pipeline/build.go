package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ppiankov/bsdetector/internal/agent"
	"github.com/ppiankov/bsdetector/internal/annotate"
	"github.com/ppiankov/bsdetector/internal/cache"
	"github.com/ppiankov/bsdetector/internal/events"
	"github.com/ppiankov/bsdetector/internal/llm"
	"github.com/ppiankov/bsdetector/internal/model"
	"github.com/ppiankov/bsdetector/internal/store"
	"github.com/ppiankov/bsdetector/internal/tools"
	"github.com/ppiankov/bsdetector/internal/util"
)

// NewFromConfig builds a Service and all its collaborators from cfg
func NewFromConfig(ctx context.Context, cfg *model.Config, logger *zerolog.Logger) (*Service, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM), logger)
	if err != nil {
		return nil, fmt.Errorf("init LLM provider: %w", err)
	}

	st, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	proxy := util.NewProxyFunc(cfg.LLM.HTTPProxy, cfg.LLM.HTTPSProxy, cfg.LLM.NoProxy)
	bus := events.NewBus(cfg.Events.Capacity, cfg.Events.SessionGrace)
	searcher := tools.NewSearxNG(cfg.Search, cfg.Scrape.UserAgent, proxy, logger)
	scraper := tools.NewScraper(cfg.Scrape, proxy, logger)
	toolset := tools.NewToolset(searcher, scraper, bus, logger)

	logger.Debug().
		Str("provider", provider.Name()).
		Str("store", cfg.Store.Driver).
		Str("search", cfg.Search.BaseURL).
		Bool("cache", cfg.Cache.Enabled).
		Msg("Pipeline configured")

	return New(Options{
		Agent:     agent.New(provider, toolset, bus, cfg.Agent, logger),
		Scraper:   scraper,
		Annotator: annotate.NewGenerator(provider, logger),
		Store:     st,
		Cache:     cache.NewAnnotationCache(cache.New(cfg.Cache), cfg.Cache.TTL, logger),
		Bus:       bus,
		Logger:    logger,
	}), nil
}
