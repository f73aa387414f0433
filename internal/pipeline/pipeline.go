// Package pipeline wires the agent, tools, annotation generator, store and
// event bus into the user-facing entry points.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/bsdetector/internal/agent"
	"github.com/ppiankov/bsdetector/internal/annotate"
	"github.com/ppiankov/bsdetector/internal/cache"
	"github.com/ppiankov/bsdetector/internal/events"
	"github.com/ppiankov/bsdetector/internal/llm"
	"github.com/ppiankov/bsdetector/internal/model"
	"github.com/ppiankov/bsdetector/internal/observability"
	"github.com/ppiankov/bsdetector/internal/report"
	"github.com/ppiankov/bsdetector/internal/store"
	"github.com/ppiankov/bsdetector/internal/tools"
)

// ErrInvalidInput marks requests rejected before any work is done
var ErrInvalidInput = errors.New("invalid input")

// AgentRunner is the investigation loop
type AgentRunner interface {
	Run(ctx context.Context, messages []llm.Message) (*agent.Result, error)
	Stream(ctx context.Context, messages []llm.Message, onText func(string)) (*agent.Result, error)
}

// Annotator derives annotations from an investigation
type Annotator interface {
	FromReport(ctx context.Context, rep model.StructuredReport) []model.Annotation
	FromRaw(ctx context.Context, raw string) []model.Annotation
}

// Options holds the collaborators of a Service. Cache may be nil.
type Options struct {
	Agent     AgentRunner
	Scraper   tools.PageScraper
	Annotator Annotator
	Store     store.Store
	Cache     *cache.AnnotationCache
	Bus       *events.Bus
	Logger    *zerolog.Logger
}

// Service orchestrates investigations
type Service struct {
	agent     AgentRunner
	scraper   tools.PageScraper
	annotator Annotator
	store     store.Store
	cache     *cache.AnnotationCache
	bus       *events.Bus
	logger    *zerolog.Logger
	now       func() time.Time
}

// New creates a Service
func New(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	bus := opts.Bus
	if bus == nil {
		bus = events.NewBus(0, 0)
	}

	return &Service{
		agent:     opts.Agent,
		scraper:   opts.Scraper,
		annotator: opts.Annotator,
		store:     opts.Store,
		cache:     opts.Cache,
		bus:       bus,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Bus returns the event bus investigations publish to
func (s *Service) Bus() *events.Bus {
	return s.bus
}

// Close releases the store
func (s *Service) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// ChatRequest is one turn of an interactive investigation
type ChatRequest struct {
	Messages      []llm.Message    `json:"messages"`
	URL           string           `json:"url,omitempty"`
	SourceType    model.SourceType `json:"sourceType,omitempty"`
	InputMarkdown string           `json:"inputMarkdown,omitempty"`
}

// ChatResult describes a finished chat investigation
type ChatResult struct {
	Text      string
	Steps     int
	Outcome   agent.Outcome
	SessionID string
	RecordID  string // Empty when persisting failed
	Report    model.StructuredReport
}

// Chat streams an investigation of the conversation, then parses and stores
// the result with annotations left underived. Text already passed to onText
// is not retracted when the model fails.
func (s *Service) Chat(ctx context.Context, req ChatRequest, onText func(string)) (*ChatResult, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("%w: at least one message is required", ErrInvalidInput)
	}
	if last := req.Messages[len(req.Messages)-1]; last.Role != llm.RoleUser {
		return nil, fmt.Errorf("%w: last message must come from the user", ErrInvalidInput)
	}
	sourceType := req.SourceType
	switch sourceType {
	case "":
		sourceType = model.SourceURL
	case model.SourceURL, model.SourcePDF:
	default:
		return nil, fmt.Errorf("%w: unknown source type %q", ErrInvalidInput, sourceType)
	}

	started := s.now()
	ctx, sess := s.bus.StartSession(ctx)
	defer s.bus.EndSession(sess.ID)

	logger := s.logger.With().Str("session_id", sess.ID).Str("url", req.URL).Logger()

	res, err := s.agent.Stream(ctx, req.Messages, onText)
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}

	rep := report.ParseReport(res.Text)
	out := &ChatResult{
		Text:      res.Text,
		Steps:     res.Steps,
		Outcome:   res.Outcome,
		SessionID: sess.ID,
		Report:    rep,
	}

	rec := &model.InvestigationRecord{
		SourceType:    sourceType,
		InputMarkdown: req.InputMarkdown,
		Events:        s.bus.SessionEvents(sess.ID),
		Report:        &rep,
		RawChatOutput: res.Text,
		CreatedAt:     started,
		CompletedAt:   s.now(),
	}
	if req.URL != "" && sourceType == model.SourceURL {
		rec.URL = model.StringPtr(req.URL)
	}

	// The text is already with the caller, so a storage failure is logged
	// rather than turning a finished chat into an error
	if err := s.store.Insert(ctx, rec); err != nil {
		logger.Error().Err(err).Msg("Failed to persist chat investigation")
		return out, nil
	}
	out.RecordID = rec.ID

	logger.Info().
		Int("steps", res.Steps).
		Str("outcome", res.Outcome.String()).
		Int("claims", len(rep.Claims)).
		Msg("Chat investigation stored")

	return out, nil
}

// AnnotateResult is the response of Annotate
type AnnotateResult struct {
	Replacements []model.Annotation `json:"replacements"`
	Cached       bool               `json:"cached"`
}

// Annotate returns inline annotations for url. Previously derived
// annotations are served as cached; a stored report without annotations is
// annotated in place; otherwise the full pipeline runs.
func (s *Service) Annotate(ctx context.Context, url string) (*AnnotateResult, error) {
	url = strings.TrimSpace(url)
	if _, err := tools.ValidateURL(url); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	logger := s.logger.With().Str("url", url).Logger()

	if anns, ok := s.cache.Get(url); ok {
		logger.Debug().Msg("Annotations served from cache")
		return &AnnotateResult{Replacements: anns, Cached: true}, nil
	}

	rec, err := s.store.FindByURLWithAnnotations(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("lookup annotations: %w", err)
	}
	if rec != nil {
		observability.AnnotationCacheTotal.WithLabelValues("store_hit").Inc()
		s.cache.Set(url, rec.Replacements)
		logger.Debug().Str("id", rec.ID).Msg("Annotations served from store")
		return &AnnotateResult{Replacements: rec.Replacements, Cached: true}, nil
	}
	observability.AnnotationCacheTotal.WithLabelValues("miss").Inc()

	rec, err = s.store.FindByURLWithReport(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("lookup report: %w", err)
	}
	if rec != nil {
		anns := s.annotateRecord(ctx, rec)
		if len(anns) > 0 {
			if err := s.store.PatchAnnotations(ctx, rec.ID, anns); err != nil {
				return nil, fmt.Errorf("store annotations: %w", err)
			}
			s.cache.Set(url, anns)
			logger.Info().Str("id", rec.ID).Int("annotations", len(anns)).Msg("Annotated stored report")
			return &AnnotateResult{Replacements: anns, Cached: false}, nil
		}
		logger.Debug().Str("id", rec.ID).Msg("Stored report produced no annotations, running full pipeline")
	}

	rec, err = s.Investigate(ctx, url)
	if err != nil {
		return nil, err
	}

	return &AnnotateResult{Replacements: rec.Replacements, Cached: false}, nil
}

func (s *Service) annotateRecord(ctx context.Context, rec *model.InvestigationRecord) []model.Annotation {
	if rec.Report.HasClaims() {
		return s.annotator.FromReport(ctx, *rec.Report)
	}
	return s.annotator.FromRaw(ctx, rec.RawChatOutput)
}

// Investigate runs the full pipeline for url, stores the result and
// replaces any cached annotations for url. It never consults stored
// results.
func (s *Service) Investigate(ctx context.Context, url string) (*model.InvestigationRecord, error) {
	url = strings.TrimSpace(url)
	if _, err := tools.ValidateURL(url); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	started := s.now()
	page, err := s.scraper.Scrape(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("investigate %s: %w", url, err)
	}

	ctx, sess := s.bus.StartSession(ctx)
	defer s.bus.EndSession(sess.ID)

	logger := s.logger.With().Str("url", url).Str("session_id", sess.ID).Logger()
	logger.Info().Int("markdown_len", len(page.Content)).Msg("Investigation started")

	res, err := s.agent.Run(ctx, []llm.Message{{Role: llm.RoleUser, Content: agent.UserPrompt(page.Content)}})
	if err != nil {
		return nil, fmt.Errorf("investigate %s: %w", url, err)
	}

	rep := report.ParseReport(res.Text)

	var anns []model.Annotation
	if rep.HasClaims() {
		anns = s.annotator.FromReport(ctx, rep)
	} else {
		anns = s.annotator.FromRaw(ctx, rawAnnotationInput(page.Content, res.Text))
	}
	if anns == nil {
		anns = []model.Annotation{}
	}

	rec := &model.InvestigationRecord{
		URL:           model.StringPtr(url),
		SourceType:    model.SourceURL,
		InputMarkdown: page.Content,
		Events:        s.bus.SessionEvents(sess.ID),
		Report:        &rep,
		RawChatOutput: res.Text,
		Replacements:  anns,
		CreatedAt:     started,
		CompletedAt:   s.now(),
	}
	if err := s.store.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("store investigation: %w", err)
	}
	// newest record wins, so later annotate calls must see these annotations
	s.cache.Set(url, anns)

	logger.Info().
		Str("id", rec.ID).
		Int("steps", res.Steps).
		Str("outcome", res.Outcome.String()).
		Int("claims", len(rep.Claims)).
		Int("annotations", len(anns)).
		Msg("Investigation stored")

	return rec, nil
}

func rawAnnotationInput(markdown, analysis string) string {
	return "## Original Page Content:\n" + markdown + "\n\n## BS Analysis:\n" + analysis
}

// ReportLookup is the response of Report
type ReportLookup struct {
	Found     bool                    `json:"found"`
	Report    *model.StructuredReport `json:"report,omitempty"`
	CreatedAt *time.Time              `json:"createdAt,omitempty"`
}

// Report returns the newest stored report for url
func (s *Service) Report(ctx context.Context, url string) (*ReportLookup, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("%w: missing url", ErrInvalidInput)
	}

	rec, err := s.store.GetLatestByURL(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("lookup report: %w", err)
	}
	if rec == nil {
		return &ReportLookup{Found: false}, nil
	}

	created := rec.CreatedAt
	return &ReportLookup{Found: true, Report: rec.Report, CreatedAt: &created}, nil
}

// Parse scrapes url to markdown
func (s *Service) Parse(ctx context.Context, url string) (*tools.Page, error) {
	url = strings.TrimSpace(url)
	if _, err := tools.ValidateURL(url); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	page, err := s.scraper.Scrape(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	return page, nil
}

// TransformResult is the response of Transform
type TransformResult struct {
	HTML    string          `json:"html"`
	Matches int             `json:"matches"`
	Counts  annotate.Counts `json:"counts"`
}

// Transform annotates url and marks the annotations up in the given HTML
func (s *Service) Transform(ctx context.Context, url, html string) (*TransformResult, error) {
	if strings.TrimSpace(html) == "" {
		return nil, fmt.Errorf("%w: missing html", ErrInvalidInput)
	}

	res, err := s.Annotate(ctx, url)
	if err != nil {
		return nil, err
	}

	out, marks, err := annotate.ApplyHTML(html, res.Replacements)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	return &TransformResult{HTML: out, Matches: marks, Counts: annotate.Count(res.Replacements)}, nil
}
