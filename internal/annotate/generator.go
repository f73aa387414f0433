package annotate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ppiankov/bsdetector/internal/llm"
	"github.com/ppiankov/bsdetector/internal/model"
	"github.com/ppiankov/bsdetector/internal/observability"
	"github.com/ppiankov/bsdetector/internal/report"
)

// ErrInvalidReply is returned by Decode when the model output does not match
// the annotation schema
var ErrInvalidReply = errors.New("invalid annotation reply")

// Generator derives page annotations from an investigation
type Generator struct {
	provider llm.Provider
	logger   *zerolog.Logger
}

// NewGenerator creates a generator backed by provider
func NewGenerator(provider llm.Provider, logger *zerolog.Logger) *Generator {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Generator{provider: provider, logger: logger}
}

// FromReport generates annotations from the claims of a parsed report.
// A report without claims yields an empty list and no model call.
func (g *Generator) FromReport(ctx context.Context, rep model.StructuredReport) []model.Annotation {
	if !rep.HasClaims() {
		return []model.Annotation{}
	}
	return g.generate(ctx, report.ClaimsSummary(rep))
}

// FromRaw generates annotations from unparsed analysis text
func (g *Generator) FromRaw(ctx context.Context, raw string) []model.Annotation {
	if strings.TrimSpace(raw) == "" {
		return []model.Annotation{}
	}
	return g.generate(ctx, raw)
}

// generate never fails: any transport, decode or schema problem yields an
// empty list
func (g *Generator) generate(ctx context.Context, input string) []model.Annotation {
	resp, err := g.provider.Chat(ctx, llm.ChatRequest{
		System:   Prompt,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: input}},
		JSON:     true,
	})
	if err != nil {
		g.logger.Warn().Err(err).Msg("Annotation model call failed")
		observability.AnnotationsGenerated.WithLabelValues("error").Inc()
		return []model.Annotation{}
	}

	anns, err := Decode(resp.Content)
	if err != nil {
		g.logger.Warn().Err(err).Int("reply_len", len(resp.Content)).Msg("Discarding annotation reply")
		observability.AnnotationsGenerated.WithLabelValues("invalid").Inc()
		return []model.Annotation{}
	}

	outcome := "ok"
	if len(anns) == 0 {
		outcome = "empty"
	}
	observability.AnnotationsGenerated.WithLabelValues(outcome).Inc()
	g.logger.Debug().Int("count", len(anns)).Msg("Annotations generated")

	return anns
}

type reply struct {
	Replacements *[]replacement `json:"replacements"`
}

type replacement struct {
	Find       string   `json:"find"`
	Annotation string   `json:"annotation"`
	Type       string   `json:"type"`
	Details    []string `json:"details"`
}

// Decode validates a model reply. The batch is all-or-nothing: one invalid
// item rejects the whole reply.
func Decode(content string) ([]model.Annotation, error) {
	var r reply
	if err := json.Unmarshal([]byte(llm.StripCodeFence(content)), &r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReply, err)
	}
	if r.Replacements == nil {
		return nil, fmt.Errorf("%w: missing replacements", ErrInvalidReply)
	}

	out := make([]model.Annotation, 0, len(*r.Replacements))
	for i, item := range *r.Replacements {
		sev := model.Severity(strings.ToLower(strings.TrimSpace(item.Type)))
		switch {
		case strings.TrimSpace(item.Find) == "":
			return nil, fmt.Errorf("%w: item %d: empty find", ErrInvalidReply, i)
		case strings.TrimSpace(item.Annotation) == "":
			return nil, fmt.Errorf("%w: item %d: empty annotation", ErrInvalidReply, i)
		case !sev.Valid():
			return nil, fmt.Errorf("%w: item %d: unknown type %q", ErrInvalidReply, i, item.Type)
		}
		out = append(out, model.Annotation{
			Find:       item.Find,
			Annotation: strings.TrimSpace(item.Annotation),
			Type:       sev,
			Details:    item.Details,
		})
	}

	return out, nil
}
