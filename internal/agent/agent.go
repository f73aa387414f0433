package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ppiankov/bsdetector/internal/events"
	"github.com/ppiankov/bsdetector/internal/llm"
	"github.com/ppiankov/bsdetector/internal/model"
	"github.com/ppiankov/bsdetector/internal/observability"
)

// DefaultMaxSteps bounds the number of model calls per investigation
const DefaultMaxSteps = 10

// ErrModelUnavailable wraps every model call failure
var ErrModelUnavailable = errors.New("model unavailable")

var errNoMessages = errors.New("agent: no messages")

// Tools is the tool registry offered to the model
type Tools interface {
	Definitions() []llm.ToolDef
	Execute(ctx context.Context, name, arguments string) string
}

// EventSink receives agent lifecycle events
type EventSink interface {
	Push(ctx context.Context, typ model.EventType, message string) model.AgentEvent
}

// Result is the outcome of one investigation loop
type Result struct {
	Text     string        // All step text in step order
	Steps    int           // Model calls made
	Outcome  Outcome
	Messages []llm.Message // Full conversation including tool turns
}

// Agent runs the bounded tool-calling investigation loop
type Agent struct {
	provider     llm.Provider
	tools        Tools
	events       EventSink
	maxSteps     int
	systemPrompt string
	logger       *zerolog.Logger
}

// New creates an agent. events may be nil.
func New(provider llm.Provider, tools Tools, sink EventSink, cfg model.AgentConfig, logger *zerolog.Logger) *Agent {
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	prompt := cfg.SystemPrompt
	if strings.TrimSpace(prompt) == "" {
		prompt = SystemPrompt
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Agent{
		provider:     provider,
		tools:        tools,
		events:       sink,
		maxSteps:     maxSteps,
		systemPrompt: prompt,
		logger:       logger,
	}
}

// Run investigates in batch mode and returns the concatenated text
func (a *Agent) Run(ctx context.Context, messages []llm.Message) (*Result, error) {
	return a.run(ctx, messages, nil)
}

// Stream investigates in streaming mode, passing text deltas to onText as
// the model produces them.
func (a *Agent) Stream(ctx context.Context, messages []llm.Message, onText func(string)) (*Result, error) {
	if onText == nil {
		onText = func(string) {}
	}
	return a.run(ctx, messages, onText)
}

// loop holds the state of one run
type loop struct {
	state   State
	outcome Outcome
	steps   int
	pending []llm.ToolCall
	conv    []llm.Message
	text    strings.Builder
	err     error
	logger  zerolog.Logger
}

func (l *loop) transition(to State) {
	l.logger.Debug().
		Str("from", l.state.String()).
		Str("to", to.String()).
		Int("step", l.steps).
		Msg("Agent state transition")
	l.state = to
}

func (l *loop) terminate(outcome Outcome, err error) {
	l.outcome = outcome
	l.err = err
	l.transition(StateTerminated)
}

func (a *Agent) run(ctx context.Context, messages []llm.Message, onText func(string)) (*Result, error) {
	l := &loop{
		state:  StateIdle,
		conv:   append([]llm.Message(nil), messages...),
		logger: a.logger.With().Str("session_id", events.SessionID(ctx)).Logger(),
	}

	if len(l.conv) == 0 {
		return nil, errNoMessages
	}

	a.push(ctx, model.EventWriting, "Agent started — analyzing claims...")

	for l.state != StateTerminated {
		switch l.state {
		case StateIdle:
			l.transition(StateAwaitingModel)

		case StateAwaitingModel:
			a.awaitModel(ctx, l, onText)

		case StateExecutingTool:
			for _, call := range l.pending {
				out := a.tools.Execute(ctx, call.Name, call.Arguments)
				l.conv = append(l.conv, llm.Message{
					Role:       llm.RoleTool,
					Content:    out,
					ToolCallID: call.ID,
					Name:       call.Name,
				})
			}
			l.pending = nil
			l.transition(StateAwaitingModel)
		}
	}

	observability.AgentSteps.Observe(float64(l.steps))
	observability.InvestigationsTotal.WithLabelValues(l.outcome.String()).Inc()

	if l.outcome == OutcomeFailed {
		l.logger.Error().Err(l.err).Int("steps", l.steps).Msg("Agent loop failed")
		return nil, l.err
	}
	l.logger.Info().Int("steps", l.steps).Str("outcome", l.outcome.String()).Msg("Agent loop finished")

	a.push(ctx, model.EventDone, "Report complete")

	return &Result{
		Text:     l.text.String(),
		Steps:    l.steps,
		Outcome:  l.outcome,
		Messages: l.conv,
	}, nil
}

func (a *Agent) awaitModel(ctx context.Context, l *loop, onText func(string)) {
	if l.steps >= a.maxSteps {
		l.terminate(OutcomeExhausted, nil)
		return
	}
	if err := ctx.Err(); err != nil {
		l.terminate(OutcomeFailed, fmt.Errorf("%w: %w", ErrModelUnavailable, err))
		return
	}

	l.steps++
	req := llm.ChatRequest{
		System:   a.systemPrompt,
		Messages: l.conv,
		Tools:    a.tools.Definitions(),
	}

	var (
		resp *llm.ChatResponse
		err  error
	)
	if onText != nil {
		resp, err = a.provider.ChatStream(ctx, req, onText)
	} else {
		resp, err = a.provider.Chat(ctx, req)
	}
	if err != nil {
		l.terminate(OutcomeFailed, fmt.Errorf("%w: step %d: %w", ErrModelUnavailable, l.steps, err))
		return
	}

	l.text.WriteString(resp.Content)
	l.conv = append(l.conv, llm.Message{
		Role:      llm.RoleAssistant,
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	})

	if len(resp.ToolCalls) == 0 {
		l.terminate(OutcomeSuccess, nil)
		return
	}

	l.pending = resp.ToolCalls
	l.transition(StateExecutingTool)
}

func (a *Agent) push(ctx context.Context, typ model.EventType, message string) {
	if a.events != nil {
		a.events.Push(ctx, typ, message)
	}
}
