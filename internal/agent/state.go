package agent

// State is a position in the investigation loop
type State int

const (
	StateIdle State = iota
	StateAwaitingModel
	StateExecutingTool
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingModel:
		return "awaiting_model"
	case StateExecutingTool:
		return "executing_tool"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Outcome says why a terminated loop stopped
type Outcome int

const (
	// OutcomeSuccess means the model answered without requesting tools
	OutcomeSuccess Outcome = iota + 1
	// OutcomeExhausted means the step budget ran out; the text is partial
	OutcomeExhausted
	// OutcomeFailed means a model call failed or the context ended
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeFailed:
		return "failed"
	default:
		return "none"
	}
}
