package model

// EventType is the closed set of observable agent steps
type EventType string

const (
	EventSearch       EventType = "search"
	EventSearchResult EventType = "search-result"
	EventScrape       EventType = "scrape"
	EventScrapeResult EventType = "scrape-result"
	EventWriting      EventType = "writing"
	EventDone         EventType = "done"
	EventConnected    EventType = "connected"
)

// Valid reports whether t belongs to the known event set
func (t EventType) Valid() bool {
	switch t {
	case EventSearch, EventSearchResult, EventScrape, EventScrapeResult,
		EventWriting, EventDone, EventConnected:
		return true
	}
	return false
}

// AgentEvent is one step of an investigation as seen by observers
type AgentEvent struct {
	Type      EventType `json:"type"`
	Message   string    `json:"message"`
	Timestamp int64     `json:"timestamp"` // Unix milliseconds
	Seq       int64     `json:"-"`         // Absolute position in the global log
}
