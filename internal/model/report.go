package model

import "time"

// SourceType records where the investigated markdown came from
type SourceType string

const (
	SourceURL SourceType = "url"
	SourcePDF SourceType = "pdf"
)

// InvestigationRecord is the persisted unit of work.
//
// Replacements is nil until annotations have been derived; a non-nil empty
// slice means they were derived and nothing was flagged. URL is nil for
// PDF-sourced input, which is never served from cache.
type InvestigationRecord struct {
	ID            string            `json:"id"`
	URL           *string           `json:"url"`
	SourceType    SourceType        `json:"sourceType"`
	InputMarkdown string            `json:"inputMarkdown"`
	Events        []AgentEvent      `json:"events"`
	Report        *StructuredReport `json:"report,omitempty"`
	RawChatOutput string            `json:"rawChatOutput"`
	Replacements  []Annotation      `json:"replacements"`
	CreatedAt     time.Time         `json:"createdAt"`
	CompletedAt   time.Time         `json:"completedAt"`
}

// HasAnnotations reports whether replacements were populated
func (r *InvestigationRecord) HasAnnotations() bool {
	return r.Replacements != nil
}

// URLString returns the record URL or "" for PDF input
func (r *InvestigationRecord) URLString() string {
	if r.URL == nil {
		return ""
	}
	return *r.URL
}

// StringPtr is a small helper for optional URLs
func StringPtr(s string) *string {
	return &s
}
