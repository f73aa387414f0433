package model

// Severity classifies an annotation for display
type Severity string

const (
	SeverityFalse      Severity = "false"
	SeveritySuspicious Severity = "suspicious"
	SeverityVerified   Severity = "verified"
	SeverityFluff      Severity = "fluff"
)

// Valid reports whether s is one of the four known severities
func (s Severity) Valid() bool {
	switch s {
	case SeverityFalse, SeveritySuspicious, SeverityVerified, SeverityFluff:
		return true
	}
	return false
}

// Annotation is one inline correction for a page. Find is literal text,
// never a pattern.
type Annotation struct {
	Find       string   `json:"find"`
	Annotation string   `json:"annotation"`
	Type       Severity `json:"type"`
	Details    []string `json:"details,omitempty"`
}
