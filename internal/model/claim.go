package model

// Claim is one factual assertion pulled out of the agent report
type Claim struct {
	Text     string   `json:"claim"`              // Claim as it appeared in the source
	Verdict  string   `json:"verdict"`            // Short judgment, e.g. "False", "Checks out"
	Analysis string   `json:"analysis,omitempty"` // Optional explanation, empty means absent
	Sources  []string `json:"sources,omitempty"`  // Evidence URLs in citation order
}

// StructuredReport is the normalized result of one investigation.
// It is a pure function of RawMarkdown.
type StructuredReport struct {
	OverallAssessment string   `json:"overallAssessment"`
	Claims            []Claim  `json:"claims"`
	ChecksOut         []string `json:"checksOut"`
	RedFlags          []string `json:"redFlags"` // Ordered by the agent's stated severity
	RawMarkdown       string   `json:"rawMarkdown"`
}

// NewStructuredReport returns an empty report holding raw.
// Slices are non-nil so they encode as [] rather than null.
func NewStructuredReport(raw string) StructuredReport {
	return StructuredReport{
		Claims:      []Claim{},
		ChecksOut:   []string{},
		RedFlags:    []string{},
		RawMarkdown: raw,
	}
}

// HasClaims reports whether claim extraction produced anything
func (r *StructuredReport) HasClaims() bool {
	return r != nil && len(r.Claims) > 0
}
