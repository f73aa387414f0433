// Package report turns the agent's free-form markdown into a structured
// report. Parsing is pure and deterministic: the same input always yields
// the same output, and missing structure degrades to empty fields.
package report

import (
	"regexp"
	"strings"

	"github.com/ppiankov/bsdetector/internal/model"
)

// Section keys, matched against the lowercased H2 title
const (
	sectionOverall     = "overall assessment"
	sectionOverallAlt  = "overall"
	sectionClaims      = "claims analysis"
	sectionClaimsAlt   = "claims"
	sectionChecksOut   = "what checks out"
	sectionRedFlags    = "top red flags"
	sectionRedFlagsAlt = "red flags"
)

var recognizedSections = map[string]bool{
	sectionOverall:     true,
	sectionOverallAlt:  true,
	sectionClaims:      true,
	sectionClaimsAlt:   true,
	sectionChecksOut:   true,
	sectionRedFlags:    true,
	sectionRedFlagsAlt: true,
}

var (
	verdictPattern        = regexp.MustCompile(`\*\*Verdict:\s*(.+?)\*\*`)
	sourcesPattern        = regexp.MustCompile(`\*\*Sources?:\*\*\s*(.+)`)
	urlPattern            = regexp.MustCompile(`https?://[^\s),\]]+`)
	bulletPattern         = regexp.MustCompile(`^\s*[-*\d.]+\s*`)
	// a trailing verdict only counts after a closing quote, bold marker or
	// spaced separator, so "verdict:" inside the claim itself survives
	headerVerdictFragment = regexp.MustCompile(`(?i)(?:["”]|\*\*|\s[-–—|])\s*(?:[-–—:|]\s*)*(?:\*\*)?\s*verdict:.*$`)
)

const quoteChars = "\"“”"

// Outcome is the result of parsing: either Recognized or Degraded
type Outcome interface {
	// Report collapses the outcome to the external report shape
	Report() model.StructuredReport
	outcome()
}

// Recognized means at least one known section heading was found
type Recognized struct {
	Structured model.StructuredReport
}

func (r Recognized) Report() model.StructuredReport { return r.Structured }
func (Recognized) outcome() {}

// Degraded means no known section was found; only raw text is usable
type Degraded struct {
	Raw string
}

func (d Degraded) Report() model.StructuredReport { return model.NewStructuredReport(d.Raw) }
func (Degraded) outcome() {}

// ParseReport parses raw agent output into a StructuredReport
func ParseReport(raw string) model.StructuredReport {
	return Parse(raw).Report()
}

// Parse runs the tokenizer and section recognizer over raw
func Parse(raw string) Outcome {
	sections := splitSections(Tokenize(raw))

	found := false
	for title := range sections {
		if recognizedSections[title] {
			found = true
			break
		}
	}
	if !found {
		return Degraded{Raw: raw}
	}

	rep := model.NewStructuredReport(raw)
	if body := lookup(sections, sectionOverall, sectionOverallAlt); len(body) > 0 {
		rep.OverallAssessment = strings.TrimSpace(joinRaw(body))
	}
	rep.Claims = parseClaims(lookup(sections, sectionClaims, sectionClaimsAlt))
	rep.ChecksOut = parseList(lookup(sections, sectionChecksOut))
	rep.RedFlags = parseList(lookup(sections, sectionRedFlags, sectionRedFlagsAlt))

	return Recognized{Structured: rep}
}

// splitSections groups body tokens under their lowercased H2 title.
// A repeated title keeps the later body.
func splitSections(tokens []Token) map[string][]Token {
	sections := make(map[string][]Token)

	title := ""
	var body []Token
	inSection := false

	flush := func() {
		if inSection && title != "" {
			sections[title] = trimBlank(body)
		}
	}

	for _, tok := range tokens {
		if tok.Kind == TokenHeading2 {
			flush()
			title = strings.ToLower(strings.TrimSpace(tok.Text))
			body = nil
			inSection = true
			continue
		}
		if inSection {
			body = append(body, tok)
		}
	}
	flush()

	return sections
}

// lookup returns the first non-empty body among keys
func lookup(sections map[string][]Token, keys ...string) []Token {
	for _, key := range keys {
		if body := sections[key]; len(body) > 0 {
			return body
		}
	}
	return nil
}

// parseClaims splits the claims body on H3 headings. Text before the first
// H3 forms a block of its own, headed by its first line.
func parseClaims(body []Token) []model.Claim {
	claims := []model.Claim{}

	var blocks [][]Token
	var current []Token
	for _, tok := range body {
		if tok.Kind == TokenHeading3 && current != nil {
			blocks = append(blocks, current)
			current = nil
		}
		current = append(current, tok)
	}
	if current != nil {
		blocks = append(blocks, current)
	}

	for _, block := range blocks {
		if len(trimBlank(block)) == 0 {
			continue
		}
		header := block[0].Text
		if block[0].Kind != TokenHeading3 {
			header = block[0].Raw
		}
		text := claimText(header)
		if text == "" {
			continue
		}
		claims = append(claims, parseClaimBody(text, block[1:]))
	}

	return claims
}

// claimText strips an inline verdict fragment and surrounding quotes
func claimText(header string) string {
	text := headerVerdictFragment.ReplaceAllString(strings.TrimSpace(header), "")
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "**")
	text = strings.TrimSuffix(text, "**")
	for _, q := range quoteChars {
		text = strings.TrimPrefix(text, string(q))
		text = strings.TrimSuffix(text, string(q))
	}
	return strings.TrimSpace(text)
}

func parseClaimBody(text string, body []Token) model.Claim {
	raw := joinRaw(body)
	claim := model.Claim{Text: text}

	if m := verdictPattern.FindStringSubmatch(raw); m != nil {
		claim.Verdict = strings.TrimSpace(m[1])
	}

	if m := sourcesPattern.FindStringSubmatch(raw); m != nil {
		if urls := urlPattern.FindAllString(m[1], -1); len(urls) > 0 {
			claim.Sources = urls
		}
	}

	var analysis []string
	for _, tok := range body {
		line := tok.Raw
		if strings.TrimSpace(line) == "" {
			continue
		}
		if strings.Contains(line, "**Verdict:") ||
			strings.Contains(line, "**Sources:") ||
			strings.Contains(line, "**Source:") {
			continue
		}
		analysis = append(analysis, line)
	}
	claim.Analysis = strings.TrimSpace(strings.Join(analysis, "\n"))

	return claim
}

// parseList strips bullet or number markers and drops blank entries
func parseList(body []Token) []string {
	items := []string{}
	for _, tok := range body {
		item := strings.TrimSpace(bulletPattern.ReplaceAllString(tok.Raw, ""))
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
