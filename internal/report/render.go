package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/russross/blackfriday/v2"

	"github.com/ppiankov/bsdetector/internal/model"
)

// ClaimsSummary formats claims as the annotation prompt expects them
func ClaimsSummary(rep model.StructuredReport) string {
	blocks := make([]string, 0, len(rep.Claims))
	for _, c := range rep.Claims {
		analysis := c.Analysis
		if analysis == "" {
			analysis = "N/A"
		}
		blocks = append(blocks, fmt.Sprintf("Claim: \"%s\"\nVerdict: %s\nAnalysis: %s", c.Text, c.Verdict, analysis))
	}
	return strings.Join(blocks, "\n\n")
}

// RenderMarkdown rebuilds canonical markdown from a structured report.
// A report without recognized structure falls back to its raw text.
func RenderMarkdown(rep model.StructuredReport) string {
	if rep.OverallAssessment == "" && len(rep.Claims) == 0 &&
		len(rep.ChecksOut) == 0 && len(rep.RedFlags) == 0 {
		return rep.RawMarkdown
	}

	var b strings.Builder

	b.WriteString("## Overall Assessment\n\n")
	b.WriteString(rep.OverallAssessment)
	b.WriteString("\n\n")

	if len(rep.Claims) > 0 {
		b.WriteString("## Claims Analysis\n\n")
		for _, c := range rep.Claims {
			fmt.Fprintf(&b, "### \"%s\"\n", c.Text)
			if c.Verdict != "" {
				fmt.Fprintf(&b, "**Verdict: %s**\n", c.Verdict)
			}
			if c.Analysis != "" {
				b.WriteString(c.Analysis)
				b.WriteString("\n")
			}
			if len(c.Sources) > 0 {
				fmt.Fprintf(&b, "**Sources:** %s\n", strings.Join(c.Sources, ", "))
			}
			b.WriteString("\n")
		}
	}

	if len(rep.ChecksOut) > 0 {
		b.WriteString("## What Checks Out\n\n")
		for _, item := range rep.ChecksOut {
			fmt.Fprintf(&b, "- %s\n", item)
		}
		b.WriteString("\n")
	}

	if len(rep.RedFlags) > 0 {
		b.WriteString("## Top Red Flags\n\n")
		for i, item := range rep.RedFlags {
			fmt.Fprintf(&b, "%d. %s\n", i+1, item)
		}
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

// RenderHTML converts report markdown to an HTML fragment
func RenderHTML(markdown string) []byte {
	extensions := blackfriday.CommonExtensions | blackfriday.AutoHeadingIDs
	renderer := blackfriday.NewHTMLRenderer(blackfriday.HTMLRendererParameters{
		Flags: blackfriday.CommonHTMLFlags,
	})
	return blackfriday.Run([]byte(markdown), blackfriday.WithRenderer(renderer), blackfriday.WithExtensions(extensions))
}

// RenderTerminal styles markdown for a terminal, falling back to the
// plain text if the renderer cannot be built.
func RenderTerminal(markdown string, width int) string {
	if width <= 0 {
		width = 80
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return markdown
	}
	out, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}
