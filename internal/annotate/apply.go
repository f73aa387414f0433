package annotate

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/ppiankov/bsdetector/internal/model"
)

// Match reports how often one annotation was applied
type Match struct {
	Find  string         `json:"find"`
	Type  model.Severity `json:"type"`
	Count int            `json:"count"`
}

// Counts holds per-severity totals for a page banner
type Counts struct {
	False      int `json:"false"`
	Suspicious int `json:"suspicious"`
	Verified   int `json:"verified"`
	Fluff      int `json:"fluff"`
}

// Total returns the sum of all severities
func (c Counts) Total() int {
	return c.False + c.Suspicious + c.Verified + c.Fluff
}

// Count tallies annotations by severity
func Count(anns []model.Annotation) Counts {
	var c Counts
	for _, a := range anns {
		switch a.Type {
		case model.SeverityFalse:
			c.False++
		case model.SeveritySuspicious:
			c.Suspicious++
		case model.SeverityVerified:
			c.Verified++
		case model.SeverityFluff:
			c.Fluff++
		}
	}
	return c
}

// span is one chosen occurrence of an annotation in a text
type span struct {
	start, end int
	ann        int // index into the annotation list
}

// findSpans locates literal occurrences of every annotation and keeps a
// non-overlapping subset. Earlier starts win, then longer finds, then the
// annotation listed first.
func findSpans(text string, anns []model.Annotation) []span {
	var all []span
	for i, a := range anns {
		if a.Find == "" {
			continue
		}
		for off := 0; off < len(text); {
			idx := strings.Index(text[off:], a.Find)
			if idx < 0 {
				break
			}
			start := off + idx
			all = append(all, span{start: start, end: start + len(a.Find), ann: i})
			off = start + len(a.Find)
		}
	}
	if len(all) == 0 {
		return nil
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].start != all[j].start {
			return all[i].start < all[j].start
		}
		if li, lj := all[i].end-all[i].start, all[j].end-all[j].start; li != lj {
			return li > lj
		}
		return all[i].ann < all[j].ann
	})

	chosen := make([]span, 0, len(all))
	end := 0
	for _, s := range all {
		if s.start < end {
			continue
		}
		chosen = append(chosen, s)
		end = s.end
	}
	return chosen
}

func tally(matches map[int]int, anns []model.Annotation) []Match {
	out := []Match{}
	for i, a := range anns {
		if n := matches[i]; n > 0 {
			out = append(out, Match{Find: a.Find, Type: a.Type, Count: n})
		}
	}
	return out
}

// Apply wraps every literal occurrence in plain text as
// [[type:find|annotation]]. Annotations with no occurrence are skipped.
func Apply(text string, anns []model.Annotation) (string, []Match) {
	spans := findSpans(text, anns)
	counts := make(map[int]int)

	var b strings.Builder
	last := 0
	for _, s := range spans {
		a := anns[s.ann]
		b.WriteString(text[last:s.start])
		fmt.Fprintf(&b, "[[%s:%s|%s]]", a.Type, text[s.start:s.end], a.Annotation)
		last = s.end
		counts[s.ann]++
	}
	b.WriteString(text[last:])

	return b.String(), tally(counts, anns)
}

// skipElements never have their text annotated
var skipElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Textarea: true,
	atom.Title:    true,
	atom.Head:     true,
	atom.Mark:     true,
	atom.Code:     true,
	atom.Pre:      true,
}

// ApplyHTML wraps literal occurrences inside text nodes with
// <mark class="bs-<type>" title="annotation">. It returns the rewritten
// markup and the number of marks inserted. A full document is returned as a
// document; anything else is treated as a body fragment.
func ApplyHTML(src string, anns []model.Annotation) (string, int, error) {
	var roots []*html.Node
	if isDocument(src) {
		doc, err := html.Parse(strings.NewReader(src))
		if err != nil {
			return "", 0, fmt.Errorf("parse html: %w", err)
		}
		roots = []*html.Node{doc}
	} else {
		body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
		nodes, err := html.ParseFragment(strings.NewReader(src), body)
		if err != nil {
			return "", 0, fmt.Errorf("parse html fragment: %w", err)
		}
		// Fragment nodes need a common parent so text nodes can be replaced
		for _, n := range nodes {
			body.AppendChild(n)
		}
		roots = []*html.Node{body}
	}

	marks := 0
	for _, root := range roots {
		marks += markNode(root, anns)
	}

	var buf bytes.Buffer
	for _, root := range roots {
		if root.Type == html.DocumentNode {
			if err := html.Render(&buf, root); err != nil {
				return "", 0, fmt.Errorf("render html: %w", err)
			}
			continue
		}
		for c := root.FirstChild; c != nil; c = c.NextSibling {
			if err := html.Render(&buf, c); err != nil {
				return "", 0, fmt.Errorf("render html: %w", err)
			}
		}
	}

	return buf.String(), marks, nil
}

func isDocument(src string) bool {
	head := strings.ToLower(strings.TrimSpace(src))
	return strings.HasPrefix(head, "<!doctype") || strings.HasPrefix(head, "<html")
}

func markNode(n *html.Node, anns []model.Annotation) int {
	if n.Type == html.ElementNode && skipElements[n.DataAtom] {
		return 0
	}
	if n.Type == html.TextNode {
		return markText(n, anns)
	}

	marks := 0
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		marks += markNode(c, anns)
	}
	return marks
}

// markText splits a text node around matched spans
func markText(n *html.Node, anns []model.Annotation) int {
	spans := findSpans(n.Data, anns)
	if len(spans) == 0 || n.Parent == nil {
		return 0
	}

	parent := n.Parent
	text := n.Data
	last := 0
	for _, s := range spans {
		if s.start > last {
			parent.InsertBefore(&html.Node{Type: html.TextNode, Data: text[last:s.start]}, n)
		}
		a := anns[s.ann]
		mark := &html.Node{
			Type:     html.ElementNode,
			Data:     "mark",
			DataAtom: atom.Mark,
			Attr: []html.Attribute{
				{Key: "class", Val: "bs-" + string(a.Type)},
				{Key: "title", Val: a.Annotation},
			},
		}
		mark.AppendChild(&html.Node{Type: html.TextNode, Data: text[s.start:s.end]})
		parent.InsertBefore(mark, n)
		last = s.end
	}
	if last < len(text) {
		parent.InsertBefore(&html.Node{Type: html.TextNode, Data: text[last:]}, n)
	}
	parent.RemoveChild(n)

	return len(spans)
}
