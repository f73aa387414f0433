package tools

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

var (
	headingLevels = map[string]int{"h1": 1, "h2": 2, "h3": 3, "h4": 4, "h5": 5, "h6": 6}

	skippedTags = map[string]bool{
		"head": true, "script": true, "style": true, "noscript": true, "template": true,
		"nav": true, "footer": true, "aside": true, "form": true,
		"svg": true, "iframe": true, "button": true, "select": true,
	}

	blockTags = map[string]bool{
		"p": true, "div": true, "section": true, "article": true, "main": true,
		"header": true, "figure": true, "figcaption": true, "table": true,
		"dl": true, "dt": true, "dd": true, "address": true,
	}

	blankRuns = regexp.MustCompile(`\n{3,}`)
)

// HTMLToMarkdown converts an HTML fragment or document to markdown. Links are
// resolved against base when it is set; non-http links are dropped.
func HTMLToMarkdown(htmlContent string, base *url.URL) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	w := &mdWriter{base: base}
	w.walk(doc)
	return cleanMarkdown(w.sb.String())
}

type listState struct {
	ordered bool
	n       int
}

type mdWriter struct {
	sb    strings.Builder
	base  *url.URL
	lists []listState
	pre   int
}

func (w *mdWriter) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.text(n.Data)
		return
	case html.ElementNode:
		w.element(n)
		return
	}
	w.children(n)
}

func (w *mdWriter) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

func (w *mdWriter) element(n *html.Node) {
	tag := n.Data
	if skippedTags[tag] {
		return
	}

	if level, ok := headingLevels[tag]; ok {
		text := strings.TrimSpace(w.capture(n))
		if text == "" {
			return
		}
		w.block()
		w.sb.WriteString(strings.Repeat("#", level) + " " + singleLine(text))
		w.block()
		return
	}

	switch tag {
	case "br":
		w.sb.WriteString("\n")
	case "hr":
		w.block()
		w.sb.WriteString("---")
		w.block()
	case "strong", "b":
		w.wrap(n, "**")
	case "em", "i":
		w.wrap(n, "*")
	case "code":
		if w.pre > 0 {
			w.children(n)
			return
		}
		w.wrap(n, "`")
	case "pre":
		w.block()
		w.sb.WriteString("```\n")
		w.pre++
		w.children(n)
		w.pre--
		w.newline()
		w.sb.WriteString("```")
		w.block()
	case "a":
		text := singleLine(strings.TrimSpace(w.capture(n)))
		href := resolveURL(w.base, attr(n, "href"))
		switch {
		case text == "":
		case href == "":
			w.text(text)
		default:
			w.text(fmt.Sprintf("[%s](%s)", text, href))
		}
	case "ul", "ol":
		w.lists = append(w.lists, listState{ordered: tag == "ol"})
		w.newline()
		w.children(n)
		w.lists = w.lists[:len(w.lists)-1]
		if len(w.lists) == 0 {
			w.block()
		} else {
			w.newline()
		}
	case "li":
		w.newline()
		if len(w.lists) == 0 {
			w.sb.WriteString("- ")
			w.children(n)
			return
		}
		top := &w.lists[len(w.lists)-1]
		top.n++
		w.sb.WriteString(strings.Repeat("  ", len(w.lists)-1))
		if top.ordered {
			fmt.Fprintf(&w.sb, "%d. ", top.n)
		} else {
			w.sb.WriteString("- ")
		}
		w.children(n)
	case "blockquote":
		inner := cleanMarkdown(w.capture(n))
		if inner == "" {
			return
		}
		w.block()
		for i, line := range strings.Split(inner, "\n") {
			if i > 0 {
				w.sb.WriteString("\n")
			}
			w.sb.WriteString("> " + line)
		}
		w.block()
	case "tr":
		var cells []string
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
				cells = append(cells, singleLine(strings.TrimSpace(w.capture(c))))
			}
		}
		if len(cells) == 0 {
			return
		}
		w.newline()
		w.sb.WriteString("| " + strings.Join(cells, " | ") + " |")
		w.newline()
	case "img":
		// images carry no claims
	default:
		if blockTags[tag] {
			w.block()
			w.children(n)
			w.block()
			return
		}
		w.children(n)
	}
}

func (w *mdWriter) text(s string) {
	if w.pre > 0 {
		w.sb.WriteString(s)
		return
	}
	s = collapseSpace(s)
	if s == "" {
		return
	}
	if strings.HasPrefix(s, " ") && w.atLineStart() {
		s = strings.TrimLeft(s, " ")
	}
	w.sb.WriteString(s)
}

func (w *mdWriter) wrap(n *html.Node, marker string) {
	inner := w.capture(n)
	trimmed := strings.TrimSpace(inner)
	if trimmed == "" {
		w.text(inner)
		return
	}
	if strings.HasPrefix(inner, " ") || strings.HasPrefix(inner, "\n") {
		w.text(" ")
	}
	w.text(marker + singleLine(trimmed) + marker)
	if strings.HasSuffix(inner, " ") || strings.HasSuffix(inner, "\n") {
		w.text(" ")
	}
}

// capture renders the children of n into a separate buffer
func (w *mdWriter) capture(n *html.Node) string {
	sub := &mdWriter{base: w.base, pre: w.pre}
	sub.children(n)
	return sub.sb.String()
}

func (w *mdWriter) atLineStart() bool {
	s := w.sb.String()
	return s == "" || strings.HasSuffix(s, "\n") || strings.HasSuffix(s, " ")
}

func (w *mdWriter) newline() {
	s := w.sb.String()
	if s != "" && !strings.HasSuffix(s, "\n") {
		w.sb.WriteString("\n")
	}
}

func (w *mdWriter) block() {
	s := w.sb.String()
	switch {
	case s == "", strings.HasSuffix(s, "\n\n"):
	case strings.HasSuffix(s, "\n"):
		w.sb.WriteString("\n")
	default:
		w.sb.WriteString("\n\n")
	}
}

func collapseSpace(s string) string {
	var b strings.Builder
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace {
			b.WriteByte(' ')
			inSpace = false
		}
		b.WriteRune(r)
	}
	if inSpace {
		b.WriteByte(' ')
	}
	return b.String()
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func cleanMarkdown(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	s = strings.Join(lines, "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

// resolveURL resolves a relative URL against a base URL. Anchors, scripts,
// mail links and non-http schemes resolve to "".
func resolveURL(base *url.URL, href string) string {
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") {
		return ""
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := parsed
	if base != nil {
		resolved = base.ResolveReference(parsed)
	}

	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}

	return resolved.String()
}
