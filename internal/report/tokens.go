package report

import "strings"

// TokenKind tags one line of agent markdown
type TokenKind int

const (
	TokenLine TokenKind = iota
	TokenBlank
	TokenHeading2
	TokenHeading3
)

func (k TokenKind) String() string {
	switch k {
	case TokenHeading2:
		return "h2"
	case TokenHeading3:
		return "h3"
	case TokenBlank:
		return "blank"
	default:
		return "line"
	}
}

// Token is one typed line. Text is the content after any heading marker,
// Raw is the untouched line.
type Token struct {
	Kind TokenKind
	Text string
	Raw  string
}

// Tokenize splits raw markdown into typed line tokens
func Tokenize(raw string) []Token {
	lines := strings.Split(raw, "\n")
	tokens := make([]Token, 0, len(lines))

	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")

		switch {
		case strings.HasPrefix(line, "## "):
			tokens = append(tokens, Token{Kind: TokenHeading2, Text: strings.TrimPrefix(line, "## "), Raw: line})
		case strings.HasPrefix(line, "### "):
			tokens = append(tokens, Token{Kind: TokenHeading3, Text: strings.TrimPrefix(line, "### "), Raw: line})
		case strings.TrimSpace(line) == "":
			tokens = append(tokens, Token{Kind: TokenBlank, Raw: line})
		default:
			tokens = append(tokens, Token{Kind: TokenLine, Text: line, Raw: line})
		}
	}

	return tokens
}

// trimBlank drops leading and trailing blank tokens
func trimBlank(tokens []Token) []Token {
	start, end := 0, len(tokens)
	for start < end && tokens[start].Kind == TokenBlank {
		start++
	}
	for end > start && tokens[end-1].Kind == TokenBlank {
		end--
	}
	return tokens[start:end]
}

// joinRaw rebuilds the text covered by tokens
func joinRaw(tokens []Token) string {
	raws := make([]string, len(tokens))
	for i, t := range tokens {
		raws[i] = t.Raw
	}
	return strings.Join(raws, "\n")
}
