package llm

import "strings"

// StripCodeFence removes a surrounding markdown code fence such as
// ```json ... ``` from a model reply. Other text is returned trimmed.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// jsonInstruction is appended to the system prompt for providers without a
// native JSON response mode.
const jsonInstruction = "\n\nRespond with a single JSON object only. Do not wrap it in markdown."
