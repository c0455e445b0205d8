package extract

import "strings"

// ParseResponse parses a raw model response into a PageResult. Deterministic:
// the same raw text always yields the same result.
//
// The markdown body is the interior of the first ```markdown fenced block;
// when no such block exists the whole trimmed response is used. The {EOL}
// sentinel flags an incomplete page ending, with the fragment carried between
// "{INCOMPLETE:" and the next "}". The sentinel itself is always stripped
// from the markdown.
func ParseResponse(raw string, pageNum int) *PageResult {
	result := &PageResult{PageNumber: pageNum}

	if idx := strings.Index(raw, markdownFence); idx != -1 {
		start := idx + len(markdownFence)
		if end := strings.Index(raw[start:], fenceClose); end != -1 {
			result.Markdown = strings.TrimSpace(raw[start : start+end])
		}
	} else {
		result.Markdown = strings.TrimSpace(raw)
	}

	if strings.Contains(raw, eolMarker) {
		result.EndsIncomplete = true

		if open := strings.Index(raw, incompleteOpen); open != -1 {
			rest := raw[open+len(incompleteOpen):]
			if end := strings.Index(rest, "}"); end != -1 {
				result.IncompleteText = strings.TrimSpace(rest[:end])
			}
		}
	}

	result.Markdown = strings.TrimSpace(strings.ReplaceAll(result.Markdown, eolMarker, ""))

	return result
}
