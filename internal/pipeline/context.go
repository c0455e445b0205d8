package pipeline

import (
	"log/slog"
	"strings"
	"unicode"
)

// Punctuation that marks a line ending as complete.
const completingPunctuation = `.!?,;:)"'`

// DefaultMaxFragmentLength bounds how long a trailing token can be and still
// be considered a broken hyphenated word. A contractual default, tunable
// through config but not worth re-deriving.
const DefaultMaxFragmentLength = 15

// ContextEntry records one fragment carried across a page boundary.
type ContextEntry struct {
	Page     int    `json:"page"`
	Fragment string `json:"fragment"`
}

// ContextTracker holds the incomplete text fragment carried from the end of
// one page into the next page's extraction prompt. Two states: idle (no
// fragment) and carrying; SetIncomplete and Clear are the only transitions.
type ContextTracker struct {
	current     string
	history     []ContextEntry
	maxFragment int
	log         *slog.Logger
}

// NewContextTracker creates an empty tracker. A non-positive maxFragment
// selects DefaultMaxFragmentLength.
func NewContextTracker(maxFragment int, logger *slog.Logger) *ContextTracker {
	if maxFragment <= 0 {
		maxFragment = DefaultMaxFragmentLength
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextTracker{maxFragment: maxFragment, log: logger}
}

// SetIncomplete records fragment as the current carryover and appends it to
// the history. Any previous fragment is overwritten; the caller settles each
// page with exactly one SetIncomplete or Clear.
func (t *ContextTracker) SetIncomplete(fragment string, pageNum int) {
	t.current = strings.TrimSpace(fragment)
	t.history = append(t.history, ContextEntry{Page: pageNum, Fragment: t.current})
	t.log.Debug("stored page context", "page", pageNum, "fragment", t.current)
}

// Current returns the fragment to inject into the next extraction request,
// or "" when no fragment is carried. Non-consuming.
func (t *ContextTracker) Current() string {
	return t.current
}

// Clear drops the current fragment; used when a page ends cleanly.
func (t *ContextTracker) Clear() {
	t.current = ""
}

// History returns all fragments recorded this run, in order.
func (t *ContextTracker) History() []ContextEntry {
	return t.history
}

// FallbackDetect heuristically checks markdown for an incomplete ending, for
// pages where the model did not flag one. A trailing short hyphenated token
// that ends in a letter is treated as a broken word. Conservative by intent:
// a missed fragment costs a rough page join, a false positive would truncate
// real content.
func (t *ContextTracker) FallbackDetect(markdown string) (bool, string) {
	trimmed := strings.TrimSpace(markdown)
	if trimmed == "" {
		return false, ""
	}

	lines := strings.Split(trimmed, "\n")
	lastLine := strings.TrimSpace(lines[len(lines)-1])
	if lastLine == "" {
		return false, ""
	}

	runes := []rune(lastLine)
	if strings.ContainsRune(completingPunctuation, runes[len(runes)-1]) {
		return false, ""
	}

	words := strings.Fields(lastLine)
	if len(words) == 0 {
		return false, ""
	}
	lastWord := words[len(words)-1]
	wordRunes := []rune(lastWord)

	// A token ending in a letter ("self-con") or in a hyphen right after a
	// letter ("break-") can both be the front half of a hyphenated word.
	last := wordRunes[len(wordRunes)-1]
	brokenEnding := unicode.IsLetter(last) ||
		(last == '-' && len(wordRunes) >= 2 && unicode.IsLetter(wordRunes[len(wordRunes)-2]))

	if len(wordRunes) < t.maxFragment && brokenEnding && strings.Contains(lastWord, "-") {
		return true, lastWord
	}

	return false, ""
}
