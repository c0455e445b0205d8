package extract

import "fmt"

// Sentinel tokens the model is instructed to emit when a page's visible text
// is cut off at the bottom. These are exact-match parsed; changing them breaks
// the wire contract with the prompt below.
const (
	eolMarker      = "{EOL}"
	incompleteOpen = "{INCOMPLETE:"
	markdownFence  = "```markdown"
	fenceClose     = "```"
)

const basePrompt = `Extract ALL text from this book page and convert it to clean markdown format.

FORMATTING RULES:
- Use ## for chapter titles, ### for sections, #### for subsections
- Preserve **bold** and *italic* formatting
- Convert lists to proper markdown (- or 1. 2. 3.)
- Tables should use markdown table syntax
- Preserve paragraph breaks (double newline)
- Remove headers/footers/page numbers

CRITICAL - HANDLING INCOMPLETE TEXT:
- If text at the BOTTOM of the page ends mid-word or mid-sentence, mark it with {EOL} tag
- Extract the incomplete fragment and add it after {INCOMPLETE: fragment text here}
- Example: "The quick brown fox jum{EOL}{INCOMPLETE: jum}"

OUTPUT FORMAT:
` + "```markdown" + `
[Your markdown content here]
` + "```" + `

If incomplete text detected:
{EOL}
{INCOMPLETE: incomplete text fragment}
`

// buildPrompt returns the extraction prompt, prefixed with the continuation
// instruction when a fragment carried over from the previous page.
func buildPrompt(priorFragment string) string {
	if priorFragment == "" {
		return basePrompt
	}
	return fmt.Sprintf(`CONTEXT FROM PREVIOUS PAGE:
The previous page ended with incomplete text: %q
Start your extraction by completing this text naturally, then continue with the rest of the page.

`, priorFragment) + basePrompt
}
