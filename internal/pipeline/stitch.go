package pipeline

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
)

// DefaultSimilarityThreshold is the minimum character-overlap ratio for two
// heading lines to be considered duplicates. A contractual default, tunable
// through config but not worth re-deriving.
const DefaultSimilarityThreshold = 0.8

var (
	reHeader        = regexp.MustCompile(`^#{1,6}\s+`)
	reMarkdownPunct = regexp.MustCompile(`[#*_\[\]]`)
	reNewlines3     = regexp.MustCompile(`\n{3,}`)
	reNewlines4     = regexp.MustCompile(`\n{4,}`)
	reHeadingStart  = regexp.MustCompile(`\n(#{1,6}\s+)`)
	reBullet        = regexp.MustCompile(`\n[•\-*]\s+`)
	reLonePageNum   = regexp.MustCompile(`\n\s*\d+\s*\n`)
)

type stitchPage struct {
	number  int
	content string
}

// Stitcher accumulates per-page markdown and merges it into one document,
// dropping duplicate headings at page joins and normalizing whitespace and
// list syntax.
type Stitcher struct {
	pages     []stitchPage
	threshold float64
	log       *slog.Logger
}

// NewStitcher creates an empty stitcher. A non-positive threshold selects
// DefaultSimilarityThreshold.
func NewStitcher(threshold float64, logger *slog.Logger) *Stitcher {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stitcher{threshold: threshold, log: logger}
}

// Add appends a processed page. Duplicate page numbers are legal and are not
// deduplicated here; StitchAll re-sorts before assembly.
func (s *Stitcher) Add(content string, pageNum int) {
	s.pages = append(s.pages, stitchPage{number: pageNum, content: content})
}

// StitchAll combines all accumulated pages into the final markdown document.
func (s *Stitcher) StitchAll() string {
	if len(s.pages) == 0 {
		s.log.Warn("no pages to stitch")
		return ""
	}

	s.log.Info("stitching pages", "count", len(s.pages))

	// Producers don't guarantee insertion order.
	sort.SliceStable(s.pages, func(i, j int) bool {
		return s.pages[i].number < s.pages[j].number
	})

	stitched := make([]string, 0, len(s.pages))
	previousLastLine := ""

	for i, page := range s.pages {
		content := cleanPageContent(page.content)

		if i > 0 {
			content = s.mergeBoundary(previousLastLine, content)
		}

		stitched = append(stitched, content)

		lines := strings.Split(strings.TrimSpace(content), "\n")
		previousLastLine = lines[len(lines)-1]
	}

	return finalCleanup(strings.Join(stitched, "\n\n"))
}

// cleanPageContent normalizes one page before assembly.
func cleanPageContent(content string) string {
	content = reNewlines3.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}

// mergeBoundary drops the current page's first line when it repeats the
// heading that closed the previous page (chapter titles re-printed across a
// page break).
func (s *Stitcher) mergeBoundary(previousLastLine, current string) string {
	if previousLastLine == "" || current == "" {
		return current
	}

	lines := strings.Split(current, "\n")
	firstLine := strings.TrimSpace(lines[0])
	previous := strings.TrimSpace(previousLastLine)

	if isHeader(previous) && isHeader(firstLine) && similarText(previous, firstLine, s.threshold) {
		s.log.Debug("removing duplicate header", "line", firstLine)
		return strings.Join(lines[1:], "\n")
	}

	return current
}

// isHeader reports whether line is a markdown heading.
func isHeader(line string) bool {
	return reHeader.MatchString(line)
}

// similarText is a cheap approximate-equality test for heading lines, not an
// edit distance. A false positive drops a true duplicate; a false negative
// leaves a harmless repeated heading.
func similarText(text1, text2 string, threshold float64) bool {
	clean1 := strings.ToLower(reMarkdownPunct.ReplaceAllString(text1, ""))
	clean2 := strings.ToLower(reMarkdownPunct.ReplaceAllString(text2, ""))

	if clean1 == "" || clean2 == "" {
		return false
	}

	shorter, longer := clean1, clean2
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if strings.Contains(longer, shorter) {
		return true
	}

	// Position-wise character overlap over the shared prefix length.
	r1, r2 := []rune(clean1), []rune(clean2)
	n := len(r1)
	if len(r2) < n {
		n = len(r2)
	}
	common := 0
	for i := 0; i < n; i++ {
		if r1[i] == r2[i] {
			common++
		}
	}
	maxLen := len(r1)
	if len(r2) > maxLen {
		maxLen = len(r2)
	}

	return float64(common)/float64(maxLen) >= threshold
}

// finalCleanup normalizes the assembled document.
func finalCleanup(markdown string) string {
	// Collapse excessive blank lines
	markdown = reNewlines4.ReplaceAllString(markdown, "\n\n\n")

	// Ensure a blank line precedes headings
	markdown = reHeadingStart.ReplaceAllString(markdown, "\n\n$1")

	// Normalize bullet markers to a single dash
	markdown = reBullet.ReplaceAllString(markdown, "\n- ")

	// Drop lone page numbers left over from OCR
	markdown = reLonePageNum.ReplaceAllString(markdown, "\n")

	return strings.TrimSpace(markdown)
}

// DocStats summarizes the accumulated raw content.
type DocStats struct {
	TotalPages      int `json:"total_pages" yaml:"total_pages"`
	TotalChars      int `json:"total_chars" yaml:"total_chars"`
	TotalWords      int `json:"total_words" yaml:"total_words"`
	AvgCharsPerPage int `json:"avg_chars_per_page" yaml:"avg_chars_per_page"`
}

// Stats reports totals over the raw (pre-cleanup) page contents.
func (s *Stitcher) Stats() DocStats {
	if len(s.pages) == 0 {
		return DocStats{}
	}

	contents := make([]string, len(s.pages))
	for i, p := range s.pages {
		contents[i] = p.content
	}
	all := strings.Join(contents, " ")

	return DocStats{
		TotalPages:      len(s.pages),
		TotalChars:      len(all),
		TotalWords:      len(strings.Fields(all)),
		AvgCharsPerPage: len(all) / len(s.pages),
	}
}
