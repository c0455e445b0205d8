// Package extract turns page images into markdown via a vision-capable model.
package extract

import (
	"context"
	"fmt"
)

// PageResult is the outcome of extracting one page. Immutable after creation;
// cached verbatim between runs.
type PageResult struct {
	PageNumber     int    `json:"page_number"`
	Markdown       string `json:"markdown"`
	EndsIncomplete bool   `json:"ends_incomplete"`
	IncompleteText string `json:"incomplete_text,omitempty"`
}

// Extractor is the page extraction boundary. Implemented by Client and by
// MockExtractor for tests.
type Extractor interface {
	// ExtractPage extracts markdown from a page image. priorFragment is the
	// incomplete text carried over from the previous page, or empty.
	ExtractPage(ctx context.Context, image []byte, priorFragment string, pageNum int) (*PageResult, error)

	// TestConnection sends a minimal request and reports whether the remote
	// model answered. Used at startup to fail fast.
	TestConnection(ctx context.Context) bool
}

// PageError reports that extraction failed for one page after all retries.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d extraction failed: %v", e.Page, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}
