package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/jackzampolin/folio/internal/extract"
	"github.com/jackzampolin/folio/internal/pdf"
)

// PageSource produces page images in strict ascending order. Implemented by
// pdf.Handler.
type PageSource interface {
	Validate(path string) error
	PageCount(path string) (int, error)
	Pages(ctx context.Context, path string, start, end int) <-chan pdf.Page
}

// Request contains the parameters for one conversion run.
type Request struct {
	PDFPath    string
	OutputPath string
	StartPage  int  // 1-indexed; 0 means first page
	EndPage    int  // inclusive; 0 means last page
	Resume     bool // reuse cached page results
}

// RunStats summarizes a completed (possibly partially failed) run.
type RunStats struct {
	RunID              string `json:"run_id" yaml:"run_id"`
	TotalPages         int    `json:"total_pages" yaml:"total_pages"`
	Processed          int    `json:"processed" yaml:"processed"`
	Cached             int    `json:"cached" yaml:"cached"`
	Errors             int    `json:"errors" yaml:"errors"`
	ContextTransitions int    `json:"context_transitions" yaml:"context_transitions"`
	TotalChars         int    `json:"total_chars" yaml:"total_chars"`
	TotalWords         int    `json:"total_words" yaml:"total_words"`
	AvgCharsPerPage    int    `json:"avg_chars_per_page" yaml:"avg_chars_per_page"`
}

// Tunables are the boundary-heuristic knobs. The zero value selects the
// contractual defaults.
type Tunables struct {
	SimilarityThreshold float64 // heading dedup overlap ratio
	MaxFragmentLength   int     // longest token treated as a cut-off word
}

// Processor drives the page loop: cache check, extraction with context
// carryover, write-through caching, and stitching. Pages are processed on a
// single goroutine in strictly increasing order; context carryover and header
// deduplication both depend on it.
type Processor struct {
	source    PageSource
	extractor extract.Extractor
	cache     *Cache
	tun       Tunables
	log       *slog.Logger
}

// NewProcessor creates a Processor from its collaborators.
func NewProcessor(source PageSource, extractor extract.Extractor, cache *Cache, tun Tunables, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		source:    source,
		extractor: extractor,
		cache:     cache,
		tun:       tun,
		log:       logger,
	}
}

// Run converts the requested page range into a single markdown document.
// Per-page extraction failures are counted and skipped; only validation
// errors, interruption, and output write failures abort the run.
func (p *Processor) Run(ctx context.Context, req Request) (*RunStats, error) {
	runID := uuid.New().String()[:8]
	log := p.log.With("run_id", runID)
	log.Info("starting book processing", "pdf", req.PDFPath)

	start, end, err := p.resolvePageRange(req)
	if err != nil {
		return nil, err
	}
	log.Info("processing page range", "start", start, "end", end)

	key := CacheKey(req.PDFPath)
	cached := map[string]extract.PageResult{}
	if req.Resume {
		cached = p.cache.Load(key)
	}

	tracker := NewContextTracker(p.tun.MaxFragmentLength, log)
	stitcher := NewStitcher(p.tun.SimilarityThreshold, log)

	stats := &RunStats{
		RunID:      runID,
		TotalPages: end - start + 1,
	}

	for page := range p.source.Pages(ctx, req.PDFPath, start, end) {
		if ctx.Err() != nil {
			break
		}

		if page.Err != nil {
			stats.Errors++
			log.Error("failed to render page", "page", page.Number, "error", page.Err)
			continue
		}

		result, ok := p.pageResult(ctx, page, key, cached, tracker, stats, log)
		if !ok {
			continue
		}

		stitcher.Add(result.Markdown, page.Number)
		p.settleContext(tracker, result)
	}

	// Cancellation is observed between pages; the cache holds every page
	// that completed before the interrupt.
	if ctx.Err() != nil {
		log.Warn("processing interrupted", "cache_key", key)
		return stats, fmt.Errorf("%w: %v", ErrInterrupted, ctx.Err())
	}

	log.Info("stitching pages into final document")
	final := stitcher.StitchAll()

	if err := writeOutput(req.OutputPath, final); err != nil {
		return stats, err
	}
	log.Info("output written", "path", req.OutputPath, "chars", len(final))

	doc := stitcher.Stats()
	stats.ContextTransitions = len(tracker.History())
	stats.TotalChars = doc.TotalChars
	stats.TotalWords = doc.TotalWords
	stats.AvgCharsPerPage = doc.AvgCharsPerPage

	log.Info("processing complete",
		"processed", stats.Processed,
		"cached", stats.Cached,
		"errors", stats.Errors,
		"context_transitions", stats.ContextTransitions,
	)

	return stats, nil
}

// resolvePageRange validates the input document and normalizes the requested
// page range against its page count.
func (p *Processor) resolvePageRange(req Request) (start, end int, err error) {
	if err := p.source.Validate(req.PDFPath); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	total, err := p.source.PageCount(req.PDFPath)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	start = req.StartPage
	if start < 1 {
		start = 1
	}
	end = req.EndPage
	if end == 0 || end > total {
		end = total
	}
	if start > end {
		return 0, 0, fmt.Errorf("%w: start page %d is past end page %d", ErrValidation, start, end)
	}

	return start, end, nil
}

// pageResult returns the result for one page, from cache when available,
// otherwise by calling the extractor and writing through to the cache.
// Returns ok=false when the page failed and was skipped.
func (p *Processor) pageResult(
	ctx context.Context,
	page pdf.Page,
	key string,
	cached map[string]extract.PageResult,
	tracker *ContextTracker,
	stats *RunStats,
	log *slog.Logger,
) (*extract.PageResult, bool) {
	if r, ok := cached[PageKey(page.Number)]; ok {
		log.Debug("using cached result", "page", page.Number)
		stats.Cached++
		return &r, true
	}

	result, err := p.extractor.ExtractPage(ctx, page.Image, tracker.Current(), page.Number)
	if err != nil {
		if ctx.Err() != nil {
			// Interrupt, not a page failure; handled after the loop.
			return nil, false
		}
		stats.Errors++
		log.Error("failed to process page", "page", page.Number, "error", err)
		return nil, false
	}

	cached[PageKey(page.Number)] = *result
	if err := p.cache.Save(key, cached); err != nil {
		// The run continues; this page just loses its durability guarantee
		// and will be redone on the next resume.
		log.Warn("could not save cache", "page", page.Number, "error", err)
	}
	stats.Processed++

	return result, true
}

// settleContext updates the tracker after a page: carry the model's fragment,
// fall back to heuristic detection when the model didn't flag one, else clear.
func (p *Processor) settleContext(tracker *ContextTracker, result *extract.PageResult) {
	if result.EndsIncomplete && result.IncompleteText != "" {
		tracker.SetIncomplete(result.IncompleteText, result.PageNumber)
		return
	}
	if ok, fragment := tracker.FallbackDetect(result.Markdown); ok {
		tracker.SetIncomplete(fragment, result.PageNumber)
		return
	}
	tracker.Clear()
}

// writeOutput saves the final markdown, creating parent directories as needed.
func writeOutput(path, markdown string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(markdown), 0o644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
