package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackzampolin/folio/internal/extract"
	"github.com/jackzampolin/folio/internal/pdf"
)

// stubSource is a PageSource backed by nothing; every page renders to a
// placeholder image.
type stubSource struct {
	pages int
}

func (s *stubSource) Validate(path string) error {
	if s.pages == 0 {
		return fmt.Errorf("invalid PDF file: %s", path)
	}
	return nil
}

func (s *stubSource) PageCount(path string) (int, error) {
	return s.pages, nil
}

func (s *stubSource) Pages(ctx context.Context, path string, start, end int) <-chan pdf.Page {
	out := make(chan pdf.Page, 1)
	go func() {
		defer close(out)
		for n := start; n <= end; n++ {
			select {
			case out <- pdf.Page{Number: n, Image: []byte("img")}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func newTestProcessor(t *testing.T, source PageSource, mock *extract.MockExtractor, cacheDir string) *Processor {
	t.Helper()
	cache, err := NewCache(cacheDir, nil)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return NewProcessor(source, mock, cache, Tunables{}, nil)
}

func TestProcessor_Run(t *testing.T) {
	dir := t.TempDir()
	mock := extract.NewMockExtractor()
	p := newTestProcessor(t, &stubSource{pages: 3}, mock, filepath.Join(dir, "cache"))

	out := filepath.Join(dir, "out", "book.md")
	stats, err := p.Run(context.Background(), Request{
		PDFPath:    "/books/test.pdf",
		OutputPath: out,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if stats.TotalPages != 3 || stats.Processed != 3 || stats.Errors != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	for n := 1; n <= 3; n++ {
		if !strings.Contains(string(data), fmt.Sprintf("Page %d content.", n)) {
			t.Errorf("missing page %d in output", n)
		}
	}
}

func TestProcessor_ValidationError(t *testing.T) {
	dir := t.TempDir()
	mock := extract.NewMockExtractor()
	p := newTestProcessor(t, &stubSource{pages: 0}, mock, dir)

	_, err := p.Run(context.Background(), Request{PDFPath: "/books/bad.pdf", OutputPath: filepath.Join(dir, "out.md")})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	if mock.CallCount() != 0 {
		t.Error("expected no extraction calls before validation")
	}
}

func TestProcessor_ContextCarryover(t *testing.T) {
	dir := t.TempDir()
	mock := extract.NewMockExtractor()
	mock.Results[1] = &extract.PageResult{
		Markdown:       "The quick brown fox jum",
		EndsIncomplete: true,
		IncompleteText: "jum",
	}
	mock.Results[2] = &extract.PageResult{Markdown: "jumped over the fence."}

	p := newTestProcessor(t, &stubSource{pages: 2}, mock, filepath.Join(dir, "cache"))
	stats, err := p.Run(context.Background(), Request{
		PDFPath:    "/books/test.pdf",
		OutputPath: filepath.Join(dir, "book.md"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(mock.Calls) != 2 {
		t.Fatalf("expected 2 extraction calls, got %d", len(mock.Calls))
	}
	if mock.Calls[0].PriorFragment != "" {
		t.Errorf("page 1 should carry no context, got %q", mock.Calls[0].PriorFragment)
	}
	if mock.Calls[1].PriorFragment != "jum" {
		t.Errorf("page 2 should carry fragment jum, got %q", mock.Calls[1].PriorFragment)
	}
	if stats.ContextTransitions != 1 {
		t.Errorf("expected 1 context transition, got %d", stats.ContextTransitions)
	}
}

func TestProcessor_PartialFailure(t *testing.T) {
	dir := t.TempDir()
	mock := extract.NewMockExtractor()
	mock.FailPages[5] = true

	cacheDir := filepath.Join(dir, "cache")
	p := newTestProcessor(t, &stubSource{pages: 10}, mock, cacheDir)

	stats, err := p.Run(context.Background(), Request{
		PDFPath:    "/books/test.pdf",
		OutputPath: filepath.Join(dir, "book.md"),
	})
	if err != nil {
		t.Fatalf("run should tolerate single-page failure: %v", err)
	}

	if stats.Errors != 1 {
		t.Errorf("expected 1 error, got %d", stats.Errors)
	}
	if stats.Processed != 9 {
		t.Errorf("expected 9 processed pages, got %d", stats.Processed)
	}

	cache, _ := NewCache(cacheDir, nil)
	pages := cache.Load(CacheKey("/books/test.pdf"))
	if len(pages) != 9 {
		t.Errorf("expected 9 cache entries, got %d", len(pages))
	}
	if _, ok := pages[PageKey(5)]; ok {
		t.Error("failed page should not be cached")
	}
}

func TestProcessor_ResumeIdempotence(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	out1 := filepath.Join(dir, "first.md")
	out2 := filepath.Join(dir, "second.md")

	first := extract.NewMockExtractor()
	p1 := newTestProcessor(t, &stubSource{pages: 4}, first, cacheDir)
	if _, err := p1.Run(context.Background(), Request{
		PDFPath: "/books/test.pdf", OutputPath: out1, Resume: true,
	}); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if first.CallCount() != 4 {
		t.Fatalf("expected 4 extraction calls on first run, got %d", first.CallCount())
	}

	cachePath := filepath.Join(cacheDir, "test_cache.json")
	before, err := os.ReadFile(cachePath)
	if err != nil {
		t.Fatalf("cache file missing: %v", err)
	}

	second := extract.NewMockExtractor()
	p2 := newTestProcessor(t, &stubSource{pages: 4}, second, cacheDir)
	stats, err := p2.Run(context.Background(), Request{
		PDFPath: "/books/test.pdf", OutputPath: out2, Resume: true,
	})
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if second.CallCount() != 0 {
		t.Errorf("expected zero extraction calls on resumed run, got %d", second.CallCount())
	}
	if stats.Cached != 4 {
		t.Errorf("expected 4 cache hits, got %d", stats.Cached)
	}

	after, _ := os.ReadFile(cachePath)
	if string(before) != string(after) {
		t.Error("resumed run should leave the cache unchanged")
	}

	doc1, _ := os.ReadFile(out1)
	doc2, _ := os.ReadFile(out2)
	if string(doc1) != string(doc2) {
		t.Error("resumed run should produce an identical document")
	}
}

func TestProcessor_Interrupt(t *testing.T) {
	dir := t.TempDir()
	mock := extract.NewMockExtractor()
	p := newTestProcessor(t, &stubSource{pages: 5}, mock, filepath.Join(dir, "cache"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, Request{
		PDFPath:    "/books/test.pdf",
		OutputPath: filepath.Join(dir, "book.md"),
	})
	if !errors.Is(err, ErrInterrupted) {
		t.Errorf("expected ErrInterrupted, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "book.md")); statErr == nil {
		t.Error("interrupted run should not write output")
	}
}
