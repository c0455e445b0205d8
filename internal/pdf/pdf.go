// Package pdf provides page-by-page rasterization of PDF documents.
package pdf

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

const (
	// DefaultDPI is the default render resolution.
	DefaultDPI = 300

	// DefaultImageQuality is the default JPEG quality.
	DefaultImageQuality = 85
)

// Handler renders PDF pages to images via pdftoppm (poppler-utils).
type Handler struct {
	dpi     int
	quality int
	log     *slog.Logger
}

// NewHandler creates a Handler with the given render settings.
// Zero values fall back to defaults.
func NewHandler(dpi, quality int, logger *slog.Logger) *Handler {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultImageQuality
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{dpi: dpi, quality: quality, log: logger}
}

// Validate checks that path points to a readable PDF file.
func (h *Handler) Validate(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("PDF not found: %s", path)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return fmt.Errorf("file is not a PDF: %s", path)
	}
	if _, err := h.PageCount(path); err != nil {
		return fmt.Errorf("invalid PDF file %s: %w", path, err)
	}
	return nil
}

// PageCount returns the number of pages in the PDF.
func (h *Handler) PageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	count, err := api.PageCount(f, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	return count, nil
}

// Page is one rendered page, or the error that prevented rendering it.
type Page struct {
	Number int
	Image  []byte // JPEG bytes
	Err    error
}

// Pages renders pages start..end (1-indexed, inclusive) and yields them in
// strict ascending order. The next page is rendered while the current one is
// being consumed; the channel buffer is the only lookahead. The channel is
// closed after the last page or when ctx is cancelled.
func (h *Handler) Pages(ctx context.Context, path string, start, end int) <-chan Page {
	out := make(chan Page, 1)

	go func() {
		defer close(out)
		for pageNum := start; pageNum <= end; pageNum++ {
			if ctx.Err() != nil {
				return
			}

			img, err := h.renderPage(path, pageNum)
			if err != nil {
				err = fmt.Errorf("failed to render page %d: %w", pageNum, err)
			} else {
				h.log.Debug("rendered page", "page", pageNum, "bytes", len(img))
			}

			select {
			case out <- Page{Number: pageNum, Image: img, Err: err}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// renderPage renders a single page from a PDF using pdftoppm (poppler-utils).
func (h *Handler) renderPage(path string, pageNum int) ([]byte, error) {
	// Create temp directory for output
	tmpDir, err := os.MkdirTemp("", "folio-page-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	// Output prefix for pdftoppm
	outputPrefix := filepath.Join(tmpDir, "page")

	// Run pdftoppm to render the page
	// -jpeg: output JPEG format
	// -f N: first page to render
	// -l N: last page to render
	// -r N: resolution in DPI
	// -singlefile: don't add page number suffix
	pageStr := fmt.Sprintf("%d", pageNum)
	cmd := exec.Command("pdftoppm",
		"-jpeg",
		"-jpegopt", fmt.Sprintf("quality=%d", h.quality),
		"-f", pageStr,
		"-l", pageStr,
		"-r", fmt.Sprintf("%d", h.dpi),
		"-singlefile",
		path,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	// pdftoppm with -singlefile creates: <prefix>.jpg
	srcPath := outputPrefix + ".jpg"
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}

	return data, nil
}
