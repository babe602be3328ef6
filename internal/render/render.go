// Package render turns a paginated document into one image per page.
// Rendering shells out to pdftoppm (poppler-utils), which produces far
// better output on scanned documents than pure-Go rasterizers.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/formscan/formscan/internal/types"
)

// Page is a single rendered page image.
type Page struct {
	Number int // 1-based
	PNG    []byte
}

// Renderer renders documents to page images.
type Renderer struct {
	dpi        int
	maxWorkers int
	logger     *slog.Logger
}

// New creates a Renderer. maxWorkers <= 0 means one worker per CPU.
func New(dpi, maxWorkers int, logger *slog.Logger) *Renderer {
	if dpi <= 0 {
		dpi = 300
	}
	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{dpi: dpi, maxWorkers: maxWorkers, logger: logger}
}

// Pages renders every page of doc, in page order. A document that is
// already a single page image is passed through as page 1. All scratch
// files are removed before return on every path.
func (r *Renderer) Pages(ctx context.Context, doc types.RawDocument) ([]Page, error) {
	if doc.Kind == types.MediaPageImage {
		if _, _, err := image.DecodeConfig(bytes.NewReader(doc.Data)); err != nil {
			return nil, fmt.Errorf("decoding page image %s: %w", doc.AttachmentID, err)
		}
		return []Page{{Number: 1, PNG: doc.Data}}, nil
	}

	pageCount, err := api.PageCount(bytes.NewReader(doc.Data), nil)
	if err != nil {
		return nil, fmt.Errorf("counting pages in %s: %w", doc.AttachmentID, err)
	}
	if pageCount == 0 {
		return nil, fmt.Errorf("document %s has no pages", doc.AttachmentID)
	}

	scratch, err := os.MkdirTemp("", "formscan-render-*")
	if err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	docPath := filepath.Join(scratch, "doc.pdf")
	if err := os.WriteFile(docPath, doc.Data, 0o600); err != nil {
		return nil, fmt.Errorf("writing scratch document: %w", err)
	}

	r.logger.Debug("rendering pages",
		"attachment_id", doc.AttachmentID,
		"pages", pageCount,
		"dpi", r.dpi,
		"workers", r.maxWorkers)

	results := make(chan pageResult, pageCount)
	sem := make(chan struct{}, r.maxWorkers)

	for p := 1; p <= pageCount; p++ {
		sem <- struct{}{} // acquire
		go func(page int) {
			defer func() { <-sem }() // release

			data, err := r.renderPage(ctx, docPath, scratch, page)
			results <- pageResult{page: Page{Number: page, PNG: data}, err: err}
		}(p)
	}

	return r.gather(doc.AttachmentID, results, pageCount)
}

type pageResult struct {
	page Page
	err  error
}

// gather drains per-page results. A failed page is logged and skipped so
// one unrenderable page never sinks the rest; the render as a whole fails
// only when no page came out.
func (r *Renderer) gather(attachmentID string, results <-chan pageResult, pageCount int) ([]Page, error) {
	pages := make([]Page, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		res := <-results
		if res.err != nil {
			r.logger.Warn("page render failed, skipping",
				"attachment_id", attachmentID,
				"page", res.page.Number,
				"error", res.err)
			continue
		}
		pages = append(pages, res.page)
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("rendering %s: no page rendered", attachmentID)
	}

	SortByNumber(pages)
	return pages, nil
}

// renderPage runs pdftoppm for one page and reads the result back.
func (r *Renderer) renderPage(ctx context.Context, docPath, scratch string, page int) ([]byte, error) {
	outputPrefix := filepath.Join(scratch, fmt.Sprintf("page_%04d", page))
	pageStr := strconv.Itoa(page)

	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", strconv.Itoa(r.dpi),
		"-singlefile",
		docPath,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm page %d: %w (output: %s)", page, err, string(output))
	}

	data, err := os.ReadFile(outputPrefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("reading rendered page %d: %w", page, err)
	}
	return data, nil
}

// SortByNumber orders pages ascending by page number. Callers that
// assemble pages from multiple partial renders use this before handing
// the set downstream.
func SortByNumber(pages []Page) {
	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
}
