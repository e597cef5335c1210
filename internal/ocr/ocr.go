// Package ocr recovers text from documents whose pages carry little or no
// extractable text. It renders pages to images and hands them to a
// configurable recognition engine, short-circuiting entirely when the
// document already yields enough digital text.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackzampolin/lectern/internal/pdf"
)

const (
	// DefaultMinTextChars is the extractable-text length above which OCR
	// is skipped.
	DefaultMinTextChars = 200

	scannedTextThreshold = 50
	scannedImageRatio    = 0.5

	// NoteSufficientText and NoteNoText label the two non-error outcomes
	// that produce no recognition passes.
	NoteSufficientText = "PDF contains sufficient extractable text"
	NoteNoText         = "No text extracted via OCR"
)

// Engine extracts text from a rendered page image.
type Engine interface {
	// Name returns the engine identifier (e.g. "tesseract", "vision").
	Name() string

	// ProcessImage extracts text from one page image.
	ProcessImage(ctx context.Context, image []byte, pageNum int) (*PageResult, error)
}

// Renderer turns a PDF page into an image suitable for recognition.
type Renderer interface {
	RenderPage(ctx context.Context, pdfPath string, page int) ([]byte, error)
}

// Source is the document access the processor needs.
type Source interface {
	Path() string
	PageCount() int
	PageText(n int) (string, error)
	PageImages(n int) ([]pdf.ImageInfo, error)
}

// PageResult is the recognition outcome for one page.
type PageResult struct {
	Page          int           `json:"page"`
	Success       bool          `json:"success"`
	Text          string        `json:"text,omitempty"`
	Confidence    float64       `json:"confidence,omitempty"`
	PSM           int           `json:"psm,omitempty"`
	Engine        string        `json:"engine,omitempty"`
	ExecutionTime time.Duration `json:"execution_time"`
	ErrorMessage  string        `json:"error_message,omitempty"`
}

// Result is the document-level OCR outcome. Performed is false when the
// document's own text made recognition unnecessary or no engine was
// configured; Note says which.
type Result struct {
	Performed      bool         `json:"performed"`
	Note           string       `json:"note,omitempty"`
	Text           string       `json:"text,omitempty"`
	Pages          []PageResult `json:"pages,omitempty"`
	MeanConfidence float64      `json:"mean_confidence,omitempty"`
	Error          string       `json:"error,omitempty"`
}

// HasSufficientText reports whether text alone meets the minimum length
// for skipping OCR.
func HasSufficientText(text string, minChars int) bool {
	if minChars <= 0 {
		minChars = DefaultMinTextChars
	}
	return len(strings.TrimSpace(text)) >= minChars
}

// LooksScanned applies the scanned-document heuristic: little text per
// page combined with images on most pages.
func LooksScanned(totalTextChars, totalImages, pageCount int) bool {
	if pageCount == 0 {
		return false
	}
	charsPerPage := float64(totalTextChars) / float64(pageCount)
	imagesPerPage := float64(totalImages) / float64(pageCount)
	return charsPerPage < scannedTextThreshold && imagesPerPage > scannedImageRatio
}

// IsScanned walks a document's pages and applies LooksScanned. Unreadable
// pages contribute nothing.
func IsScanned(src Source) bool {
	totalText, totalImages := 0, 0
	for n := 1; n <= src.PageCount(); n++ {
		if text, err := src.PageText(n); err == nil {
			totalText += len(strings.TrimSpace(text))
		}
		if imgs, err := src.PageImages(n); err == nil {
			totalImages += len(imgs)
		}
	}
	return LooksScanned(totalText, totalImages, src.PageCount())
}

// Options configure a Processor.
type Options struct {
	Engine       Engine
	Renderer     Renderer
	MinTextChars int
	Logger       *slog.Logger
}

// Processor orchestrates the render-and-recognize loop for one document.
type Processor struct {
	engine   Engine
	renderer Renderer
	minChars int
	log      *slog.Logger
}

// NewProcessor builds a processor, filling defaults for anything unset.
func NewProcessor(opts Options) *Processor {
	if opts.MinTextChars <= 0 {
		opts.MinTextChars = DefaultMinTextChars
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Renderer == nil {
		opts.Renderer = NewPopplerRenderer(0)
	}
	return &Processor{
		engine:   opts.Engine,
		renderer: opts.Renderer,
		minChars: opts.MinTextChars,
		log:      opts.Logger,
	}
}

// Run performs OCR on the document unless its extractable text already
// suffices. Per-page failures are recorded and skipped; only a cancelled
// context stops the loop early.
func (p *Processor) Run(ctx context.Context, src Source) *Result {
	text := strings.TrimSpace(existingText(src))
	if HasSufficientText(text, p.minChars) {
		return &Result{Note: NoteSufficientText, Text: text}
	}

	if p.engine == nil {
		return &Result{Note: "no OCR engine configured"}
	}

	res := &Result{Performed: true}
	for page := 1; page <= src.PageCount(); page++ {
		if err := ctx.Err(); err != nil {
			res.Error = err.Error()
			break
		}

		img, err := p.renderer.RenderPage(ctx, src.Path(), page)
		if err != nil {
			p.log.Warn("page render failed", "page", page, "error", err)
			res.Pages = append(res.Pages, PageResult{Page: page, ErrorMessage: err.Error()})
			continue
		}

		pr, err := p.engine.ProcessImage(ctx, img, page)
		if err != nil {
			p.log.Warn("recognition failed", "engine", p.engine.Name(), "page", page, "error", err)
			if pr == nil {
				pr = &PageResult{ErrorMessage: err.Error()}
			}
		}
		pr.Page = page
		res.Pages = append(res.Pages, *pr)
	}

	res.Text = assembleText(res.Pages)
	res.MeanConfidence = meanConfidence(res.Pages)
	if res.Text == "" && res.Error == "" {
		res.Note = NoteNoText
	}
	return res
}

// existingText concatenates the document's own extractable text,
// tolerating unreadable pages.
func existingText(src Source) string {
	var sb strings.Builder
	for n := 1; n <= src.PageCount(); n++ {
		if text, err := src.PageText(n); err == nil {
			sb.WriteString(text)
		}
	}
	return sb.String()
}

// assembleText joins successful page results under per-page headers.
func assembleText(pages []PageResult) string {
	var parts []string
	for _, pr := range pages {
		body := strings.TrimSpace(pr.Text)
		if !pr.Success || body == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("--- OCR Page %d (conf=%.1f) ---\n%s", pr.Page, pr.Confidence, body))
	}
	return strings.Join(parts, "\n\n")
}

// meanConfidence averages the confidence of successful pages that report
// one.
func meanConfidence(pages []PageResult) float64 {
	sum, n := 0.0, 0
	for _, pr := range pages {
		if pr.Success && pr.Confidence > 0 {
			sum += pr.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
