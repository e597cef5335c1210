// Package extract runs the independent content passes over an open PDF:
// page text with structure, image inventory, and document metadata. Passes
// are isolated from each other; one failing leaves the others' results
// intact and records the failure on the result.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/jackzampolin/lectern/internal/pdf"
)

// Source is the document access the passes need.
type Source interface {
	PageCount() int
	PageText(n int) (string, error)
	PageLines(n int) ([]pdf.Line, error)
	Images() []pdf.ImageInfo
	Metadata() pdf.Info
}

// PageText is one page's extracted text.
type PageText struct {
	Page      int    `json:"page"`
	Text      string `json:"text"`
	CharCount int    `json:"char_count"`
}

// Result aggregates the pass outputs.
type Result struct {
	TotalPages int               `json:"total_pages"`
	Text       string            `json:"-"`
	Pages      []PageText        `json:"pages,omitempty"`
	Headings   []Heading         `json:"headings,omitempty"`
	Sections   []Section         `json:"sections,omitempty"`
	Images     []pdf.ImageInfo   `json:"images,omitempty"`
	Metadata   pdf.Info          `json:"metadata"`
	Errors     map[string]string `json:"errors,omitempty"`
}

// Run executes the extraction passes concurrently. workers bounds the
// per-page text workers; values below 1 run single-file.
func Run(ctx context.Context, src Source, workers int, logger *slog.Logger) *Result {
	if logger == nil {
		logger = slog.Default()
	}
	if workers < 1 {
		workers = 1
	}

	res := &Result{
		TotalPages: src.PageCount(),
		Errors:     make(map[string]string),
	}

	var mu sync.Mutex
	fail := func(pass string, err error) {
		mu.Lock()
		defer mu.Unlock()
		res.Errors[pass] = err.Error()
		logger.Warn("extraction pass failed", "pass", pass, "error", err)
	}
	// Passes run concurrently and must not take each other down.
	pass := func(name string, fn func() error) func() {
		return func() {
			defer func() {
				if r := recover(); r != nil {
					fail(name, fmt.Errorf("panic: %v", r))
				}
			}()
			if err := fn(); err != nil {
				fail(name, err)
			}
		}
	}

	var wg sync.WaitGroup
	for _, run := range []func(){
		pass("text", func() error {
			pages, headings, err := extractPages(ctx, src, workers)
			res.Pages = pages
			res.Headings = headings
			res.Sections = OrganizeSections(headings)
			res.Text = joinPages(pages)
			return err
		}),
		pass("images", func() error {
			res.Images = src.Images()
			return nil
		}),
		pass("metadata", func() error {
			res.Metadata = src.Metadata()
			return nil
		}),
	} {
		wg.Add(1)
		go func(run func()) {
			defer wg.Done()
			run()
		}(run)
	}
	wg.Wait()

	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res
}

type pageOut struct {
	n        int
	text     string
	headings []Heading
	err      error
}

// extractPages pulls text and headings from every page with a bounded
// worker pool. Individual page failures degrade to empty pages; the pass
// only errors when no page yields anything.
func extractPages(ctx context.Context, src Source, workers int) ([]PageText, []Heading, error) {
	count := src.PageCount()
	if count == 0 {
		return nil, nil, nil
	}

	sem := make(chan struct{}, workers)
	results := make(chan pageOut, count)
	var wg sync.WaitGroup
	for n := 1; n <= count; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				results <- pageOut{n: n, err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			out := pageOut{n: n}
			text, err := src.PageText(n)
			if err != nil {
				out.err = err
			} else {
				out.text = text
			}
			if lines, err := src.PageLines(n); err == nil {
				out.headings = PageHeadings(lines, n)
			}
			results <- out
		}(n)
	}
	wg.Wait()
	close(results)

	pages := make([]PageText, 0, count)
	var headings []Heading
	failed := 0
	var firstErr error
	for out := range results {
		if out.err != nil {
			failed++
			if firstErr == nil {
				firstErr = out.err
			}
		}
		pages = append(pages, PageText{
			Page:      out.n,
			Text:      out.text,
			CharCount: len(strings.TrimSpace(out.text)),
		})
		headings = append(headings, out.headings...)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Page < pages[j].Page })
	sort.SliceStable(headings, func(i, j int) bool { return headings[i].Page < headings[j].Page })

	if failed == count {
		return pages, headings, fmt.Errorf("no page text extracted: %w", firstErr)
	}
	return pages, headings, nil
}

// joinPages renders the concatenated document text with page markers.
func joinPages(pages []PageText) string {
	var sb strings.Builder
	for _, p := range pages {
		sb.WriteString("\n")
		sb.WriteString(pdf.PageMarker(p.Page))
		sb.WriteString("\n")
		sb.WriteString(p.Text)
	}
	return sb.String()
}
