// Package structure pulls type-specific structure out of a classified
// document: chapters and back matter for books, abstracts and references
// for research papers, summaries and specifications for technical reports.
// The extractors form a tagged union: one interface, one implementation per
// document type, dispatched by type tag.
package structure

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackzampolin/lectern/internal/classify"
	"github.com/jackzampolin/lectern/internal/pdf"
)

// Source is the document access the extractors need.
type Source interface {
	PageCount() int
	PageText(n int) (string, error)
	Outlines() []pdf.Outline
	Metadata() pdf.Info
}

// Extractor produces the structure variant for one document type.
type Extractor interface {
	Extract(ctx context.Context, src Source) *Result
}

// Result is the tagged union of type-specific structures. Exactly one of
// the variant fields is set on success; Error is set instead when the
// extractor failed internally. Callers must check Error before using the
// variant.
type Result struct {
	Kind   classify.Type    `json:"document_type"`
	Book   *BookStructure   `json:"book,omitempty"`
	Paper  *PaperStructure  `json:"research_paper,omitempty"`
	Report *ReportStructure `json:"technical_report,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// extractors dispatches document types to their structure extractor.
var extractors = map[classify.Type]Extractor{
	classify.TypeBook:            bookExtractor{},
	classify.TypeResearchPaper:   paperExtractor{},
	classify.TypeTechnicalReport: reportExtractor{},
}

// For returns the extractor registered for a document type.
func For(t classify.Type) (Extractor, bool) {
	e, ok := extractors[t]
	return e, ok
}

// Extract runs the extractor for the given type. Unrecognized types get a
// bare result with just the type tag, never an error.
func Extract(ctx context.Context, t classify.Type, src Source) *Result {
	e, ok := extractors[t]
	if !ok {
		return &Result{Kind: t}
	}
	return e.Extract(ctx, src)
}

// pageTexts reads every page, tolerating per-page failures as empty text.
func pageTexts(ctx context.Context, src Source) []string {
	pages := make([]string, src.PageCount())
	for n := 1; n <= src.PageCount(); n++ {
		if ctx.Err() != nil {
			break
		}
		if text, err := src.PageText(n); err == nil {
			pages[n-1] = text
		}
	}
	return pages
}

// joinWithMarkers renders pages the way the section locators expect, each
// prefixed by its page marker.
func joinWithMarkers(pages []string) string {
	var sb strings.Builder
	for i, text := range pages {
		sb.WriteString("\n")
		sb.WriteString(pdf.PageMarker(i + 1))
		sb.WriteString("\n")
		sb.WriteString(text)
	}
	return sb.String()
}

// sliceUntil cuts text at the first match of end. The second return tells
// whether the terminator was found; extractors that require one treat a
// miss as no match.
func sliceUntil(text string, end *regexp.Regexp) (string, bool) {
	loc := end.FindStringIndex(text)
	if loc == nil {
		return text, false
	}
	return text[:loc[0]], true
}

// splitAtMarkers slices text into the runs following each marker match:
// the text between one marker's end and the next marker's start.
func splitAtMarkers(text string, marker *regexp.Regexp) []string {
	locs := marker.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	entries := make([]string, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if entry := strings.TrimSpace(text[loc[1]:end]); entry != "" {
			entries = append(entries, entry)
		}
	}
	return entries
}

// wordCount matches the whitespace-split word counting used throughout the
// extractors.
func wordCount(s string) int {
	return len(strings.Fields(s))
}

// truncate caps s at n bytes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// failed builds the error result for an extractor that blew up internally.
func failed(kind classify.Type, component string, r any) *Result {
	return &Result{
		Kind:  kind,
		Error: fmt.Sprintf("%s extraction failed: %v", component, r),
	}
}
