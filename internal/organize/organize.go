// Package organize assembles per-page content maps and the combined
// document view: every extracted artifact routed to the page it came from,
// keyed 1 through the page count with no gaps.
package organize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jackzampolin/lectern/internal/classify"
	"github.com/jackzampolin/lectern/internal/pdf"
	"github.com/jackzampolin/lectern/internal/structure"
	"github.com/jackzampolin/lectern/internal/tables"
)

// PageContent is everything extracted for one page.
type PageContent struct {
	Text   string          `json:"text"`
	Images []pdf.ImageInfo `json:"images"`
	Tables []tables.Table  `json:"tables"`
}

// Document is the combined organized view: the classification verdict, the
// type-specific structure, and the page map.
type Document struct {
	DocumentType classify.Type        `json:"document_type"`
	Confidence   float64              `json:"classification_confidence"`
	Structure    *structure.Result    `json:"structure,omitempty"`
	Pages        map[int]*PageContent `json:"pages"`
	PageCount    int                  `json:"page_count"`
}

var pageMarkerRe = regexp.MustCompile(`--- Page (\d+) ---`)

// ByPage routes text segments, images, and tables to their pages. The map
// carries exactly the keys 1..total. Artifacts with pages outside that
// range and image records that only describe an enumeration error are
// dropped.
func ByPage(total int, text string, images []pdf.ImageInfo, tbls []tables.Table) map[int]*PageContent {
	pages := make(map[int]*PageContent, total)
	for n := 1; n <= total; n++ {
		pages[n] = &PageContent{}
	}

	for page, seg := range splitByMarkers(text) {
		if p, ok := pages[page]; ok {
			p.Text = seg
		}
	}

	for _, img := range images {
		if img.Error != "" {
			continue
		}
		if p, ok := pages[img.Page]; ok {
			p.Images = append(p.Images, img)
		}
	}

	for _, tb := range tbls {
		if p, ok := pages[tb.Page]; ok {
			p.Tables = append(p.Tables, tb)
		}
	}

	return pages
}

// splitByMarkers cuts marker-joined text into per-page segments. Text
// before the first marker, or all of it when no markers parse, belongs to
// page 1. Segments landing on the same page are joined with a newline.
func splitByMarkers(text string) map[int]string {
	out := make(map[int]string)
	add := func(page int, seg string) {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			return
		}
		if prev, ok := out[page]; ok && prev != "" {
			out[page] = prev + "\n" + seg
		} else {
			out[page] = seg
		}
	}

	locs := pageMarkerRe.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		add(1, text)
		return out
	}

	add(1, text[:locs[0][0]])
	for i, loc := range locs {
		page, err := strconv.Atoi(text[loc[2]:loc[3]])
		if err != nil {
			page = 1
		}
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		add(page, text[loc[1]:end])
	}
	return out
}

// Combine builds the combined document view from the classification, the
// type structure, and an already-routed page map.
func Combine(cls *classify.Result, st *structure.Result, pages map[int]*PageContent) *Document {
	doc := &Document{
		Structure: st,
		Pages:     pages,
		PageCount: len(pages),
	}
	if cls != nil {
		doc.DocumentType = cls.PrimaryType
		doc.Confidence = cls.Confidence
	}
	return doc
}
