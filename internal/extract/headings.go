package extract

import (
	"sort"
	"strings"

	"github.com/jackzampolin/lectern/internal/pdf"
)

// headingScale is how far above the page's mean font size a line must sit
// to read as a heading on size alone. Bold lines qualify regardless.
const headingScale = 1.2

// maxHeadingLen bounds heading candidates; longer lines are body text.
const maxHeadingLen = 200

// Heading is a line judged to be a document heading.
type Heading struct {
	Text     string  `json:"text"`
	Page     int     `json:"page"`
	FontSize float64 `json:"font_size"`
	Bold     bool    `json:"is_bold"`
}

// Section groups headings into a two-level hierarchy.
type Section struct {
	Title       string    `json:"title"`
	Page        int       `json:"page"`
	FontSize    float64   `json:"font_size"`
	Subsections []Section `json:"subsections,omitempty"`
}

// PageHeadings finds the heading lines on one page. A line qualifies when
// its largest span exceeds 1.2x the page's mean span size or any span is
// bold, the text is non-empty and under 200 characters, and it does not end
// with a period.
func PageHeadings(lines []pdf.Line, page int) []Heading {
	var sizes []float64
	for _, ln := range lines {
		for _, s := range ln.Spans {
			sizes = append(sizes, s.FontSize)
		}
	}
	if len(sizes) == 0 {
		return nil
	}
	sum := 0.0
	for _, s := range sizes {
		sum += s
	}
	threshold := (sum / float64(len(sizes))) * headingScale

	var headings []Heading
	for _, ln := range lines {
		text := strings.TrimSpace(ln.Text)
		if text == "" || len(text) >= maxHeadingLen {
			continue
		}
		if ln.MaxFontSize <= threshold && !ln.Bold {
			continue
		}
		if strings.HasSuffix(text, ".") {
			continue
		}
		headings = append(headings, Heading{
			Text:     text,
			Page:     page,
			FontSize: ln.MaxFontSize,
			Bold:     ln.Bold,
		})
	}
	return headings
}

// OrganizeSections arranges headings into sections. Headings are ordered by
// font size (largest first) then page; a heading at least as large as the
// current section starts a new section, smaller ones nest under it.
func OrganizeSections(headings []Heading) []Section {
	if len(headings) == 0 {
		return nil
	}
	sorted := make([]Heading, len(headings))
	copy(sorted, headings)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].FontSize != sorted[j].FontSize {
			return sorted[i].FontSize > sorted[j].FontSize
		}
		return sorted[i].Page < sorted[j].Page
	})

	var sections []Section
	for _, h := range sorted {
		if len(sections) == 0 || h.FontSize >= sections[len(sections)-1].FontSize {
			sections = append(sections, Section{
				Title:    h.Text,
				Page:     h.Page,
				FontSize: h.FontSize,
			})
			continue
		}
		cur := &sections[len(sections)-1]
		cur.Subsections = append(cur.Subsections, Section{
			Title:    h.Text,
			Page:     h.Page,
			FontSize: h.FontSize,
		})
	}
	return sections
}
