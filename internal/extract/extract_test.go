package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/jackzampolin/lectern/internal/pdf"
)

func line(text string, size float64, bold bool) pdf.Line {
	font := "Helvetica"
	if bold {
		font = "Helvetica-Bold"
	}
	return pdf.Line{
		Text:        text,
		MaxFontSize: size,
		Bold:        bold,
		Spans: []pdf.Span{{
			Text:     text,
			Font:     font,
			FontSize: size,
			Bold:     bold,
		}},
	}
}

func TestPageHeadings(t *testing.T) {
	body := make([]pdf.Line, 0, 10)
	for i := 0; i < 10; i++ {
		body = append(body, line("plain body text that runs on normally.", 10, false))
	}

	t.Run("large font detected", func(t *testing.T) {
		lines := append([]pdf.Line{line("Introduction", 18, false)}, body...)
		got := PageHeadings(lines, 3)
		if len(got) != 1 {
			t.Fatalf("len(headings) = %d, want 1", len(got))
		}
		h := got[0]
		if h.Text != "Introduction" || h.Page != 3 || h.FontSize != 18 {
			t.Errorf("heading = %+v", h)
		}
	})

	t.Run("bold detected at body size", func(t *testing.T) {
		lines := append([]pdf.Line{line("Key Terms", 10, true)}, body...)
		got := PageHeadings(lines, 1)
		if len(got) != 1 || !got[0].Bold {
			t.Fatalf("headings = %+v, want one bold heading", got)
		}
	})

	t.Run("trailing period excluded", func(t *testing.T) {
		lines := append([]pdf.Line{line("This is a sentence.", 18, false)}, body...)
		if got := PageHeadings(lines, 1); len(got) != 0 {
			t.Errorf("headings = %+v, want none", got)
		}
	})

	t.Run("long line excluded", func(t *testing.T) {
		long := strings.Repeat("word ", 50)
		lines := append([]pdf.Line{line(long, 18, false)}, body...)
		if got := PageHeadings(lines, 1); len(got) != 0 {
			t.Errorf("headings = %+v, want none", got)
		}
	})

	t.Run("empty page", func(t *testing.T) {
		if got := PageHeadings(nil, 1); got != nil {
			t.Errorf("headings = %+v, want nil", got)
		}
	})
}

func TestOrganizeSections(t *testing.T) {
	t.Run("nesting follows font size", func(t *testing.T) {
		headings := []Heading{
			{Text: "Chapter 1", Page: 1, FontSize: 18},
			{Text: "Background", Page: 2, FontSize: 12},
			{Text: "Chapter 2", Page: 5, FontSize: 18},
		}
		sections := OrganizeSections(headings)
		if len(sections) != 2 {
			t.Fatalf("len(sections) = %d, want 2", len(sections))
		}
		if sections[0].Title != "Chapter 1" || sections[1].Title != "Chapter 2" {
			t.Errorf("section titles = %q, %q", sections[0].Title, sections[1].Title)
		}
		// Smaller headings nest under the last section of their size pass.
		if len(sections[1].Subsections) != 1 || sections[1].Subsections[0].Title != "Background" {
			t.Errorf("subsections = %+v", sections[1].Subsections)
		}
	})

	t.Run("equal size starts new section", func(t *testing.T) {
		headings := []Heading{
			{Text: "A", Page: 1, FontSize: 14},
			{Text: "B", Page: 2, FontSize: 14},
		}
		sections := OrganizeSections(headings)
		if len(sections) != 2 {
			t.Fatalf("len(sections) = %d, want 2", len(sections))
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if got := OrganizeSections(nil); got != nil {
			t.Errorf("sections = %+v, want nil", got)
		}
	})
}

type fakeSource struct {
	pages       []string
	lines       map[int][]pdf.Line
	images      []pdf.ImageInfo
	meta        pdf.Info
	failPages   map[int]bool
	panicImages bool
}

func (f *fakeSource) PageCount() int { return len(f.pages) }

func (f *fakeSource) PageText(n int) (string, error) {
	if f.failPages[n] {
		return "", fmt.Errorf("page %d: broken", n)
	}
	return f.pages[n-1], nil
}

func (f *fakeSource) PageLines(n int) ([]pdf.Line, error) {
	return f.lines[n], nil
}

func (f *fakeSource) Images() []pdf.ImageInfo {
	if f.panicImages {
		panic("image walk exploded")
	}
	return f.images
}

func (f *fakeSource) Metadata() pdf.Info { return f.meta }

func TestRun(t *testing.T) {
	t.Run("collects all passes", func(t *testing.T) {
		src := &fakeSource{
			pages: []string{"first page", "second page"},
			lines: map[int][]pdf.Line{
				1: {line("Title", 20, false), line("body text on the page", 10, false), line("more body text here", 10, false)},
			},
			images: []pdf.ImageInfo{{Page: 2, Format: "jpeg"}},
			meta:   pdf.Info{Title: "Doc", PageCount: 2},
		}
		res := Run(t.Context(), src, 2, nil)

		if res.TotalPages != 2 {
			t.Errorf("TotalPages = %d, want 2", res.TotalPages)
		}
		want := "\n--- Page 1 ---\nfirst page\n--- Page 2 ---\nsecond page"
		if res.Text != want {
			t.Errorf("Text = %q, want %q", res.Text, want)
		}
		if len(res.Pages) != 2 || res.Pages[0].CharCount != len("first page") {
			t.Errorf("Pages = %+v", res.Pages)
		}
		if len(res.Headings) != 1 || res.Headings[0].Text != "Title" {
			t.Errorf("Headings = %+v", res.Headings)
		}
		if len(res.Images) != 1 || res.Metadata.Title != "Doc" {
			t.Errorf("Images = %+v, Metadata = %+v", res.Images, res.Metadata)
		}
		if res.Errors != nil {
			t.Errorf("Errors = %v, want none", res.Errors)
		}
	})

	t.Run("pass panic stays isolated", func(t *testing.T) {
		src := &fakeSource{
			pages:       []string{"still works"},
			panicImages: true,
		}
		res := Run(t.Context(), src, 1, nil)
		if res.Errors["images"] == "" {
			t.Error("expected images pass error")
		}
		if !strings.Contains(res.Text, "still works") {
			t.Errorf("Text = %q, text pass should survive", res.Text)
		}
	})

	t.Run("all pages failing reports the text pass", func(t *testing.T) {
		src := &fakeSource{
			pages:     []string{"a", "b"},
			failPages: map[int]bool{1: true, 2: true},
		}
		res := Run(t.Context(), src, 1, nil)
		if res.Errors["text"] == "" {
			t.Error("expected text pass error")
		}
		if len(res.Pages) != 2 {
			t.Errorf("len(Pages) = %d, want 2 empty pages", len(res.Pages))
		}
	})

	t.Run("zero pages", func(t *testing.T) {
		src := &fakeSource{}
		res := Run(t.Context(), src, 1, nil)
		if res.TotalPages != 0 || res.Errors != nil {
			t.Errorf("res = %+v", res)
		}
	})
}
