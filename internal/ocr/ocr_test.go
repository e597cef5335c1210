package ocr

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/jackzampolin/lectern/internal/pdf"
)

type fakeDoc struct {
	pages  []string
	images map[int]int
}

func (f *fakeDoc) Path() string { return "/tmp/fake.pdf" }

func (f *fakeDoc) PageCount() int { return len(f.pages) }

func (f *fakeDoc) PageText(n int) (string, error) {
	if n < 1 || n > len(f.pages) {
		return "", fmt.Errorf("page %d out of range", n)
	}
	return f.pages[n-1], nil
}

func (f *fakeDoc) PageImages(n int) ([]pdf.ImageInfo, error) {
	imgs := make([]pdf.ImageInfo, f.images[n])
	for i := range imgs {
		imgs[i] = pdf.ImageInfo{Page: n, Index: i + 1}
	}
	return imgs, nil
}

type fakeEngine struct {
	texts map[int]string
	confs map[int]float64
	errs  map[int]error
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) ProcessImage(_ context.Context, _ []byte, page int) (*PageResult, error) {
	if err := f.errs[page]; err != nil {
		return &PageResult{Engine: "fake", ErrorMessage: err.Error()}, err
	}
	return &PageResult{
		Success:    true,
		Text:       f.texts[page],
		Confidence: f.confs[page],
		Engine:     "fake",
	}, nil
}

type fakeRenderer struct {
	fail map[int]bool
}

func (f *fakeRenderer) RenderPage(_ context.Context, _ string, page int) ([]byte, error) {
	if f.fail[page] {
		return nil, fmt.Errorf("render page %d failed", page)
	}
	return []byte("png-bytes"), nil
}

func TestHasSufficientText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		minChars int
		want     bool
	}{
		{"empty", "", 200, false},
		{"short", "a few words", 200, false},
		{"exactly at threshold", strings.Repeat("a", 200), 200, true},
		{"whitespace does not count", "  " + strings.Repeat("a", 199) + "  ", 200, false},
		{"zero min uses default", strings.Repeat("a", 200), 0, true},
		{"zero min default rejects short", strings.Repeat("a", 199), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasSufficientText(tt.text, tt.minChars); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLooksScanned(t *testing.T) {
	tests := []struct {
		name   string
		chars  int
		images int
		pages  int
		want   bool
	}{
		{"no text many images", 0, 10, 10, true},
		{"text heavy", 1000, 10, 10, false},
		{"few images", 0, 3, 10, false},
		{"zero pages", 0, 0, 0, false},
		{"boundary chars per page", 500, 10, 10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LooksScanned(tt.chars, tt.images, tt.pages); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsScanned(t *testing.T) {
	scanned := &fakeDoc{
		pages:  []string{"", "a", "", ""},
		images: map[int]int{1: 1, 2: 1, 3: 1, 4: 1},
	}
	if !IsScanned(scanned) {
		t.Error("image-heavy textless document should look scanned")
	}

	digital := &fakeDoc{
		pages: []string{strings.Repeat("text ", 50), strings.Repeat("text ", 50)},
	}
	if IsScanned(digital) {
		t.Error("text-heavy document should not look scanned")
	}
}

func TestProcessorSkipsWhenTextSufficient(t *testing.T) {
	doc := &fakeDoc{pages: []string{strings.Repeat("digital text ", 30)}}
	p := NewProcessor(Options{
		Engine:   &fakeEngine{},
		Renderer: &fakeRenderer{},
	})

	res := p.Run(t.Context(), doc)
	if res.Performed {
		t.Error("OCR should be skipped")
	}
	if res.Note != NoteSufficientText {
		t.Errorf("note = %q", res.Note)
	}
	if !strings.Contains(res.Text, "digital text") {
		t.Errorf("existing text missing from result")
	}
}

func TestProcessorNoEngine(t *testing.T) {
	doc := &fakeDoc{pages: []string{""}}
	p := NewProcessor(Options{Renderer: &fakeRenderer{}})

	res := p.Run(t.Context(), doc)
	if res.Performed {
		t.Error("no engine means no OCR run")
	}
	if res.Note == "" {
		t.Error("expected an explanatory note")
	}
}

func TestProcessorRun(t *testing.T) {
	doc := &fakeDoc{pages: []string{"", ""}}
	engine := &fakeEngine{
		texts: map[int]string{1: "hello from page one", 2: "hello from page two"},
		confs: map[int]float64{1: 90, 2: 80},
	}
	p := NewProcessor(Options{Engine: engine, Renderer: &fakeRenderer{}})

	res := p.Run(t.Context(), doc)
	if !res.Performed {
		t.Fatal("OCR should have run")
	}
	if len(res.Pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(res.Pages))
	}
	if !strings.Contains(res.Text, "--- OCR Page 1 (conf=90.0) ---") {
		t.Errorf("page header missing from text:\n%s", res.Text)
	}
	if !strings.Contains(res.Text, "hello from page two") {
		t.Errorf("page 2 text missing:\n%s", res.Text)
	}
	if res.MeanConfidence != 85 {
		t.Errorf("mean confidence = %v, want 85", res.MeanConfidence)
	}
}

func TestProcessorRenderFailure(t *testing.T) {
	doc := &fakeDoc{pages: []string{"", ""}}
	engine := &fakeEngine{
		texts: map[int]string{2: "only page two"},
		confs: map[int]float64{2: 75},
	}
	p := NewProcessor(Options{
		Engine:   engine,
		Renderer: &fakeRenderer{fail: map[int]bool{1: true}},
	})

	res := p.Run(t.Context(), doc)
	if len(res.Pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(res.Pages))
	}
	if res.Pages[0].ErrorMessage == "" || res.Pages[0].Success {
		t.Errorf("page 1 should carry the render error: %+v", res.Pages[0])
	}
	if !res.Pages[1].Success {
		t.Errorf("page 2 should succeed: %+v", res.Pages[1])
	}
	if strings.Contains(res.Text, "OCR Page 1") {
		t.Error("failed page should not contribute text")
	}
}

func TestProcessorNoTextRecognized(t *testing.T) {
	doc := &fakeDoc{pages: []string{""}}
	engine := &fakeEngine{texts: map[int]string{1: "   "}}
	p := NewProcessor(Options{Engine: engine, Renderer: &fakeRenderer{}})

	res := p.Run(t.Context(), doc)
	if res.Text != "" {
		t.Errorf("text = %q, want empty", res.Text)
	}
	if res.Note != NoteNoText {
		t.Errorf("note = %q", res.Note)
	}
}

func TestAssembleText(t *testing.T) {
	pages := []PageResult{
		{Page: 1, Success: true, Text: "first page", Confidence: 92.5},
		{Page: 2, Success: false, Text: "ignored"},
		{Page: 3, Success: true, Text: "  "},
		{Page: 4, Success: true, Text: "fourth page"},
	}
	got := assembleText(pages)
	want := "--- OCR Page 1 (conf=92.5) ---\nfirst page\n\n--- OCR Page 4 (conf=0.0) ---\nfourth page"
	if got != want {
		t.Errorf("assembled text:\n%q\nwant:\n%q", got, want)
	}
}

func TestMeanConfidence(t *testing.T) {
	pages := []PageResult{
		{Success: true, Confidence: 90},
		{Success: true, Confidence: 70},
		{Success: false, Confidence: 99},
		{Success: true},
	}
	if got := meanConfidence(pages); got != 80 {
		t.Errorf("mean = %v, want 80", got)
	}
	if got := meanConfidence(nil); got != 0 {
		t.Errorf("empty mean = %v, want 0", got)
	}
}
