// Package classify scores a document against the known document types and
// picks the best match. Scoring is a decision table of pure predicate rules
// over extracted characteristics, so classifying the same file twice always
// yields the same answer.
package classify

import (
	"regexp"
	"strings"

	"github.com/jackzampolin/lectern/internal/pdf"
)

// Type is a recognized document category.
type Type string

const (
	TypeBook            Type = "book"
	TypeResearchPaper   Type = "research_paper"
	TypeTechnicalReport Type = "technical_report"
	TypeUnknown         Type = "unknown"
)

// headingFontSize is the span size above which text counts as a heading for
// characteristic collection.
const headingFontSize = 12.0

// Source is the page access classification needs.
type Source interface {
	PageCount() int
	PageText(n int) (string, error)
	PageSpans(n int) ([]pdf.Span, error)
}

// Page carries one page's pre-extracted content.
type Page struct {
	Text  string
	Spans []pdf.Span
}

// Characteristics are the document features the scoring rules consume. The
// raw text windows stay out of serialized results; the derived fields cover
// reporting.
type Characteristics struct {
	PageCount      int      `json:"page_count"`
	FirstPagesText string   `json:"-"`
	LastPagesText  string   `json:"-"`
	SampleText     string   `json:"-"`
	Headings       []string `json:"headings,omitempty"`
	TOCPresent     bool     `json:"toc_present"`
	CitationCount  int      `json:"citation_count"`

	HasAbstract         bool `json:"has_abstract"`
	HasReferences       bool `json:"has_references"`
	HasChapters         bool `json:"has_chapters"`
	HasExecutiveSummary bool `json:"has_executive_summary"`
}

// Result is a classification outcome. Confidence is the winning score as
// accumulated by the rules, deliberately not normalized.
type Result struct {
	PrimaryType          Type             `json:"primary_type"`
	Confidence           float64          `json:"confidence"`
	Scores               map[Type]float64 `json:"scores,omitempty"`
	Characteristics      *Characteristics `json:"characteristics,omitempty"`
	ProcessingStrategy   map[string]bool  `json:"processing_strategy,omitempty"`
	ExtractionPriorities []string         `json:"extraction_priorities,omitempty"`
	Error                string           `json:"error,omitempty"`
}

var (
	chapterRe = regexp.MustCompile(`chapter\s+\d+`)

	citationRes = []*regexp.Regexp{
		regexp.MustCompile(`\[\d+\]`),
		regexp.MustCompile(`\(\w+\s+et\s+al\.?\s*,?\s*\d{4}\)`),
		regexp.MustCompile(`\(\w+,?\s*\d{4}\)`),
	}

	tocIndicators = []string{"table of contents", "contents", "toc"}
)

// rule awards weight when its predicate matches.
type rule struct {
	weight float64
	match  func(*Characteristics) bool
}

// typeRules is the classification decision table. Order fixes the tie-break:
// the first type reaching the top score wins.
var typeRules = []struct {
	docType Type
	rules   []rule
}{
	{TypeBook, []rule{
		{0.3, func(c *Characteristics) bool { return c.PageCount >= 50 }},
		{0.4, func(c *Characteristics) bool { return c.HasChapters }},
		{0.3, func(c *Characteristics) bool { return c.TOCPresent }},
	}},
	{TypeResearchPaper, []rule{
		{0.2, func(c *Characteristics) bool { return c.PageCount >= 4 && c.PageCount <= 50 }},
		{0.3, func(c *Characteristics) bool { return c.HasAbstract }},
		{0.2, func(c *Characteristics) bool { return c.HasReferences }},
		{0.3, func(c *Characteristics) bool { return c.CitationCount > 10 }},
	}},
	{TypeTechnicalReport, []rule{
		{0.2, func(c *Characteristics) bool { return c.PageCount >= 10 }},
		{0.4, func(c *Characteristics) bool { return c.HasExecutiveSummary }},
		{0.2, func(c *Characteristics) bool { return strings.Contains(c.SampleText, "recommendation") }},
		{0.2, func(c *Characteristics) bool { return strings.Contains(c.SampleText, "technical") }},
	}},
}

// Classify reads the document's characteristics and scores them. It never
// returns an error: a document that cannot be read classifies as unknown
// with zero confidence and the failure recorded on the result.
func Classify(src Source) *Result {
	if src == nil {
		return &Result{PrimaryType: TypeUnknown, Error: "no document"}
	}
	pages := make([]Page, 0, src.PageCount())
	for n := 1; n <= src.PageCount(); n++ {
		var p Page
		if text, err := src.PageText(n); err == nil {
			p.Text = text
		}
		if spans, err := src.PageSpans(n); err == nil {
			p.Spans = spans
		}
		pages = append(pages, p)
	}
	return ClassifyPages(pages)
}

// ClassifyPages classifies from pre-extracted page content.
func ClassifyPages(pages []Page) *Result {
	c := BuildCharacteristics(pages)
	scores := make(map[Type]float64, len(typeRules))

	primary := TypeUnknown
	best := 0.0
	for i, tr := range typeRules {
		score := 0.0
		for _, r := range tr.rules {
			if r.match(c) {
				score += r.weight
			}
		}
		scores[tr.docType] = score
		if i == 0 || score > best {
			primary = tr.docType
			best = score
		}
	}

	return &Result{
		PrimaryType:          primary,
		Confidence:           best,
		Scores:               scores,
		Characteristics:      c,
		ProcessingStrategy:   ProcessingStrategy(primary),
		ExtractionPriorities: ExtractionPriorities(primary),
	}
}

// Failed builds the unknown-type result for a document that could not be
// opened or read at all.
func Failed(err error) *Result {
	r := &Result{PrimaryType: TypeUnknown, Confidence: 0}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// BuildCharacteristics derives the feature set the rules score. A document
// with zero pages yields empty text windows and no counts.
func BuildCharacteristics(pages []Page) *Characteristics {
	n := len(pages)
	c := &Characteristics{PageCount: n}

	var first, last, sample strings.Builder
	for i := 0; i < n && i < 5; i++ {
		first.WriteString(strings.ToLower(pages[i].Text))
		first.WriteString("\n")
	}
	for i := n - 5; i < n; i++ {
		if i < 0 {
			continue
		}
		last.WriteString(strings.ToLower(pages[i].Text))
		last.WriteString("\n")
	}
	if n > 0 {
		// Sparse sample: roughly ten pages spread across the document.
		step := n / min(10, n)
		if step < 1 {
			step = 1
		}
		for i := 0; i < n; i += step {
			sample.WriteString(strings.ToLower(pages[i].Text))
			sample.WriteString("\n")
		}
	}
	c.FirstPagesText = first.String()
	c.LastPagesText = last.String()
	c.SampleText = sample.String()

	for _, p := range pages {
		for _, s := range p.Spans {
			if s.FontSize > headingFontSize {
				if t := strings.TrimSpace(s.Text); t != "" {
					c.Headings = append(c.Headings, t)
				}
			}
		}
	}

	for i := 0; i < n && i < 5; i++ {
		text := strings.ToLower(pages[i].Text)
		for _, ind := range tocIndicators {
			if strings.Contains(text, ind) {
				c.TOCPresent = true
				break
			}
		}
		if c.TOCPresent {
			break
		}
	}

	c.CitationCount = CountCitations(c.SampleText)
	c.HasAbstract = strings.Contains(c.FirstPagesText, "abstract")
	c.HasReferences = strings.Contains(c.LastPagesText, "references") ||
		strings.Contains(c.LastPagesText, "bibliography")
	c.HasChapters = chapterRe.MatchString(c.SampleText)
	c.HasExecutiveSummary = strings.Contains(c.FirstPagesText, "executive summary")
	return c
}

// CountCitations sums matches of the bracket and author-year citation
// patterns. The patterns overlap on purpose, matching how the counts feed
// the scoring threshold.
func CountCitations(text string) int {
	total := 0
	for _, re := range citationRes {
		total += len(re.FindAllString(text, -1))
	}
	return total
}

// ProcessingStrategy returns the capability toggles for a document type.
// Unknown types get an empty map.
func ProcessingStrategy(t Type) map[string]bool {
	switch t {
	case TypeBook:
		return map[string]bool{
			"chapter_extraction":       true,
			"toc_processing":           true,
			"index_processing":         true,
			"footnote_extraction":      true,
			"cross_reference_tracking": true,
		}
	case TypeResearchPaper:
		return map[string]bool{
			"abstract_extraction":       true,
			"citation_extraction":       true,
			"figure_caption_processing": true,
			"reference_parsing":         true,
			"author_extraction":         true,
		}
	case TypeTechnicalReport:
		return map[string]bool{
			"executive_summary_extraction": true,
			"recommendation_extraction":    true,
			"technical_specs_processing":   true,
			"appendix_processing":          true,
			"data_table_extraction":        true,
		}
	default:
		return map[string]bool{}
	}
}

// ExtractionPriorities returns the ordered extraction focus for a document
// type, most important first.
func ExtractionPriorities(t Type) []string {
	switch t {
	case TypeBook:
		return []string{"chapters", "table_of_contents", "index", "text_content", "images"}
	case TypeResearchPaper:
		return []string{"abstract", "citations", "references", "figures", "tables", "text_content"}
	case TypeTechnicalReport:
		return []string{"executive_summary", "recommendations", "technical_specs", "appendices", "tables"}
	default:
		return []string{"text_content", "images", "tables"}
	}
}
