package structure

import (
	"context"
	"regexp"
	"strings"

	"github.com/jackzampolin/lectern/internal/classify"
)

// Summary is the executive summary, when one could be located.
type Summary struct {
	Present   bool   `json:"present"`
	Content   string `json:"content,omitempty"`
	WordCount int    `json:"word_count,omitempty"`
	Page      int    `json:"page,omitempty"`
}

// Recommendations is the recommendations section with its itemized points.
type Recommendations struct {
	Present bool     `json:"present"`
	Content string   `json:"content,omitempty"`
	Items   []string `json:"recommendations,omitempty"`
	Count   int      `json:"count"`
}

// TechSpec is one specification-style line with its page.
type TechSpec struct {
	Specification string `json:"specification"`
	Page          int    `json:"page"`
}

// TechnicalSpecs aggregates specification lines found across the document.
type TechnicalSpecs struct {
	Specifications []TechSpec `json:"specifications,omitempty"`
	Count          int        `json:"count"`
}

// AppendixRef is one appendix heading with its page.
type AppendixRef struct {
	Title string `json:"title"`
	Page  int    `json:"page"`
}

// Appendices lists appendix headings found in the document tail.
type Appendices struct {
	Present    bool          `json:"present"`
	Appendices []AppendixRef `json:"appendices,omitempty"`
	Count      int           `json:"count"`
}

// Methodology is the methodology section, when one could be located.
type Methodology struct {
	Present   bool   `json:"present"`
	Content   string `json:"content,omitempty"`
	WordCount int    `json:"word_count,omitempty"`
}

// ReportStructure is the extracted structure of a technical report.
type ReportStructure struct {
	ExecutiveSummary Summary         `json:"executive_summary"`
	Recommendations  Recommendations `json:"recommendations"`
	TechnicalSpecs   TechnicalSpecs  `json:"technical_specifications"`
	Appendices       Appendices      `json:"appendices"`
	Methodology      Methodology     `json:"methodology"`
}

const (
	summaryPageWindow   = 5
	appendixPageWindow  = 20
	recommendContentCap = 1500
	recommendItemsCap   = 10
	specsCap            = 20
	methodologyCap      = 1000
)

var (
	summaryStartRe = regexp.MustCompile(`(?i)executive\s+summary\s*[\n:]?`)
	summaryEndRe   = regexp.MustCompile(`\n\s*(?:\d+\.|\w+:|\n\n)`)

	recommendHeadingRe = regexp.MustCompile(`(?im)recommendations?\s*$`)
	recommendNumRe     = regexp.MustCompile(`(?m)^\d+\.\s*`)
	recommendBulletRe  = regexp.MustCompile(`(?m)^[•·]\s*`)

	specRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(specifications?\s*[:]\s*[^\n]+)`),
		regexp.MustCompile(`(?i)(technical\s+data\s*[:]\s*[^\n]+)`),
		regexp.MustCompile(`(?i)(parameters?\s*[:]\s*[^\n]+)`),
		regexp.MustCompile(`(?i)(\w+\s*[:]\s*\d+[\.\d]*\s*\w+)`),
	}

	appendixRe = regexp.MustCompile(`(?i)(appendix\s+[a-z]\s*[:\-]?\s*[^\n]+)`)

	methodologyStartRe = regexp.MustCompile(`(?i)methodology\s*[\n:]?`)
	methodologyEndRe   = regexp.MustCompile(`\n\s*(?:\d+\.|\w+:)`)
)

type reportExtractor struct{}

func (reportExtractor) Extract(ctx context.Context, src Source) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			res = failed(classify.TypeTechnicalReport, "Technical report", r)
		}
	}()

	pages := pageTexts(ctx, src)
	plain := strings.Join(pages, "\n")

	report := &ReportStructure{
		ExecutiveSummary: extractSummary(pages),
		Recommendations:  extractRecommendations(pages),
		TechnicalSpecs:   extractTechnicalSpecs(pages),
		Appendices:       extractAppendices(pages),
		Methodology:      extractMethodology(plain),
	}

	return &Result{Kind: classify.TypeTechnicalReport, Report: report}
}

// extractSummary searches the opening pages for an executive summary
// heading and takes the text up to the next numbered heading, labeled
// line, or blank gap. Without a terminator the candidate is rejected.
func extractSummary(pages []string) Summary {
	for i, text := range pages {
		if i >= summaryPageWindow {
			break
		}
		loc := summaryStartRe.FindStringIndex(text)
		if loc == nil {
			continue
		}
		body, terminated := sliceUntil(text[loc[1]:], summaryEndRe)
		if !terminated {
			continue
		}
		content := strings.TrimSpace(body)
		if content == "" {
			continue
		}
		return Summary{
			Present:   true,
			Content:   content,
			WordCount: wordCount(content),
			Page:      i + 1,
		}
	}
	return Summary{}
}

// extractRecommendations finds the first page carrying a recommendations
// heading and itemizes its numbered or bulleted points.
func extractRecommendations(pages []string) Recommendations {
	for _, text := range pages {
		if !recommendHeadingRe.MatchString(text) {
			continue
		}
		items := splitAtMarkers(text, recommendNumRe)
		items = append(items, splitAtMarkers(text, recommendBulletRe)...)
		recs := Recommendations{
			Present: true,
			Content: truncate(text, recommendContentCap),
			Items:   items,
			Count:   len(items),
		}
		if len(recs.Items) > recommendItemsCap {
			recs.Items = recs.Items[:recommendItemsCap]
		}
		return recs
	}
	return Recommendations{}
}

// extractTechnicalSpecs collects specification-style lines: labeled spec
// sections and "name: number unit" value lines.
func extractTechnicalSpecs(pages []string) TechnicalSpecs {
	var specs []TechSpec
	for i, text := range pages {
		for _, re := range specRes {
			for _, m := range re.FindAllString(text, -1) {
				specs = append(specs, TechSpec{
					Specification: strings.TrimSpace(m),
					Page:          i + 1,
				})
			}
		}
	}
	out := TechnicalSpecs{Specifications: specs, Count: len(specs)}
	if len(out.Specifications) > specsCap {
		out.Specifications = out.Specifications[:specsCap]
	}
	return out
}

// extractAppendices scans the document tail for appendix headings.
func extractAppendices(pages []string) Appendices {
	start := len(pages) - appendixPageWindow
	if start < 0 {
		start = 0
	}
	var refs []AppendixRef
	for i := start; i < len(pages); i++ {
		for _, m := range appendixRe.FindAllString(pages[i], -1) {
			refs = append(refs, AppendixRef{
				Title: strings.TrimSpace(m),
				Page:  i + 1,
			})
		}
	}
	return Appendices{
		Present:    len(refs) > 0,
		Appendices: refs,
		Count:      len(refs),
	}
}

// extractMethodology locates a methodology heading anywhere in the
// document and takes the text up to the next numbered heading or labeled
// line. The word count reflects the full section; the content is capped.
func extractMethodology(text string) Methodology {
	loc := methodologyStartRe.FindStringIndex(text)
	if loc == nil {
		return Methodology{}
	}
	body, terminated := sliceUntil(text[loc[1]:], methodologyEndRe)
	if !terminated {
		return Methodology{}
	}
	content := strings.TrimSpace(body)
	if content == "" {
		return Methodology{}
	}
	return Methodology{
		Present:   true,
		Content:   truncate(content, methodologyCap),
		WordCount: wordCount(content),
	}
}
