package structure

import (
	"context"
	"regexp"
	"strings"

	"github.com/jackzampolin/lectern/internal/classify"
)

// Abstract is the paper's abstract, when one could be located.
type Abstract struct {
	Present   bool   `json:"present"`
	Content   string `json:"content,omitempty"`
	WordCount int    `json:"word_count,omitempty"`
	Page      int    `json:"page,omitempty"`
}

// Author is a detected author name. Affiliations are not recoverable from
// text layout alone and stay empty.
type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation"`
}

// PaperSection is a numbered section located by its heading.
type PaperSection struct {
	Title     string `json:"title"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	WordCount int    `json:"word_count"`
}

// References is the references section with its leading entries.
type References struct {
	Present bool     `json:"present"`
	Content string   `json:"content,omitempty"`
	Entries []string `json:"entries,omitempty"`
	Count   int      `json:"count"`
}

// Citations summarizes in-text citation usage.
type Citations struct {
	TotalCount int      `json:"total_count"`
	Unique     []string `json:"unique_citations,omitempty"`
	Density    float64  `json:"citation_density"`
}

// Caption is a figure or table caption with its page.
type Caption struct {
	Caption string `json:"caption"`
	Page    int    `json:"page"`
	Type    string `json:"type"`
}

// PaperStructure is the extracted structure of a research paper.
type PaperStructure struct {
	Abstract   Abstract       `json:"abstract"`
	Authors    []Author       `json:"authors"`
	Sections   []PaperSection `json:"sections"`
	References References     `json:"references"`
	Citations  Citations      `json:"citations"`
	Captions   []Caption      `json:"figures_tables"`
}

const (
	abstractPageWindow = 3
	refsPageWindow     = 10
	refContentCap      = 2000
	refEntriesCap      = 20
	sectionContentCap  = 1000
	authorsCap         = 10
	authorHeadWindow   = 500
)

var (
	abstractStartRe = regexp.MustCompile(`(?i)abstract\s*[\n:]?`)
	abstractEndRe   = regexp.MustCompile(`(?i)\n\s*(?:keywords?|introduction|1\.?\s+introduction)`)

	authorNameRes = []*regexp.Regexp{
		regexp.MustCompile(`([A-Z][a-z]+\s+[A-Z][a-z]+)(?:\s*[,\n]\s*([A-Z][a-z]+\s+[A-Z][a-z]+))*`),
		regexp.MustCompile(`([A-Z]\.\s*[A-Z][a-z]+)(?:\s*[,\n]\s*([A-Z]\.\s*[A-Z][a-z]+))*`),
	}

	sectionHeadingRes = []*regexp.Regexp{
		regexp.MustCompile(`(?im)(\d+\.?\s*(?:introduction|background|literature\s+review))\s*\n`),
		regexp.MustCompile(`(?im)(\d+\.?\s*(?:methodology|methods|materials\s+and\s+methods))\s*\n`),
		regexp.MustCompile(`(?im)(\d+\.?\s*(?:results|findings|analysis))\s*\n`),
		regexp.MustCompile(`(?im)(\d+\.?\s*(?:discussion|conclusion|conclusions))\s*\n`),
		regexp.MustCompile(`(?im)(\d+\.?\s*(?:references|bibliography))\s*\n`),
	}

	refsHeadingRe    = regexp.MustCompile(`(?im)references?\s*$`)
	refBracketRe     = regexp.MustCompile(`(?m)^\[\d+\]\s*`)
	refNumberedRe    = regexp.MustCompile(`(?m)^\d+\.\s*`)
	citeNumericRe    = regexp.MustCompile(`\[(\d+(?:,\s*\d+)*)\]`)
	citeAuthorYearRe = regexp.MustCompile(`\(([A-Z][a-z]+(?:\s+et\s+al\.?)?,?\s*\d{4})\)`)

	captionRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(Figure\s+\d+[.:]\s*[^\n]+)`),
		regexp.MustCompile(`(?i)(Fig\.\s+\d+[.:]\s*[^\n]+)`),
		regexp.MustCompile(`(?i)(Table\s+\d+[.:]\s*[^\n]+)`),
	}
)

type paperExtractor struct{}

func (paperExtractor) Extract(ctx context.Context, src Source) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			res = failed(classify.TypeResearchPaper, "Research paper", r)
		}
	}()

	pages := pageTexts(ctx, src)
	marked := joinWithMarkers(pages)
	plain := strings.Join(pages, "\n")

	paper := &PaperStructure{
		Abstract:   extractAbstract(pages),
		Authors:    extractAuthors(pages),
		Sections:   extractPaperSections(marked),
		References: extractReferences(pages),
		Citations:  extractCitations(plain),
		Captions:   extractCaptions(pages),
	}

	return &Result{Kind: classify.TypeResearchPaper, Paper: paper}
}

// extractAbstract searches the opening pages for an abstract heading and
// takes the text up to the keywords or introduction heading that follows.
// Without the terminator the candidate is rejected.
func extractAbstract(pages []string) Abstract {
	for i, text := range pages {
		if i >= abstractPageWindow {
			break
		}
		loc := abstractStartRe.FindStringIndex(text)
		if loc == nil {
			continue
		}
		body, terminated := sliceUntil(text[loc[1]:], abstractEndRe)
		if !terminated {
			continue
		}
		content := strings.TrimSpace(body)
		if content == "" {
			continue
		}
		return Abstract{
			Present:   true,
			Content:   content,
			WordCount: wordCount(content),
			Page:      i + 1,
		}
	}
	return Abstract{}
}

// extractAuthors pattern-matches capitalized name runs in the head of the
// first page. Both "First Last" and "F. Last" forms are tried.
func extractAuthors(pages []string) []Author {
	if len(pages) == 0 {
		return nil
	}
	head := truncate(pages[0], authorHeadWindow)

	seen := make(map[string]bool)
	var authors []Author
	for _, re := range authorNameRes {
		for _, m := range re.FindAllStringSubmatch(head, -1) {
			for _, name := range m[1:] {
				name = strings.TrimSpace(name)
				if name == "" || seen[name] {
					continue
				}
				seen[name] = true
				authors = append(authors, Author{Name: name})
				if len(authors) >= authorsCap {
					return authors
				}
			}
		}
	}
	return authors
}

// extractPaperSections locates numbered standard headings and slices the
// text between consecutive headings.
func extractPaperSections(text string) []PaperSection {
	type heading struct {
		title string
		start int
	}
	var headings []heading
	for _, re := range sectionHeadingRes {
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			headings = append(headings, heading{
				title: strings.TrimSpace(text[loc[2]:loc[3]]),
				start: loc[0],
			})
		}
	}
	for i := 1; i < len(headings); i++ {
		for j := i; j > 0 && headings[j].start < headings[j-1].start; j-- {
			headings[j], headings[j-1] = headings[j-1], headings[j]
		}
	}

	sections := make([]PaperSection, 0, len(headings))
	for i, h := range headings {
		end := len(text)
		if i+1 < len(headings) {
			end = headings[i+1].start
		}
		content := truncate(text[h.start:end], sectionContentCap)
		sections = append(sections, PaperSection{
			Title:     h.title,
			Type:      sectionType(h.title),
			Content:   content,
			WordCount: wordCount(content),
		})
	}
	return sections
}

// sectionType buckets a heading into the standard paper section taxonomy.
func sectionType(title string) string {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "introduction"), strings.Contains(lower, "background"), strings.Contains(lower, "literature"):
		return "introduction"
	case strings.Contains(lower, "method"), strings.Contains(lower, "materials"):
		return "methodology"
	case strings.Contains(lower, "result"), strings.Contains(lower, "finding"), strings.Contains(lower, "analysis"):
		return "results"
	case strings.Contains(lower, "discussion"), strings.Contains(lower, "conclusion"):
		return "discussion"
	case strings.Contains(lower, "reference"), strings.Contains(lower, "bibliograph"):
		return "references"
	default:
		return "other"
	}
}

// extractReferences finds the page in the tail of the document whose text
// carries a references heading and splits its entries.
func extractReferences(pages []string) References {
	start := len(pages) - refsPageWindow
	if start < 0 {
		start = 0
	}
	for _, text := range pages[start:] {
		if !refsHeadingRe.MatchString(text) {
			continue
		}
		entries := splitAtMarkers(text, refBracketRe)
		entries = append(entries, splitAtMarkers(text, refNumberedRe)...)
		refs := References{
			Present: true,
			Content: truncate(text, refContentCap),
			Entries: entries,
			Count:   len(entries),
		}
		if len(refs.Entries) > refEntriesCap {
			refs.Entries = refs.Entries[:refEntriesCap]
		}
		return refs
	}
	return References{}
}

// extractCitations counts numeric and author-year in-text citations over
// the whole document.
func extractCitations(text string) Citations {
	var all []string
	for _, m := range citeNumericRe.FindAllStringSubmatch(text, -1) {
		all = append(all, m[1])
	}
	for _, m := range citeAuthorYearRe.FindAllStringSubmatch(text, -1) {
		all = append(all, m[1])
	}

	seen := make(map[string]bool)
	var unique []string
	for _, c := range all {
		if !seen[c] {
			seen[c] = true
			unique = append(unique, c)
		}
	}

	c := Citations{TotalCount: len(all), Unique: unique}
	if words := wordCount(text); words > 0 {
		c.Density = float64(len(all)) / float64(words)
	}
	return c
}

// extractCaptions collects figure and table captions per page.
func extractCaptions(pages []string) []Caption {
	var captions []Caption
	for i, text := range pages {
		for _, re := range captionRes {
			for _, m := range re.FindAllString(text, -1) {
				kind := "table"
				if strings.Contains(strings.ToLower(m), "fig") {
					kind = "figure"
				}
				captions = append(captions, Caption{
					Caption: strings.TrimSpace(m),
					Page:    i + 1,
					Type:    kind,
				})
			}
		}
	}
	return captions
}
