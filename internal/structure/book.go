package structure

import (
	"context"
	"regexp"
	"strings"

	"github.com/jackzampolin/lectern/internal/classify"
)

// TOCEntry is one table-of-contents row, from native bookmarks or parsed
// out of the contents pages.
type TOCEntry struct {
	Level  int    `json:"level"`
	Title  string `json:"title"`
	Page   int    `json:"page"`
	Source string `json:"source"`
}

// Chapter is a TOC chapter entry resolved to a page range with its text.
type Chapter struct {
	Number    int    `json:"chapter_number"`
	Title     string `json:"title"`
	StartPage int    `json:"start_page"`
	EndPage   int    `json:"end_page"`
	Content   string `json:"content"`
	WordCount int    `json:"word_count"`
}

// IndexInfo describes the back-of-book index, when present.
type IndexInfo struct {
	Present    bool   `json:"present"`
	Content    string `json:"content,omitempty"`
	EntryCount int    `json:"entries_count,omitempty"`
}

// BibliographyInfo describes the bibliography or references section.
type BibliographyInfo struct {
	Present        bool   `json:"present"`
	Content        string `json:"content,omitempty"`
	ReferenceCount int    `json:"reference_count,omitempty"`
}

// BookMetadata carries the front-matter fields worth surfacing for a book.
type BookMetadata struct {
	Title        string `json:"title,omitempty"`
	Author       string `json:"author,omitempty"`
	Publisher    string `json:"publisher,omitempty"`
	CreationDate string `json:"creation_date,omitempty"`
	PageCount    int    `json:"page_count"`
}

// BookStructure is the extracted structure of a book-type document.
type BookStructure struct {
	TOC           []TOCEntry       `json:"toc"`
	Chapters      []Chapter        `json:"chapters"`
	TotalChapters int              `json:"total_chapters"`
	Index         IndexInfo        `json:"index"`
	Bibliography  BibliographyInfo `json:"bibliography"`
	Metadata      BookMetadata     `json:"metadata"`
}

const (
	tocTextPageWindow  = 15
	indexPageWindow    = 10
	biblioPageWindow   = 20
	indexContentCap    = 1000
	biblioContentCap   = 2000
	metadataLineWindow = 20
)

var (
	dotLeaderRe     = regexp.MustCompile(`^(.{2,100}?)\.{2,}\s*(\d{1,4})\s*$`)
	headingNumberRe = regexp.MustCompile(`(?i)^((?:chapter|part|section)\s+\S.{0,80}?)\s{2,}(\d{1,4})\s*$`)
	indexEntryRe    = regexp.MustCompile(`(?m)^[A-Za-z]`)
	biblioEntryRe   = regexp.MustCompile(`(?m)^\d+\.`)
	authorLineRe    = regexp.MustCompile(`(?i)^by\s+(.{2,80})$`)
	publisherWordRe = regexp.MustCompile(`(?i)\b(?:press|publish|publications|books)\b`)
)

var biblioKeywords = []string{"bibliography", "references", "works cited"}

type bookExtractor struct{}

func (bookExtractor) Extract(ctx context.Context, src Source) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			res = failed(classify.TypeBook, "Book", r)
		}
	}()

	pages := pageTexts(ctx, src)

	book := &BookStructure{
		TOC:      extractTOC(src, pages),
		Index:    extractIndex(pages),
		Metadata: extractBookMetadata(src, pages),
	}
	book.Chapters = extractChapters(book.TOC, pages)
	book.TotalChapters = len(book.Chapters)
	book.Bibliography = extractBibliography(pages)

	return &Result{Kind: classify.TypeBook, Book: book}
}

// extractTOC prefers the document's native bookmark tree and falls back to
// parsing contents-style lines out of the front pages.
func extractTOC(src Source, pages []string) []TOCEntry {
	if outlines := src.Outlines(); len(outlines) > 0 {
		entries := make([]TOCEntry, 0, len(outlines))
		for _, o := range outlines {
			entries = append(entries, TOCEntry{
				Level:  o.Level,
				Title:  o.Title,
				Page:   o.Page,
				Source: "bookmark",
			})
		}
		return entries
	}
	return tocFromText(pages)
}

// tocFromText scans the front pages for dot-leader lines ("Title .... 12")
// and numbered heading lines ("Chapter 3    45").
func tocFromText(pages []string) []TOCEntry {
	var entries []TOCEntry
	for i, text := range pages {
		if i >= tocTextPageWindow {
			break
		}
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			m := dotLeaderRe.FindStringSubmatch(line)
			if m == nil {
				m = headingNumberRe.FindStringSubmatch(line)
			}
			if m == nil {
				continue
			}
			page := parsePageNumber(m[2])
			if page <= 0 {
				continue
			}
			entries = append(entries, TOCEntry{
				Level:  1,
				Title:  strings.TrimSpace(m[1]),
				Page:   page,
				Source: "text",
			})
		}
	}
	return entries
}

func parsePageNumber(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// extractChapters resolves the TOC's chapter entries to page ranges. A
// chapter runs up to the page before the next chapter; the last chapter
// runs up to the page before whatever TOC entry follows it, or the end of
// the document when nothing does.
func extractChapters(toc []TOCEntry, pages []string) []Chapter {
	type candidate struct {
		tocIndex int
		entry    TOCEntry
	}
	var chapterEntries []candidate
	for i, e := range toc {
		if strings.Contains(strings.ToLower(e.Title), "chapter") {
			chapterEntries = append(chapterEntries, candidate{i, e})
		}
	}

	chapters := make([]Chapter, 0, len(chapterEntries))
	for i, c := range chapterEntries {
		start := c.entry.Page
		if start < 1 {
			start = 1
		}
		if start > len(pages) {
			start = len(pages)
		}

		end := len(pages)
		if i+1 < len(chapterEntries) {
			end = chapterEntries[i+1].entry.Page - 1
		} else if c.tocIndex+1 < len(toc) {
			end = toc[c.tocIndex+1].Page - 1
		}
		if end < start {
			end = start
		}
		if end > len(pages) {
			end = len(pages)
		}

		var sb strings.Builder
		for p := start; p <= end && p <= len(pages); p++ {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(pages[p-1])
		}
		content := sb.String()

		chapters = append(chapters, Chapter{
			Number:    i + 1,
			Title:     c.entry.Title,
			StartPage: start,
			EndPage:   end,
			Content:   content,
			WordCount: wordCount(content),
		})
	}
	return chapters
}

// extractIndex looks for an index in the last pages, identified by the
// word appearing in a page's opening characters.
func extractIndex(pages []string) IndexInfo {
	start := len(pages) - indexPageWindow
	if start < 0 {
		start = 0
	}
	for _, text := range pages[start:] {
		head := strings.ToLower(truncate(text, 100))
		if !strings.Contains(head, "index") {
			continue
		}
		return IndexInfo{
			Present:    true,
			Content:    truncate(text, indexContentCap),
			EntryCount: len(indexEntryRe.FindAllString(text, -1)),
		}
	}
	return IndexInfo{}
}

// extractBibliography looks for a references section in the last pages.
func extractBibliography(pages []string) BibliographyInfo {
	start := len(pages) - biblioPageWindow
	if start < 0 {
		start = 0
	}
	for _, text := range pages[start:] {
		lower := strings.ToLower(text)
		found := false
		for _, kw := range biblioKeywords {
			if strings.Contains(lower, kw) {
				found = true
				break
			}
		}
		if !found {
			continue
		}
		return BibliographyInfo{
			Present:        true,
			Content:        truncate(text, biblioContentCap),
			ReferenceCount: len(biblioEntryRe.FindAllString(text, -1)),
		}
	}
	return BibliographyInfo{}
}

// extractBookMetadata combines the document info dictionary with title-page
// heuristics: the first substantial line for a title, a "by ..." line for
// the author, a publisher-sounding line for the publisher.
func extractBookMetadata(src Source, pages []string) BookMetadata {
	info := src.Metadata()
	meta := BookMetadata{
		Title:        info.Title,
		Author:       info.Author,
		CreationDate: info.CreationDate,
		PageCount:    len(pages),
	}

	if len(pages) == 0 {
		return meta
	}
	lines := strings.Split(pages[0], "\n")
	if len(lines) > metadataLineWindow {
		lines = lines[:metadataLineWindow]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if meta.Title == "" && len(line) >= 4 && len(line) <= 120 {
			meta.Title = line
			continue
		}
		if meta.Author == "" {
			if m := authorLineRe.FindStringSubmatch(line); m != nil {
				meta.Author = strings.TrimSpace(m[1])
				continue
			}
		}
		if meta.Publisher == "" && publisherWordRe.MatchString(line) && len(line) <= 120 {
			meta.Publisher = line
		}
	}
	return meta
}
