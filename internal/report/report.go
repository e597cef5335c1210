// Package report renders a finished pipeline run as the flat text
// document served by the report endpoint and written next to the
// stored PDF.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/jackzampolin/lectern/internal/classify"
	"github.com/jackzampolin/lectern/internal/ocr"
	"github.com/jackzampolin/lectern/internal/organize"
	"github.com/jackzampolin/lectern/internal/pdf"
	"github.com/jackzampolin/lectern/internal/structure"
	"github.com/jackzampolin/lectern/internal/tables"
)

const timeLayout = "2006-01-02 15:04:05"

// Data is everything the renderer needs from a pipeline run. A
// non-empty Error produces the short failure report instead of the
// full analysis.
type Data struct {
	Filename       string
	ProcessedAt    time.Time
	Error          string
	Classification *classify.Result
	Metadata       pdf.Info
	Structure      *structure.Result
	Pages          map[int]*organize.PageContent
	TotalPages     int
	TextChars      int
	Images         []pdf.ImageInfo
	Tables         []tables.Table
	OCR            *ocr.Result
}

var scoreOrder = []classify.Type{
	classify.TypeBook,
	classify.TypeResearchPaper,
	classify.TypeTechnicalReport,
}

// Render produces the text report.
func Render(d *Data) string {
	if d.Error != "" {
		return strings.Join([]string{
			"PDF PROCESSING DOCUMENTATION",
			strings.Repeat("=", 45),
			"",
			"Document: " + d.Filename,
			"Processed: " + d.ProcessedAt.Format(timeLayout),
			"",
			"ERROR: " + d.Error,
		}, "\n") + "\n"
	}

	docType := classify.TypeUnknown
	confidence := 0.0
	var scores map[classify.Type]float64
	if d.Classification != nil {
		docType = d.Classification.PrimaryType
		confidence = d.Classification.Confidence
		scores = d.Classification.Scores
	}

	lines := []string{
		"PDF PROCESSING DOCUMENTATION",
		strings.Repeat("=", 45),
		"",
		"Document: " + d.Filename,
		"Processed: " + d.ProcessedAt.Format(timeLayout),
		fmt.Sprintf("Document Type: %s (Confidence: %.2f)", typeTitle(docType), confidence),
		"Processing System: lectern document analyzer",
		"",
		"This document contains the complete analysis of the uploaded PDF file,",
		"automatically classified and processed using type-specific extraction",
		"strategies.",
		"",
		"The content is organized as follows:",
		"1. Document Metadata and Classification",
		"2. Type-Specific Content Analysis",
		"3. Page-wise Content Analysis",
		"4. OCR Analysis",
		"5. Processing Summary",
		"", "",
	}

	lines = append(lines, "DOCUMENT METADATA AND CLASSIFICATION", strings.Repeat("=", 50))
	lines = append(lines,
		"DOCUMENT TYPE CLASSIFICATION:",
		"Primary Type: "+typeTitle(docType),
		fmt.Sprintf("Confidence: %.2f", confidence),
	)
	for _, t := range scoreOrder {
		if score, ok := scores[t]; ok {
			lines = append(lines, fmt.Sprintf("%s Score: %.2f", typeTitle(t), score))
		}
	}
	lines = append(lines, "", "DOCUMENT METADATA:", formatMetadata(d.Metadata))
	lines = append(lines, "", "")

	lines = append(lines, "TYPE-SPECIFIC CONTENT ANALYSIS", strings.Repeat("=", 50))
	if st := d.Structure; st != nil && st.Error == "" {
		switch {
		case st.Book != nil:
			lines = appendBook(lines, st.Book)
		case st.Paper != nil:
			lines = appendPaper(lines, st.Paper)
		case st.Report != nil:
			lines = appendReport(lines, st.Report)
		}
	}
	lines = append(lines, "", "")

	lines = append(lines, "PAGE-WISE CONTENT ANALYSIS", strings.Repeat("=", 50), "")
	if len(d.Pages) > 0 {
		lines = appendPageWise(lines, d.Pages, d.TotalPages)
	} else {
		lines = append(lines, "No page-wise content available.")
	}

	lines = append(lines, "", "", "OCR EXTRACTED TEXT", strings.Repeat("=", 40))
	lines = append(lines, ocrSection(d.OCR)...)

	ocrChars := 0
	if d.OCR != nil && d.OCR.Performed {
		ocrChars = len(strings.TrimSpace(d.OCR.Text))
	}
	lines = append(lines, "", "", "PROCESSING SUMMARY", strings.Repeat("=", 40),
		"Document: "+d.Filename,
		"Processed at: "+d.ProcessedAt.Format(timeLayout),
		fmt.Sprintf("Total Pages: %d", d.TotalPages),
		fmt.Sprintf("Text Characters: %d", d.TextChars),
		fmt.Sprintf("Images Found: %d", len(d.Images)),
		fmt.Sprintf("Tables Found: %d", len(d.Tables)),
		fmt.Sprintf("OCR Characters: %d", ocrChars),
	)

	return strings.Join(lines, "\n") + "\n"
}

func appendBook(lines []string, b *structure.BookStructure) []string {
	lines = append(lines, "BOOK STRUCTURE ANALYSIS:", strings.Repeat("-", 25))

	if len(b.TOC) > 0 {
		lines = append(lines, fmt.Sprintf("Table of Contents (%d entries):", len(b.TOC)))
		shown := b.TOC
		if len(shown) > 10 {
			shown = shown[:10]
		}
		for _, e := range shown {
			lines = append(lines, fmt.Sprintf("  %s%s ... Page %d", strings.Repeat("  ", e.Level), e.Title, e.Page))
		}
		if rest := len(b.TOC) - 10; rest > 0 {
			lines = append(lines, fmt.Sprintf("  ... and %d more entries", rest))
		}
	}

	if len(b.Chapters) > 0 {
		lines = append(lines, "", fmt.Sprintf("Chapters (%d found):", len(b.Chapters)))
		shown := b.Chapters
		if len(shown) > 5 {
			shown = shown[:5]
		}
		for _, c := range shown {
			lines = append(lines,
				fmt.Sprintf("  Chapter %d: %s", c.Number, c.Title),
				fmt.Sprintf("    Pages: %d-%d", c.StartPage, c.EndPage),
				fmt.Sprintf("    Word Count: %d", c.WordCount),
			)
		}
	}
	return lines
}

func appendPaper(lines []string, p *structure.PaperStructure) []string {
	lines = append(lines, "RESEARCH PAPER ANALYSIS:", strings.Repeat("-", 25))

	if p.Abstract.Present {
		lines = append(lines,
			"Abstract:",
			"  Content: "+clip(p.Abstract.Content, 200)+"...",
			fmt.Sprintf("  Word Count: %d", p.Abstract.WordCount),
		)
	}

	if len(p.Authors) > 0 {
		names := make([]string, 0, 5)
		for _, a := range p.Authors {
			names = append(names, a.Name)
			if len(names) == 5 {
				break
			}
		}
		lines = append(lines, "", "Authors: "+strings.Join(names, ", "))
	}

	if len(p.Sections) > 0 {
		lines = append(lines, "", fmt.Sprintf("Paper Sections (%d found):", len(p.Sections)))
		for _, s := range p.Sections {
			lines = append(lines, fmt.Sprintf("  %s (%d words)", s.Title, s.WordCount))
		}
	}

	if p.References.Present {
		lines = append(lines, "", fmt.Sprintf("References: %d citations found", p.References.Count))
	}
	return lines
}

func appendReport(lines []string, r *structure.ReportStructure) []string {
	lines = append(lines, "TECHNICAL REPORT ANALYSIS:", strings.Repeat("-", 25))

	if r.ExecutiveSummary.Present {
		lines = append(lines,
			"Executive Summary:",
			"  Content: "+clip(r.ExecutiveSummary.Content, 200)+"...",
			fmt.Sprintf("  Word Count: %d", r.ExecutiveSummary.WordCount),
		)
	}

	if r.Recommendations.Present {
		lines = append(lines, "", fmt.Sprintf("Recommendations (%d found):", r.Recommendations.Count))
		for i, rec := range r.Recommendations.Items {
			if i == 3 {
				break
			}
			lines = append(lines, fmt.Sprintf("  %d. %s...", i+1, clip(rec, 100)))
		}
	}

	if r.TechnicalSpecs.Count > 0 {
		lines = append(lines, "", fmt.Sprintf("Technical Specifications: %d found", r.TechnicalSpecs.Count))
	}
	return lines
}

func appendPageWise(lines []string, pages map[int]*organize.PageContent, total int) []string {
	for page := 1; page <= total; page++ {
		pc, ok := pages[page]
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("PAGE %d", page), strings.Repeat("-", 20), "")

		if text := strings.TrimSpace(pc.Text); text != "" {
			lines = append(lines, "EXTRACTED TEXT:", strings.Repeat("~", 15), text, "")
		}

		if len(pc.Images) > 0 {
			lines = append(lines, "EXTRACTED IMAGES:", strings.Repeat("~", 16))
			for i, img := range pc.Images {
				size := "Unknown"
				if img.Width > 0 || img.Height > 0 {
					size = fmt.Sprintf("%dx%d", img.Width, img.Height)
				}
				format := img.Format
				if format == "" {
					format = "Unknown"
				}
				lines = append(lines,
					fmt.Sprintf("Image %d:", i+1),
					"  Size: "+size,
					"  Format: "+format,
					"",
				)
			}
		}

		if len(pc.Tables) > 0 {
			lines = append(lines, "EXTRACTED TABLES:", strings.Repeat("~", 16))
			for i, tb := range pc.Tables {
				shape := tb.Shape
				if shape == "" {
					shape = "Unknown"
				}
				method := tb.Method
				if method == "" {
					method = "Unknown"
				}
				lines = append(lines, fmt.Sprintf("Table %d:", i+1), "  Dimensions: "+shape)
				if tb.Accuracy != "" {
					lines = append(lines, "  Accuracy: "+tb.Accuracy)
				}
				lines = append(lines, "  Method: "+method)
				preview := fmt.Sprintf("%v", tb.Rows)
				if len(preview) > 200 {
					preview = clip(preview, 200) + "..."
				}
				lines = append(lines, "  Preview: "+preview, "")
			}
		}

		if page < total {
			lines = append(lines, strings.Repeat("=", 50), "")
		}
	}
	return lines
}

func ocrSection(res *ocr.Result) []string {
	var out []string
	if res != nil {
		if note := strings.TrimSpace(res.Note); note != "" {
			out = append(out, "[OCR Note: "+note+"]")
		}
		if res.Performed {
			if text := strings.TrimSpace(res.Text); text != "" {
				out = append(out, text)
			}
		}
	}
	if len(out) == 0 {
		out = []string{"No OCR text extracted."}
	}
	return out
}

func formatMetadata(info pdf.Info) string {
	var out []string
	add := func(label, value string) {
		if value != "" {
			out = append(out, label+": "+value)
		}
	}
	add("Title", info.Title)
	add("Author", info.Author)
	add("Subject", info.Subject)
	add("Creator", info.Creator)
	add("Producer", info.Producer)
	add("Created", info.CreationDate)
	add("Modified", info.ModDate)
	if info.PageCount > 0 {
		out = append(out, fmt.Sprintf("Pages: %d", info.PageCount))
	}
	if info.SizeBytes > 0 {
		out = append(out, fmt.Sprintf("File Size (MB): %.2f", float64(info.SizeBytes)/(1<<20)))
	}
	if info.Encrypted {
		out = append(out, "Encrypted: true")
	}
	if len(out) == 0 {
		return "No metadata available"
	}
	return strings.Join(out, "\n")
}

// typeTitle renders a document type identifier as display text,
// e.g. research_paper becomes Research Paper.
func typeTitle(t classify.Type) string {
	words := strings.Split(string(t), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// clip caps a string at n runes without adding an ellipsis.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
