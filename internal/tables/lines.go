package tables

import (
	"context"
	"regexp"
	"strings"

	"github.com/jackzampolin/lectern/internal/pdf"
)

// runSpanStrategy opens its own handle on the file and clusters positioned
// words into grids page by page.
func runSpanStrategy(ctx context.Context, path string, p gridParams) ([]candidate, error) {
	doc, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	var out []candidate
	for n := 1; n <= doc.PageCount(); n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		spans, err := doc.PageSpans(n)
		if err != nil {
			continue
		}
		grid := dropNull(detectGrid(spans, p))
		if len(grid) == 0 {
			continue
		}
		out = append(out, candidate{page: n, grid: grid})
	}
	return out, nil
}

// fieldSplitRe cuts a text line into fields at runs of two or more spaces,
// tabs, or pipe delimiters.
var fieldSplitRe = regexp.MustCompile(`\s{2,}|\t|\s*\|\s*`)

// runLineStrategy is the text-only fallback: consecutive lines splitting
// into the same number of fields read as table rows. It catches tables the
// positional strategies miss in PDFs with poor glyph geometry.
func runLineStrategy(ctx context.Context, path string) ([]candidate, error) {
	doc, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	var out []candidate
	for n := 1; n <= doc.PageCount(); n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := doc.PageText(n)
		if err != nil {
			continue
		}
		out = append(out, lineTables(text, n)...)
	}
	return out, nil
}

// lineTables scans one page's text for runs of alignable lines.
func lineTables(text string, page int) []candidate {
	var out []candidate
	var block [][]string

	flush := func() {
		if len(block) >= 2 {
			if grid := dropNull(toCells(block)); len(grid) > 0 {
				out = append(out, candidate{page: page, grid: grid})
			}
		}
		block = nil
	}

	for _, raw := range strings.Split(text, "\n") {
		fields := splitFields(raw)
		if len(fields) < 2 {
			flush()
			continue
		}
		if len(block) > 0 && len(fields) != len(block[0]) {
			flush()
		}
		block = append(block, fields)
	}
	flush()
	return out
}

// splitFields returns the line's fields, or nil when the line has no table
// shape. Interior empty fields survive as null cells.
func splitFields(line string) []string {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	fields := fieldSplitRe.Split(line, -1)
	nonEmpty := 0
	for i, f := range fields {
		fields[i] = strings.TrimSpace(f)
		if fields[i] != "" {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		return nil
	}
	return fields
}

func toCells(rows [][]string) [][]cell {
	grid := make([][]cell, len(rows))
	for i, row := range rows {
		grid[i] = make([]cell, len(row))
		for j, f := range row {
			grid[i][j] = cell{text: f}
		}
	}
	return grid
}
