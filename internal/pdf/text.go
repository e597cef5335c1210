package pdf

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
)

const (
	// rowTolerance groups glyphs into the same line when their baselines
	// differ by no more than this many points.
	rowTolerance = 3.0
	// wordSpaceMultiplier scales font size into a word-break gap threshold
	// when no adaptive median spacing is available.
	wordSpaceMultiplier = 0.3
)

// PageMarker formats the page separator used in concatenated document text.
func PageMarker(page int) string {
	return fmt.Sprintf("--- Page %d ---", page)
}

// Text returns the full document text with a "--- Page N ---" marker before
// each page. Pages that fail to extract contribute an empty body after their
// marker so downstream page accounting stays aligned.
func (d *Document) Text() string {
	var sb strings.Builder
	for n := 1; n <= d.pageCount; n++ {
		text, err := d.PageText(n)
		if err != nil {
			text = ""
		}
		sb.WriteString("\n")
		sb.WriteString(PageMarker(n))
		sb.WriteString("\n")
		sb.WriteString(text)
	}
	return sb.String()
}

// PageText returns the text of page n (1-indexed). It prefers positioned
// glyph assembly, then the reader's plain text, then raw content-stream
// parsing, so a page only comes back empty when all three fail.
func (d *Document) PageText(n int) (string, error) {
	lines, err := d.PageLines(n)
	if err == nil && len(lines) > 0 {
		var sb strings.Builder
		for i, ln := range lines {
			if i > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(ln.Text)
		}
		return cleanText(sb.String()), nil
	}

	if text, perr := d.pagePlainText(n); perr == nil && text != "" {
		return cleanText(text), nil
	}

	if text := d.pageStreamText(n); text != "" {
		return text, nil
	}
	if err != nil {
		return "", err
	}
	return "", nil
}

// PageLines returns the assembled text lines of page n with font attributes,
// ordered top to bottom.
func (d *Document) PageLines(n int) (lines []Line, err error) {
	if d.reader == nil {
		return nil, fmt.Errorf("page %d: no text reader", n)
	}
	if n < 1 || n > d.pageCount {
		return nil, fmt.Errorf("page %d: out of range 1..%d", n, d.pageCount)
	}
	// The reader panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			lines, err = nil, fmt.Errorf("page %d: %v", n, r)
		}
	}()

	page := d.reader.Page(n)
	if page.V.IsNull() {
		return nil, fmt.Errorf("page %d: missing page object", n)
	}
	content := page.Content()
	return assembleLines(content.Text), nil
}

// PageSpans returns the font-annotated spans of page n in reading order.
func (d *Document) PageSpans(n int) ([]Span, error) {
	lines, err := d.PageLines(n)
	if err != nil {
		return nil, err
	}
	var spans []Span
	for _, ln := range lines {
		spans = append(spans, ln.Spans...)
	}
	return spans, nil
}

func (d *Document) pagePlainText(n int) (text string, err error) {
	if d.reader == nil {
		return "", fmt.Errorf("page %d: no text reader", n)
	}
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("page %d: %v", n, r)
		}
	}()
	page := d.reader.Page(n)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d: missing page object", n)
	}
	return page.GetPlainText(nil)
}

// assembleLines groups positioned glyphs into lines and merges adjacent
// glyphs into spans, inserting spaces at word-sized gaps. The gap threshold
// adapts to the document's median intra-word spacing when enough glyphs are
// present.
func assembleLines(texts []pdf.Text) []Line {
	if len(texts) == 0 {
		return nil
	}

	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if diff := sorted[i].Y - sorted[j].Y; diff > rowTolerance || diff < -rowTolerance {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	adaptive := medianCharSpacing(sorted) * 5.0

	var lines []Line
	var cur *Line
	var span *Span
	// sep records whether a space belongs between the line text so far and
	// the pending span. A mid-word font change flushes a span with sep
	// false so the glyphs stay joined.
	sep := false
	flushSpan := func() {
		if span == nil {
			return
		}
		if sep && cur.Text != "" {
			cur.Text += " "
		}
		cur.Text += span.Text
		if span.FontSize > cur.MaxFontSize {
			cur.MaxFontSize = span.FontSize
		}
		if span.Bold {
			cur.Bold = true
		}
		cur.Spans = append(cur.Spans, *span)
		span = nil
	}
	flushLine := func() {
		flushSpan()
		if cur != nil && strings.TrimSpace(cur.Text) != "" {
			cur.Text = strings.TrimSpace(cur.Text)
			lines = append(lines, *cur)
		}
		cur = nil
	}

	for _, t := range sorted {
		if t.S == "" {
			continue
		}
		if cur == nil || t.Y < cur.Y-rowTolerance || t.Y > cur.Y+rowTolerance {
			flushLine()
			cur = &Line{Y: t.Y}
			sep = false
		}
		if span != nil {
			gap := t.X - (span.X + span.W)
			threshold := adaptive
			if threshold <= 0 {
				threshold = wordSpaceMultiplier * span.FontSize
				if threshold <= 0 {
					threshold = 3.0
				}
			}
			if gap <= threshold && span.Font == t.Font && span.FontSize == t.FontSize {
				span.Text += t.S
				span.W = t.X + t.W - span.X
				continue
			}
			flushSpan()
			sep = gap > threshold
		}
		span = &Span{
			Text:     t.S,
			Font:     t.Font,
			FontSize: t.FontSize,
			Bold:     strings.Contains(t.Font, "Bold"),
			X:        t.X,
			Y:        t.Y,
			W:        t.W,
		}
	}
	flushLine()
	return lines
}

// medianCharSpacing returns the median positive gap between consecutive
// glyphs on a row, or 0 when there are too few samples to trust.
func medianCharSpacing(sorted []pdf.Text) float64 {
	if len(sorted) < 10 {
		return 0
	}
	var gaps []float64
	for i := 1; i < len(sorted); i++ {
		prev, t := sorted[i-1], sorted[i]
		if diff := t.Y - prev.Y; diff > rowTolerance || diff < -rowTolerance {
			continue
		}
		gap := t.X - (prev.X + prev.W)
		if gap > 0 && gap < t.FontSize*10 {
			gaps = append(gaps, gap)
		}
	}
	if len(gaps) < 5 {
		return 0
	}
	sort.Float64s(gaps)
	return gaps[len(gaps)/2]
}

// pageStreamText extracts text by scanning the raw page content stream for
// text-showing operators. Last-resort path for pages the reader cannot
// decode; character spacing is approximate.
func (d *Document) pageStreamText(n int) string {
	r, err := pdfcpu.ExtractPageContent(d.ctx, n)
	if err != nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return streamText(data)
}

var literalStringRe = regexp.MustCompile(`\(([^)]*)\)`)

func streamText(data []byte) string {
	var sb strings.Builder
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		switch {
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range literalStringRe.FindAllSubmatch(line, -1) {
				sb.WriteString(decodeLiteralString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			for _, m := range literalStringRe.FindAllSubmatch(line, -1) {
				sb.WriteByte('\n')
				sb.WriteString(decodeLiteralString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")):
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
		case bytes.Equal(line, []byte("T*")):
			sb.WriteByte('\n')
		}
	}
	return cleanText(sb.String())
}

// decodeLiteralString resolves PDF literal string escapes, including octal
// byte values.
func decodeLiteralString(raw []byte) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch c := raw[i]; c {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'b', 'f':
			// backspace/formfeed carry no text
		case '\\', '(', ')':
			sb.WriteByte(c)
		default:
			if c >= '0' && c <= '7' {
				val := int(c - '0')
				for k := 0; k < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; k++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				sb.WriteByte(byte(val))
			} else {
				sb.WriteByte(c)
			}
		}
	}
	return sb.String()
}

// cleanText normalizes line endings, strips non-printable bytes and
// collapses runs of blank lines.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' || r >= 0x20 {
			sb.WriteRune(r)
		}
	}
	out := sb.String()
	for strings.Contains(out, "\n\n\n") {
		out = strings.ReplaceAll(out, "\n\n\n", "\n\n")
	}
	return strings.TrimRight(out, " \n")
}

// pdfDateLayouts covers the common prefixes of the PDF date format
// D:YYYYMMDDHHmmSS, longest first.
var pdfDateLayouts = []string{
	"20060102150405",
	"200601021504",
	"2006010215",
	"20060102",
	"200601",
	"2006",
}

// formatPDFDate renders a PDF date string as "2006-01-02 15:04:05". Values
// that do not parse are returned unchanged.
func formatPDFDate(raw string) string {
	if raw == "" {
		return ""
	}
	s := strings.TrimPrefix(raw, "D:")
	// Drop the timezone suffix (Z, +HH'mm' or -HH'mm').
	if i := strings.IndexAny(s, "Z+-"); i >= 0 {
		s = s[:i]
	}
	for _, layout := range pdfDateLayouts {
		if len(s) < len(layout) {
			continue
		}
		if t, err := time.Parse(layout, s[:len(layout)]); err == nil {
			return t.Format("2006-01-02 15:04:05")
		}
	}
	return raw
}
