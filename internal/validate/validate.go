// Package validate checks uploaded files before the pipeline accepts
// them. Checks run in order and the first fatal failure stops the rest;
// the first-page text probe is advisory and never rejects a file.
package validate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackzampolin/lectern/internal/pdf"
)

// DefaultMaxSizeMB caps uploads at 50MB unless configured otherwise.
const DefaultMaxSizeMB = 50

const pdfMagic = "%PDF-"

// Check is one validation step's outcome.
type Check struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// Report is the full validation result for one file. NeedsOCR marks a
// structurally valid PDF whose first page carries no extractable text.
type Report struct {
	Valid     bool    `json:"valid"`
	FileSize  int64   `json:"file_size,omitempty"`
	PageCount int     `json:"num_pages,omitempty"`
	HasText   bool    `json:"has_text"`
	NeedsOCR  bool    `json:"needs_ocr,omitempty"`
	Checks    []Check `json:"checks"`
	Error     string  `json:"error,omitempty"`
}

func (r *Report) pass(name string) {
	r.Checks = append(r.Checks, Check{Name: name, Passed: true})
}

func (r *Report) fail(name, format string, args ...any) *Report {
	msg := fmt.Sprintf(format, args...)
	r.Checks = append(r.Checks, Check{Name: name, Message: msg})
	r.Error = msg
	return r
}

// HasPDFExtension reports whether the file name ends in .pdf.
func HasPDFExtension(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".pdf")
}

// File validates the PDF at path. maxSizeMB <= 0 selects the default
// limit.
func File(path string, maxSizeMB int) *Report {
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMaxSizeMB
	}
	r := &Report{}

	fi, err := os.Stat(path)
	if err != nil {
		return r.fail("exists", "file does not exist: %s", path)
	}
	if !fi.Mode().IsRegular() {
		return r.fail("exists", "not a regular file: %s", path)
	}
	r.pass("exists")

	if !HasPDFExtension(path) {
		return r.fail("extension", "file %s is not a PDF", filepath.Base(path))
	}
	r.pass("extension")

	r.FileSize = fi.Size()
	if fi.Size() == 0 {
		return r.fail("size", "file is empty")
	}
	if fi.Size() > int64(maxSizeMB)<<20 {
		return r.fail("size", "file too large: %.1fMB (max: %dMB)",
			float64(fi.Size())/(1<<20), maxSizeMB)
	}
	r.pass("size")

	header := make([]byte, len(pdfMagic))
	f, err := os.Open(path)
	if err != nil {
		return r.fail("readable", "file is not readable: %v", err)
	}
	_, err = io.ReadFull(f, header)
	f.Close()
	if err != nil || string(header) != pdfMagic {
		return r.fail("magic", "missing %%PDF- header: not a PDF file")
	}
	r.pass("magic")

	doc, err := pdf.Open(path)
	if err != nil {
		return r.fail("pdf", "corrupted PDF: %v", err)
	}
	defer doc.Close()
	r.pass("pdf")

	r.PageCount = doc.PageCount()
	if r.PageCount == 0 {
		return r.fail("pages", "PDF has no pages")
	}
	r.pass("pages")

	if text, err := doc.PageText(1); err != nil {
		r.Checks = append(r.Checks, Check{Name: "text", Message: fmt.Sprintf("text probe failed: %v", err)})
	} else if r.HasText = strings.TrimSpace(text) != ""; r.HasText {
		r.pass("text")
	} else {
		r.Checks = append(r.Checks, Check{Name: "text", Message: "first page has no extractable text"})
	}
	r.NeedsOCR = !r.HasText

	r.Valid = true
	return r
}
