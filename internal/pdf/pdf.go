// Package pdf provides read-only access to PDF documents: page text with
// font-aware span assembly, image inventories, document metadata, and the
// native outline tree. It layers two readers over the same file: pdfcpu for
// structural access (xref, image objects, bookmarks) and ledongthuc/pdf for
// positioned text content. A Document is safe for concurrent readers.
package pdf

import (
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Document is an open PDF file.
type Document struct {
	path      string
	size      int64
	pageCount int

	ctx     *model.Context
	ctxFile *os.File

	reader     *pdf.Reader
	readerFile *os.File
}

// Span is a run of text sharing one font and size on a single line.
type Span struct {
	Text     string
	Font     string
	FontSize float64
	Bold     bool
	X, Y, W  float64
}

// Line is a horizontal row of spans with its dominant font attributes.
type Line struct {
	Text        string
	Y           float64
	MaxFontSize float64
	Bold        bool
	Spans       []Span
}

// Info holds document metadata from the PDF info dictionary plus file stats.
type Info struct {
	Title        string `json:"title,omitempty"`
	Author       string `json:"author,omitempty"`
	Subject      string `json:"subject,omitempty"`
	Keywords     string `json:"keywords,omitempty"`
	Creator      string `json:"creator,omitempty"`
	Producer     string `json:"producer,omitempty"`
	CreationDate string `json:"creation_date,omitempty"`
	ModDate      string `json:"mod_date,omitempty"`
	PageCount    int    `json:"page_count"`
	SizeBytes    int64  `json:"size_bytes"`
	Encrypted    bool   `json:"encrypted"`
}

// Outline is one entry of the document's bookmark tree, flattened.
type Outline struct {
	Level int    `json:"level"`
	Title string `json:"title"`
	Page  int    `json:"page"`
}

// Open reads and validates the PDF at path. The returned Document holds two
// open file handles until Close is called.
func Open(path string) (*Document, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	cf, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	ctx, err := api.ReadValidateAndOptimize(cf, model.NewDefaultConfiguration())
	if err != nil {
		cf.Close()
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	rf, reader, err := pdf.Open(path)
	if err != nil {
		// Structure parsed but the text reader refused the file. Keep going
		// with pdfcpu only; per-page text falls back to content streams.
		rf, reader = nil, nil
	}

	return &Document{
		path:       path,
		size:       fi.Size(),
		pageCount:  ctx.PageCount,
		ctx:        ctx,
		ctxFile:    cf,
		reader:     reader,
		readerFile: rf,
	}, nil
}

// Close releases the underlying file handles.
func (d *Document) Close() error {
	var first error
	if d.ctxFile != nil {
		if err := d.ctxFile.Close(); err != nil {
			first = err
		}
		d.ctxFile = nil
	}
	if d.readerFile != nil {
		if err := d.readerFile.Close(); err != nil && first == nil {
			first = err
		}
		d.readerFile = nil
	}
	return first
}

// Path returns the file path the document was opened from.
func (d *Document) Path() string { return d.path }

// SizeBytes returns the file size on disk.
func (d *Document) SizeBytes() int64 { return d.size }

// PageCount returns the number of pages. pdfcpu's count is canonical.
func (d *Document) PageCount() int { return d.pageCount }

// Metadata returns the info dictionary fields plus file stats. Missing or
// malformed entries yield empty fields, never an error.
func (d *Document) Metadata() Info {
	info := Info{
		PageCount: d.pageCount,
		SizeBytes: d.size,
		Encrypted: d.ctx.Encrypt != nil,
	}
	if d.reader == nil {
		return info
	}
	defer func() { recover() }()

	dict := d.reader.Trailer().Key("Info")
	if dict.IsNull() {
		return info
	}
	str := func(key string) string {
		v := dict.Key(key)
		if v.Kind() != pdf.String {
			return ""
		}
		return v.Text()
	}
	info.Title = str("Title")
	info.Author = str("Author")
	info.Subject = str("Subject")
	info.Keywords = str("Keywords")
	info.Creator = str("Creator")
	info.Producer = str("Producer")
	info.CreationDate = formatPDFDate(str("CreationDate"))
	info.ModDate = formatPDFDate(str("ModDate"))
	return info
}

// Outlines returns the native bookmark tree flattened in document order.
// Documents without an outline return an empty slice.
func (d *Document) Outlines() []Outline {
	f, err := os.Open(d.path)
	if err != nil {
		return nil
	}
	defer f.Close()

	bms, err := api.Bookmarks(f, model.NewDefaultConfiguration())
	if err != nil {
		return nil
	}
	var out []Outline
	var walk func(bms []pdfcpu.Bookmark, level int)
	walk = func(bms []pdfcpu.Bookmark, level int) {
		for _, bm := range bms {
			out = append(out, Outline{Level: level, Title: bm.Title, Page: bm.PageFrom})
			if len(bm.Kids) > 0 {
				walk(bm.Kids, level+1)
			}
		}
	}
	walk(bms, 1)
	return out
}
