package pipeline

import (
	"time"

	"github.com/jackzampolin/lectern/internal/classify"
	"github.com/jackzampolin/lectern/internal/extract"
	"github.com/jackzampolin/lectern/internal/ocr"
	"github.com/jackzampolin/lectern/internal/organize"
	"github.com/jackzampolin/lectern/internal/pdf"
	"github.com/jackzampolin/lectern/internal/structure"
	"github.com/jackzampolin/lectern/internal/tables"
	"github.com/jackzampolin/lectern/internal/validate"
)

// State carries a document through the stages.
type State struct {
	DocID     string
	Path      string
	Filename  string
	StartedAt time.Time

	// Doc is the open document handle. The parse stage sets it; the
	// runner closes it after the last stage.
	Doc *pdf.Document

	Validation     *validate.Report
	Extraction     *extract.Result
	Tables         *tables.Result
	OCR            *ocr.Result
	Classification *classify.Result
	Structure      *structure.Result
	Organized      *organize.Document

	Report     string
	ReportPath string

	// Errors records failed stages by name. A fatal stage failure also
	// lands here before the run aborts.
	Errors map[string]string
}

// DocumentResult is the serialized outcome written to result.json.
type DocumentResult struct {
	DocID       string             `json:"doc_id"`
	Filename    string             `json:"filename"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt time.Time          `json:"completed_at"`
	TotalPages  int                `json:"total_pages"`
	Validation  *validate.Report   `json:"validation,omitempty"`
	Metadata    pdf.Info           `json:"metadata"`
	Document    *organize.Document `json:"document,omitempty"`
	Images      []pdf.ImageInfo    `json:"images,omitempty"`
	Tables      []tables.Table     `json:"tables,omitempty"`
	OCR         *ocr.Result        `json:"ocr,omitempty"`
	ReportPath  string             `json:"report_path,omitempty"`
	Errors      map[string]string  `json:"errors,omitempty"`
}

// Result assembles the serializable outcome of the run so far.
func (s *State) Result(completedAt time.Time) *DocumentResult {
	res := &DocumentResult{
		DocID:       s.DocID,
		Filename:    s.Filename,
		StartedAt:   s.StartedAt,
		CompletedAt: completedAt,
		TotalPages:  s.totalPages(),
		Validation:  s.Validation,
		Document:    s.Organized,
		OCR:         s.OCR,
		ReportPath:  s.ReportPath,
		Errors:      s.Errors,
	}
	if s.Extraction != nil {
		res.Metadata = s.Extraction.Metadata
		res.Images = s.Extraction.Images
	}
	if s.Tables != nil {
		res.Tables = s.Tables.Tables
	}
	return res
}

func (s *State) totalPages() int {
	if s.Extraction != nil && s.Extraction.TotalPages > 0 {
		return s.Extraction.TotalPages
	}
	if s.Validation != nil {
		return s.Validation.PageCount
	}
	return 0
}
