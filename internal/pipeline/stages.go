package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackzampolin/lectern/internal/classify"
	"github.com/jackzampolin/lectern/internal/extract"
	"github.com/jackzampolin/lectern/internal/home"
	"github.com/jackzampolin/lectern/internal/ocr"
	"github.com/jackzampolin/lectern/internal/organize"
	"github.com/jackzampolin/lectern/internal/pdf"
	"github.com/jackzampolin/lectern/internal/report"
	"github.com/jackzampolin/lectern/internal/structure"
	"github.com/jackzampolin/lectern/internal/tables"
	"github.com/jackzampolin/lectern/internal/validate"
)

// validateStage gates the run on the upload checks.
type validateStage struct {
	maxSizeMB int
}

func (s *validateStage) Name() string           { return StageValidate }
func (s *validateStage) Dependencies() []string { return nil }
func (s *validateStage) Description() string    { return "checks the upload is a readable PDF" }
func (s *validateStage) Fatal() bool            { return true }

func (s *validateStage) Run(_ context.Context, st *State) error {
	rep := validate.File(st.Path, s.maxSizeMB)
	st.Validation = rep
	if !rep.Valid {
		return errors.New(rep.Error)
	}
	return nil
}

// parseStage opens the document and hands later stages page access.
type parseStage struct{}

func (s *parseStage) Name() string           { return StageParse }
func (s *parseStage) Dependencies() []string { return []string{StageValidate} }
func (s *parseStage) Description() string    { return "opens the document and prepares page access" }
func (s *parseStage) Fatal() bool            { return true }

func (s *parseStage) Run(_ context.Context, st *State) error {
	doc, err := pdf.Open(st.Path)
	if err != nil {
		return fmt.Errorf("open pdf: %w", err)
	}
	st.Doc = doc
	return nil
}

// extractStage pulls text, images, and metadata from every page.
type extractStage struct {
	workers int
	log     *slog.Logger
}

func (s *extractStage) Name() string           { return StageExtract }
func (s *extractStage) Dependencies() []string { return []string{StageParse} }
func (s *extractStage) Description() string {
	return "pulls text, images, and metadata from every page"
}
func (s *extractStage) Fatal() bool { return false }

func (s *extractStage) Run(ctx context.Context, st *State) error {
	st.Extraction = extract.Run(ctx, st.Doc, s.workers, s.log)
	return nil
}

// tablesStage races the table strategies over the file.
type tablesStage struct {
	timeout time.Duration
	log     *slog.Logger
}

func (s *tablesStage) Name() string           { return StageTables }
func (s *tablesStage) Dependencies() []string { return []string{StageParse} }
func (s *tablesStage) Description() string    { return "detects and scores table regions" }
func (s *tablesStage) Fatal() bool            { return false }

func (s *tablesStage) Run(ctx context.Context, st *State) error {
	res := tables.Extract(ctx, st.Path, tables.Options{Timeout: s.timeout, Logger: s.log})
	st.Tables = res
	if res.Error != "" {
		return errors.New(res.Error)
	}
	return nil
}

// ocrStage recognizes text on scanned pages when extraction came up short.
type ocrStage struct {
	proc *ocr.Processor
}

func (s *ocrStage) Name() string           { return StageOCR }
func (s *ocrStage) Dependencies() []string { return []string{StageExtract} }
func (s *ocrStage) Description() string    { return "recognizes text on scanned pages" }
func (s *ocrStage) Fatal() bool            { return false }

func (s *ocrStage) Run(ctx context.Context, st *State) error {
	res := s.proc.Run(ctx, st.Doc)
	st.OCR = res
	if res.Error != "" {
		return errors.New(res.Error)
	}
	return nil
}

// classifyStage scores the document type from the parsed content.
type classifyStage struct{}

func (s *classifyStage) Name() string           { return StageClassify }
func (s *classifyStage) Dependencies() []string { return []string{StageExtract} }
func (s *classifyStage) Description() string    { return "scores the document type" }
func (s *classifyStage) Fatal() bool            { return false }

func (s *classifyStage) Run(_ context.Context, st *State) error {
	res := classify.Classify(st.Doc)
	st.Classification = res
	if res.Error != "" {
		return errors.New(res.Error)
	}
	return nil
}

// structureStage extracts the type-specific structure.
type structureStage struct{}

func (s *structureStage) Name() string           { return StageStructure }
func (s *structureStage) Dependencies() []string { return []string{StageClassify} }
func (s *structureStage) Description() string    { return "extracts type-specific structure" }
func (s *structureStage) Fatal() bool            { return false }

func (s *structureStage) Run(ctx context.Context, st *State) error {
	t := classify.TypeUnknown
	if st.Classification != nil {
		t = st.Classification.PrimaryType
	}
	res := structure.Extract(ctx, t, st.Doc)
	st.Structure = res
	if res.Error != "" {
		return errors.New(res.Error)
	}
	return nil
}

// organizeStage assembles the page-indexed content map.
type organizeStage struct{}

func (s *organizeStage) Name() string { return StageOrganize }
func (s *organizeStage) Dependencies() []string {
	return []string{StageTables, StageStructure}
}
func (s *organizeStage) Description() string { return "assembles the page-indexed content map" }
func (s *organizeStage) Fatal() bool         { return false }

func (s *organizeStage) Run(_ context.Context, st *State) error {
	var (
		total int
		text  string
		imgs  []pdf.ImageInfo
	)
	if st.Extraction != nil {
		total = st.Extraction.TotalPages
		text = st.Extraction.Text
		imgs = st.Extraction.Images
	}
	var tbls []tables.Table
	if st.Tables != nil {
		tbls = st.Tables.Tables
	}

	pages := organize.ByPage(total, text, imgs, tbls)
	st.Organized = organize.Combine(st.Classification, st.Structure, pages)
	return nil
}

// renderStage writes the text report into the document's directory.
type renderStage struct {
	home *home.Dir
	now  func() time.Time
}

func (s *renderStage) Name() string { return StageRender }
func (s *renderStage) Dependencies() []string {
	return []string{StageOrganize, StageOCR}
}
func (s *renderStage) Description() string { return "writes the text report" }
func (s *renderStage) Fatal() bool         { return false }

func (s *renderStage) Run(_ context.Context, st *State) error {
	text := report.Render(s.buildData(st))
	path := s.home.ReportPath(st.DocID)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	st.Report = text
	st.ReportPath = path
	return nil
}

func (s *renderStage) buildData(st *State) *report.Data {
	d := &report.Data{
		Filename:       st.Filename,
		ProcessedAt:    s.now(),
		Classification: st.Classification,
		Structure:      st.Structure,
		OCR:            st.OCR,
		TotalPages:     st.totalPages(),
	}
	if st.Extraction != nil {
		d.Metadata = st.Extraction.Metadata
		d.TextChars = len(st.Extraction.Text)
		d.Images = st.Extraction.Images
	}
	if st.Tables != nil {
		d.Tables = st.Tables.Tables
	}
	if st.Organized != nil {
		d.Pages = st.Organized.Pages
	}
	return d
}

var (
	_ Stage = (*validateStage)(nil)
	_ Stage = (*parseStage)(nil)
	_ Stage = (*extractStage)(nil)
	_ Stage = (*tablesStage)(nil)
	_ Stage = (*ocrStage)(nil)
	_ Stage = (*classifyStage)(nil)
	_ Stage = (*structureStage)(nil)
	_ Stage = (*organizeStage)(nil)
	_ Stage = (*renderStage)(nil)
)
