// Package pipeline drives documents through the ordered analysis
// stages and persists their results.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackzampolin/lectern/internal/home"
	"github.com/jackzampolin/lectern/internal/metrics"
	"github.com/jackzampolin/lectern/internal/ocr"
	"github.com/jackzampolin/lectern/internal/report"
	"github.com/jackzampolin/lectern/internal/store"
)

// Config wires the runner's collaborators and stage tuning. Home and
// Store are required; everything else has a working default.
type Config struct {
	Home    *home.Dir
	Store   *store.Store
	Metrics *metrics.Registry
	Logger  *slog.Logger

	MaxSizeMB      int
	ExtractWorkers int
	TableTimeout   time.Duration
	OCREngine      ocr.Engine
	OCRRenderer    ocr.Renderer
	OCRMinChars    int
}

// Runner drives documents through the stage registry.
type Runner struct {
	home     *home.Dir
	store    *store.Store
	registry *Registry
	metrics  *metrics.Registry
	log      *slog.Logger

	now func() time.Time
}

// New builds a runner with the default stage set.
func New(cfg Config) (*Runner, error) {
	if cfg.Home == nil || cfg.Store == nil {
		return nil, errors.New("pipeline: home and store are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewRegistry()
	}

	r := &Runner{
		home:    cfg.Home,
		store:   cfg.Store,
		metrics: cfg.Metrics,
		log:     cfg.Logger,
		now:     time.Now,
	}

	proc := ocr.NewProcessor(ocr.Options{
		Engine:       cfg.OCREngine,
		Renderer:     cfg.OCRRenderer,
		MinTextChars: cfg.OCRMinChars,
		Logger:       cfg.Logger,
	})

	reg := NewRegistry()
	for _, s := range []Stage{
		&validateStage{maxSizeMB: cfg.MaxSizeMB},
		&parseStage{},
		&extractStage{workers: cfg.ExtractWorkers, log: cfg.Logger},
		&tablesStage{timeout: cfg.TableTimeout, log: cfg.Logger},
		&ocrStage{proc: proc},
		&classifyStage{},
		&structureStage{},
		&organizeStage{},
		&renderStage{home: cfg.Home, now: func() time.Time { return r.now() }},
	} {
		if err := reg.Register(s); err != nil {
			return nil, err
		}
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	r.registry = reg
	return r, nil
}

// Registry exposes the stage registry for status listings.
func (r *Runner) Registry() *Registry { return r.registry }

// Metrics exposes the metrics registry shared with the server.
func (r *Runner) Metrics() *metrics.Registry { return r.metrics }

// Process runs a stored document through the pipeline. The returned
// state is populated as far as the run got; a fatal stage failure
// still writes the error report before returning.
func (r *Runner) Process(ctx context.Context, docID string) (*State, error) {
	doc, err := r.store.Get(docID)
	if err != nil {
		return nil, err
	}
	if _, err := r.store.SetStatus(docID, store.StatusProcessing); err != nil {
		return nil, err
	}

	st := &State{
		DocID:     docID,
		Path:      r.store.OriginalPath(docID),
		Filename:  doc.Filename,
		StartedAt: r.now(),
		Errors:    make(map[string]string),
	}
	defer func() {
		if st.Doc != nil {
			st.Doc.Close()
		}
	}()

	ordered, err := r.registry.GetOrdered()
	if err != nil {
		return nil, err
	}

	rec := r.metrics.ForDocument(docID)
	r.log.Info("processing document", "doc", docID, "file", st.Filename)

	var fatal error
	for _, stage := range ordered {
		if err := ctx.Err(); err != nil {
			fatal = err
			break
		}

		name := stage.Name()
		err := rec.Track(name, func() error { return stage.Run(ctx, st) })
		if err == nil {
			continue
		}

		st.Errors[name] = err.Error()
		if stage.Fatal() {
			r.log.Error("stage failed", "doc", docID, "stage", name, "error", err)
			fatal = fmt.Errorf("%s: %w", name, err)
			break
		}
		r.log.Warn("stage degraded", "doc", docID, "stage", name, "error", err)
	}

	if fatal != nil {
		r.fail(st, fatal)
		return st, fatal
	}

	r.finish(st)
	return st, nil
}

// finish persists the results and marks the document completed.
func (r *Runner) finish(st *State) {
	r.persist(st)

	res := store.Result{
		PageCount:  st.totalPages(),
		ReportPath: st.ReportPath,
	}
	if st.Classification != nil {
		res.DocType = string(st.Classification.PrimaryType)
		res.Confidence = st.Classification.Confidence
	}
	if _, err := r.store.SetResult(st.DocID, res); err != nil {
		r.log.Warn("record result", "doc", st.DocID, "error", err)
	}

	r.log.Info("document processed",
		"doc", st.DocID,
		"pages", st.totalPages(),
		"type", res.DocType,
		"degraded", len(st.Errors),
	)
}

// fail writes the short error report and marks the document failed.
func (r *Runner) fail(st *State, cause error) {
	data := &report.Data{Filename: st.Filename, ProcessedAt: r.now(), Error: cause.Error()}
	path := r.home.ReportPath(st.DocID)
	if err := os.WriteFile(path, []byte(report.Render(data)), 0o644); err != nil {
		r.log.Warn("write error report", "doc", st.DocID, "error", err)
	} else {
		st.ReportPath = path
	}

	r.persist(st)
	if _, err := r.store.SetResult(st.DocID, store.Result{ReportPath: st.ReportPath, Err: cause.Error()}); err != nil {
		r.log.Warn("record failure", "doc", st.DocID, "error", err)
	}
}

// persist writes result.json and the metrics sidecar. Neither failure
// aborts the run.
func (r *Runner) persist(st *State) {
	data, err := json.MarshalIndent(st.Result(r.now()), "", "  ")
	if err != nil {
		r.log.Warn("encode result", "doc", st.DocID, "error", err)
	} else if err := os.WriteFile(r.home.ResultPath(st.DocID), append(data, '\n'), 0o644); err != nil {
		r.log.Warn("write result", "doc", st.DocID, "error", err)
	}

	if rec, ok := r.metrics.Get(st.DocID); ok {
		if err := rec.WriteFile(r.home.MetricsPath(st.DocID)); err != nil {
			r.log.Warn("write metrics", "doc", st.DocID, "error", err)
		}
	}
}
