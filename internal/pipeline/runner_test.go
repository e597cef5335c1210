package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackzampolin/lectern/internal/classify"
	"github.com/jackzampolin/lectern/internal/extract"
	"github.com/jackzampolin/lectern/internal/home"
	"github.com/jackzampolin/lectern/internal/pdf"
	"github.com/jackzampolin/lectern/internal/store"
)

func newTestRunner(t *testing.T) (*Runner, *store.Store, *home.Dir) {
	t.Helper()

	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home.New() error = %v", err)
	}
	if err := h.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists() error = %v", err)
	}
	s := store.New(h)

	r, err := New(Config{
		Home:   h,
		Store:  s,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r, s, h
}

func createDoc(t *testing.T, s *store.Store) string {
	t.Helper()
	doc, err := s.Create("sample.pdf", strings.NewReader("%PDF-1.4 fake"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return doc.ID
}

func TestNewRequiresHomeAndStore(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("New() with empty config should fail")
	}
}

func TestNewDefaultStageOrder(t *testing.T) {
	r, _, _ := newTestRunner(t)

	ordered, err := r.Registry().GetOrdered()
	if err != nil {
		t.Fatalf("GetOrdered() error = %v", err)
	}

	want := []string{
		StageValidate, StageParse, StageExtract, StageTables, StageOCR,
		StageClassify, StageStructure, StageOrganize, StageRender,
	}
	if len(ordered) != len(want) {
		t.Fatalf("got %d stages, want %d", len(ordered), len(want))
	}
	for i, name := range want {
		if ordered[i].Name() != name {
			t.Errorf("position %d: got %q, want %q", i, ordered[i].Name(), name)
		}
	}
}

func TestProcessSuccess(t *testing.T) {
	r, s, h := newTestRunner(t)
	id := createDoc(t, s)

	r.registry = NewRegistry()
	r.registry.Register(&mockStage{name: "analyze", run: func(_ context.Context, st *State) error {
		st.Extraction = &extract.Result{
			TotalPages: 2,
			Text:       "hello world",
			Metadata:   pdf.Info{Title: "Sample"},
		}
		st.Classification = &classify.Result{
			PrimaryType: classify.TypeBook,
			Confidence:  7.5,
			Scores:      map[classify.Type]float64{classify.TypeBook: 7.5},
		}
		return nil
	}})
	render := &renderStage{home: h, now: time.Now}
	r.registry.Register(&mockStage{name: "render", deps: []string{"analyze"}, run: render.Run})

	st, err := r.Process(t.Context(), id)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if st.ReportPath == "" {
		t.Fatal("ReportPath not set")
	}

	reportText, err := os.ReadFile(st.ReportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	for _, want := range []string{"PDF PROCESSING DOCUMENTATION", "Document Type: Book"} {
		if !strings.Contains(string(reportText), want) {
			t.Errorf("report missing %q", want)
		}
	}

	doc, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if doc.Status != store.StatusCompleted {
		t.Errorf("Status = %q, want %q", doc.Status, store.StatusCompleted)
	}
	if doc.PageCount != 2 || doc.DocType != "book" || doc.Confidence != 7.5 {
		t.Errorf("record = %+v, want pages 2, type book, confidence 7.5", doc)
	}
	if doc.ReportPath != st.ReportPath {
		t.Errorf("ReportPath = %q, want %q", doc.ReportPath, st.ReportPath)
	}
	if doc.ProcessedAt == nil {
		t.Error("ProcessedAt not set")
	}

	data, err := os.ReadFile(h.ResultPath(id))
	if err != nil {
		t.Fatalf("read result.json: %v", err)
	}
	var res DocumentResult
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatalf("decode result.json: %v", err)
	}
	if res.TotalPages != 2 || res.Filename != "sample.pdf" || res.Metadata.Title != "Sample" {
		t.Errorf("result = %+v", res)
	}

	if _, err := os.Stat(h.MetricsPath(id)); err != nil {
		t.Errorf("metrics sidecar missing: %v", err)
	}
	rec, ok := r.Metrics().Get(id)
	if !ok {
		t.Fatal("no metrics recorder for document")
	}
	if got := len(rec.Metrics()); got != 2 {
		t.Errorf("recorded %d stage metrics, want 2", got)
	}
}

func TestProcessDegrades(t *testing.T) {
	r, s, _ := newTestRunner(t)
	id := createDoc(t, s)

	afterRan := false
	r.registry = NewRegistry()
	r.registry.Register(&mockStage{name: "flaky", run: func(_ context.Context, _ *State) error {
		return errors.New("strategy timeout")
	}})
	r.registry.Register(&mockStage{name: "after", deps: []string{"flaky"}, run: func(_ context.Context, _ *State) error {
		afterRan = true
		return nil
	}})

	st, err := r.Process(t.Context(), id)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if !afterRan {
		t.Error("stage after a degraded stage should still run")
	}
	if st.Errors["flaky"] != "strategy timeout" {
		t.Errorf("Errors = %v", st.Errors)
	}

	doc, _ := s.Get(id)
	if doc.Status != store.StatusCompleted {
		t.Errorf("Status = %q, want %q", doc.Status, store.StatusCompleted)
	}
}

func TestProcessFatalStage(t *testing.T) {
	r, s, h := newTestRunner(t)
	id := createDoc(t, s)

	afterRan := false
	r.registry = NewRegistry()
	r.registry.Register(&mockStage{name: "gate", fatal: true, run: func(_ context.Context, _ *State) error {
		return errors.New("file is empty")
	}})
	r.registry.Register(&mockStage{name: "after", deps: []string{"gate"}, run: func(_ context.Context, _ *State) error {
		afterRan = true
		return nil
	}})

	_, err := r.Process(t.Context(), id)
	if err == nil || !strings.Contains(err.Error(), "gate") {
		t.Fatalf("Process() error = %v, want gate failure", err)
	}
	if afterRan {
		t.Error("stage after a fatal stage should not run")
	}

	doc, _ := s.Get(id)
	if doc.Status != store.StatusFailed {
		t.Errorf("Status = %q, want %q", doc.Status, store.StatusFailed)
	}
	if doc.Error != "gate: file is empty" {
		t.Errorf("Error = %q", doc.Error)
	}

	reportText, err := os.ReadFile(h.ReportPath(id))
	if err != nil {
		t.Fatalf("read error report: %v", err)
	}
	if !strings.Contains(string(reportText), "ERROR: gate: file is empty") {
		t.Errorf("error report missing cause:\n%s", reportText)
	}
}

func TestProcessUnknownDocument(t *testing.T) {
	r, _, _ := newTestRunner(t)

	if _, err := r.Process(t.Context(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Process() error = %v, want ErrNotFound", err)
	}
}

func TestProcessCancelledContext(t *testing.T) {
	r, s, _ := newTestRunner(t)
	id := createDoc(t, s)

	r.registry = NewRegistry()
	r.registry.Register(&mockStage{name: "never"})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	if _, err := r.Process(ctx, id); !errors.Is(err, context.Canceled) {
		t.Fatalf("Process() error = %v, want context.Canceled", err)
	}

	doc, _ := s.Get(id)
	if doc.Status != store.StatusFailed {
		t.Errorf("Status = %q, want %q", doc.Status, store.StatusFailed)
	}
}

func TestProcessRealPDF(t *testing.T) {
	const fixture = "testdata/sample.pdf"
	if _, err := os.Stat(fixture); err != nil {
		t.Skip("test fixture not found")
	}

	r, s, h := newTestRunner(t)

	f, err := os.Open(fixture)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer f.Close()

	doc, err := s.Create("sample.pdf", f)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	st, err := r.Process(t.Context(), doc.ID)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if st.Extraction == nil || st.Extraction.TotalPages < 1 {
		t.Error("extraction produced no pages")
	}
	if st.Classification == nil {
		t.Error("classification missing")
	}
	if st.ReportPath == "" {
		t.Error("report not written")
	}

	got, _ := s.Get(doc.ID)
	if got.Status != store.StatusCompleted {
		t.Errorf("Status = %q, want %q", got.Status, store.StatusCompleted)
	}
	if _, err := os.Stat(h.ResultPath(doc.ID)); err != nil {
		t.Errorf("result.json missing: %v", err)
	}
}
