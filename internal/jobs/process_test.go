package jobs

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/jackzampolin/lectern/internal/home"
	"github.com/jackzampolin/lectern/internal/pipeline"
	"github.com/jackzampolin/lectern/internal/store"
)

func newProcessRunner(t *testing.T) (*pipeline.Runner, *store.Store) {
	t.Helper()

	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatalf("home.New() error = %v", err)
	}
	if err := h.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists() error = %v", err)
	}
	s := store.New(h)

	r, err := pipeline.New(pipeline.Config{
		Home:   h,
		Store:  s,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("pipeline.New() error = %v", err)
	}
	return r, s
}

func TestProcessJob_Fields(t *testing.T) {
	runner, _ := newProcessRunner(t)

	a := NewProcessJob(runner, "doc-a")
	b := NewProcessJob(runner, "doc-b")

	if a.ID() == "" || b.ID() == "" {
		t.Fatal("job IDs should not be empty")
	}
	if a.ID() == b.ID() {
		t.Errorf("job IDs should be unique, both %q", a.ID())
	}
	if a.Type() != TypeProcessDocument {
		t.Errorf("Type() = %q, want %q", a.Type(), TypeProcessDocument)
	}
	if a.DocumentID() != "doc-a" {
		t.Errorf("DocumentID() = %q, want doc-a", a.DocumentID())
	}
	if a.Status() != StatusQueued {
		t.Errorf("Status() = %s before Run, want %s", a.Status(), StatusQueued)
	}
	if a.Stage() != "" {
		t.Errorf("Stage() = %q before Run, want empty", a.Stage())
	}
}

func TestProcessJob_CorruptDocument(t *testing.T) {
	runner, s := newProcessRunner(t)

	doc, err := s.Create("broken.pdf", strings.NewReader("%PDF-1.4 not really"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	job := NewProcessJob(runner, doc.ID)
	if err := job.Run(t.Context()); err == nil {
		t.Fatal("Run() should fail for a corrupt document")
	}

	if job.Status() != StatusFailed {
		t.Errorf("Status() = %s, want %s", job.Status(), StatusFailed)
	}
	if job.Stage() != "validate" {
		t.Errorf("Stage() = %q, want validate", job.Stage())
	}

	stored, err := s.Get(doc.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.Status != store.StatusFailed {
		t.Errorf("document status = %s, want %s", stored.Status, store.StatusFailed)
	}
	if !strings.Contains(stored.Error, "validate") {
		t.Errorf("document error = %q, want validate failure", stored.Error)
	}
}

func TestProcessJob_ThroughScheduler(t *testing.T) {
	runner, s := newProcessRunner(t)

	doc, err := s.Create("broken.pdf", strings.NewReader("%PDF-1.4 not really"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	sched := newTestScheduler(10)
	sched.RunWorkers(t.Context(), 1)

	job := NewProcessJob(runner, doc.ID)
	if err := sched.Submit(job); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	rec := waitForStatus(t, sched, job.ID(), StatusFailed)

	if rec.JobType != TypeProcessDocument {
		t.Errorf("JobType = %q, want %q", rec.JobType, TypeProcessDocument)
	}
	if rec.DocumentID != doc.ID {
		t.Errorf("DocumentID = %q, want %q", rec.DocumentID, doc.ID)
	}
	if rec.Stage != "validate" {
		t.Errorf("Stage = %q, want validate", rec.Stage)
	}
	if rec.Error == "" {
		t.Error("record should carry the pipeline error")
	}
}

func TestProcessJob_RealPDF(t *testing.T) {
	const fixture = "testdata/sample.pdf"
	f, err := os.Open(fixture)
	if err != nil {
		t.Skip("test fixture not found")
	}
	defer f.Close()

	runner, s := newProcessRunner(t)

	doc, err := s.Create("sample.pdf", f)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	job := NewProcessJob(runner, doc.ID)
	if err := job.Run(t.Context()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if job.Status() != StatusCompleted {
		t.Errorf("Status() = %s, want %s", job.Status(), StatusCompleted)
	}
	if job.Stage() != "render" {
		t.Errorf("Stage() = %q, want render", job.Stage())
	}

	stored, err := s.Get(doc.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if stored.Status != store.StatusCompleted {
		t.Errorf("document status = %s, want %s", stored.Status, store.StatusCompleted)
	}
}
