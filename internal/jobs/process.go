package jobs

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/jackzampolin/lectern/internal/pipeline"
)

// TypeProcessDocument is the job type for full pipeline runs.
const TypeProcessDocument = "process_document"

// ProcessJob runs the document pipeline for one stored document. The
// runner persists results and updates the document record, so the job
// itself only tracks lifecycle state.
type ProcessJob struct {
	id     string
	docID  string
	runner *pipeline.Runner

	mu     sync.Mutex
	status Status
}

// NewProcessJob creates a pipeline job for the given document.
func NewProcessJob(runner *pipeline.Runner, docID string) *ProcessJob {
	return &ProcessJob{
		id:     uuid.New().String(),
		docID:  docID,
		runner: runner,
		status: StatusQueued,
	}
}

func (j *ProcessJob) ID() string         { return j.id }
func (j *ProcessJob) Type() string       { return TypeProcessDocument }
func (j *ProcessJob) DocumentID() string { return j.docID }

// Status reports the job's own view of its lifecycle state.
func (j *ProcessJob) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *ProcessJob) setStatus(s Status) {
	j.mu.Lock()
	j.status = s
	j.mu.Unlock()
}

// Run executes the pipeline for the job's document.
func (j *ProcessJob) Run(ctx context.Context) error {
	j.setStatus(StatusRunning)

	if _, err := j.runner.Process(ctx, j.docID); err != nil {
		j.setStatus(StatusFailed)
		return err
	}

	j.setStatus(StatusCompleted)
	return nil
}

// Stage names the last pipeline stage recorded for this document.
func (j *ProcessJob) Stage() string {
	rec, ok := j.runner.Metrics().Get(j.docID)
	if !ok {
		return ""
	}
	ms := rec.Metrics()
	if len(ms) == 0 {
		return ""
	}
	return ms[len(ms)-1].Stage
}

var (
	_ Job           = (*ProcessJob)(nil)
	_ StageReporter = (*ProcessJob)(nil)
)
