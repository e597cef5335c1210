// Package jobs runs document processing in the background. A Scheduler
// feeds submitted jobs through a buffered queue to a pool of worker
// goroutines and keeps a record of every job it has seen.
package jobs

import (
	"context"
	"time"
)

// Status represents the lifecycle state of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Job is a unit of background work tied to a single document.
type Job interface {
	// ID uniquely identifies this job instance.
	ID() string

	// Type names the kind of work, e.g. "process_document".
	Type() string

	// DocumentID returns the document this job operates on.
	DocumentID() string

	// Run executes the job. It is called at most once, by a scheduler
	// worker, and must honor ctx cancellation.
	Run(ctx context.Context) error

	// Status reports the job's own view of its lifecycle state.
	Status() Status
}

// StageReporter is implemented by jobs that can name the pipeline
// stage they most recently finished. The scheduler uses it to enrich
// status queries for running jobs.
type StageReporter interface {
	Stage() string
}

// Record tracks a job's lifecycle for status queries. All fields are
// managed by the Scheduler.
type Record struct {
	ID          string     `json:"id"`
	JobType     string     `json:"job_type"`
	DocumentID  string     `json:"document_id"`
	Status      Status     `json:"status"`
	Stage       string     `json:"stage,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
