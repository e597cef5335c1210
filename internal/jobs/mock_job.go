package jobs

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MockJobType identifies mock jobs in records.
const MockJobType = "mock"

// MockJob is a controllable job for exercising the scheduler.
type MockJob struct {
	id    string
	docID string

	runErr error
	block  chan struct{}
	stage  string

	mu     sync.Mutex
	status Status
	runs   int
}

// MockJobConfig configures a mock job.
type MockJobConfig struct {
	ID         string        // job ID (default: random UUID)
	DocumentID string        // document ID (default "mock-doc")
	RunErr     error         // error returned by Run (nil = success)
	Block      chan struct{} // when set, Run waits for close or ctx cancel
	Stage      string        // value reported by Stage()
}

// NewMockJob creates a mock job.
func NewMockJob(cfg MockJobConfig) *MockJob {
	id := cfg.ID
	if id == "" {
		id = uuid.New().String()
	}
	docID := cfg.DocumentID
	if docID == "" {
		docID = "mock-doc"
	}

	return &MockJob{
		id:     id,
		docID:  docID,
		runErr: cfg.RunErr,
		block:  cfg.Block,
		stage:  cfg.Stage,
		status: StatusQueued,
	}
}

func (j *MockJob) ID() string         { return j.id }
func (j *MockJob) Type() string       { return MockJobType }
func (j *MockJob) DocumentID() string { return j.docID }

// Status reports the job's own view of its lifecycle state.
func (j *MockJob) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Stage reports the configured stage value.
func (j *MockJob) Stage() string {
	return j.stage
}

// Runs returns how many times Run was called.
func (j *MockJob) Runs() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runs
}

// Run blocks if configured to, then returns the configured error.
func (j *MockJob) Run(ctx context.Context) error {
	j.mu.Lock()
	j.runs++
	j.status = StatusRunning
	j.mu.Unlock()

	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			j.setStatus(StatusCancelled)
			return ctx.Err()
		}
	}

	if j.runErr != nil {
		j.setStatus(StatusFailed)
		return j.runErr
	}
	j.setStatus(StatusCompleted)
	return nil
}

func (j *MockJob) setStatus(s Status) {
	j.mu.Lock()
	j.status = s
	j.mu.Unlock()
}

var (
	_ Job           = (*MockJob)(nil)
	_ StageReporter = (*MockJob)(nil)
)
