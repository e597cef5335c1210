package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrJobNotFound is returned when no record exists for a job ID.
	ErrJobNotFound = errors.New("job not found")

	// ErrQueueFull is returned by Submit when the queue buffer has no room.
	ErrQueueFull = errors.New("job queue full")
)

// Scheduler dispatches jobs to a pool of worker goroutines through a
// buffered queue and tracks a Record for every submitted job.
type Scheduler struct {
	mu      sync.RWMutex
	records map[string]*Record // every job ever submitted, by ID
	active  map[string]Job     // jobs not yet finished, by ID
	order   []string           // job IDs in submission order

	queue  chan Job
	logger *slog.Logger
	now    func() time.Time
}

// SchedulerConfig configures a new scheduler.
type SchedulerConfig struct {
	Logger    *slog.Logger
	QueueSize int // size of the job queue buffer (default 100)
}

// NewScheduler creates a new scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 100
	}

	return &Scheduler{
		records: make(map[string]*Record),
		active:  make(map[string]Job),
		queue:   make(chan Job, queueSize),
		logger:  logger,
		now:     time.Now,
	}
}

// Submit enqueues a job for execution and records it as queued.
func (s *Scheduler) Submit(job Job) error {
	s.mu.Lock()
	select {
	case s.queue <- job:
	default:
		s.mu.Unlock()
		return ErrQueueFull
	}

	s.records[job.ID()] = &Record{
		ID:         job.ID(),
		JobType:    job.Type(),
		DocumentID: job.DocumentID(),
		Status:     StatusQueued,
		CreatedAt:  s.now().UTC(),
	}
	s.active[job.ID()] = job
	s.order = append(s.order, job.ID())
	s.mu.Unlock()

	s.logger.Info("job submitted", "id", job.ID(), "type", job.Type(), "document", job.DocumentID())
	return nil
}

// RunWorkers starts n worker goroutines that process the queue until
// ctx is cancelled. It returns immediately.
func (s *Scheduler) RunWorkers(ctx context.Context, n int) {
	if n <= 0 {
		n = 1
	}
	s.logger.Info("starting job workers", "count", n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(num int) {
			defer wg.Done()
			s.workerLoop(ctx, num)
		}(i)
	}

	go func() {
		<-ctx.Done()
		wg.Wait()
		s.logger.Info("job workers stopped")
	}()
}

func (s *Scheduler) workerLoop(ctx context.Context, num int) {
	logger := s.logger.With("worker", num)
	logger.Debug("worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("worker stopping")
			return

		case job := <-s.queue:
			s.run(ctx, job)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	s.markRunning(job.ID())

	err := job.Run(ctx)

	switch {
	case err == nil:
		s.markDone(job, StatusCompleted, "")
	case errors.Is(err, context.Canceled):
		s.markDone(job, StatusCancelled, err.Error())
	default:
		s.markDone(job, StatusFailed, err.Error())
	}
}

func (s *Scheduler) markRunning(id string) {
	now := s.now().UTC()

	s.mu.Lock()
	if rec, ok := s.records[id]; ok {
		rec.Status = StatusRunning
		rec.StartedAt = &now
	}
	s.mu.Unlock()
}

func (s *Scheduler) markDone(job Job, status Status, errMsg string) {
	now := s.now().UTC()

	s.mu.Lock()
	if rec, ok := s.records[job.ID()]; ok {
		rec.Status = status
		rec.CompletedAt = &now
		rec.Error = errMsg
		if sr, ok := job.(StageReporter); ok {
			rec.Stage = sr.Stage()
		}
	}
	delete(s.active, job.ID())
	s.mu.Unlock()

	if status == StatusCompleted {
		s.logger.Info("job completed", "id", job.ID(), "type", job.Type(), "document", job.DocumentID())
		return
	}
	s.logger.Warn("job finished with error",
		"id", job.ID(),
		"status", string(status),
		"error", errMsg,
	)
}

// Status returns a copy of the record for the given job ID. For a
// running job that reports stages, the copy carries the live stage.
func (s *Scheduler) Status(id string) (*Record, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	if !ok {
		s.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	out := *rec
	job := s.active[id]
	s.mu.RUnlock()

	if out.Status == StatusRunning && job != nil {
		if sr, ok := job.(StageReporter); ok {
			out.Stage = sr.Stage()
		}
	}
	return &out, nil
}

// List returns copies of all job records, newest first.
func (s *Scheduler) List() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Record, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		if rec, ok := s.records[s.order[i]]; ok {
			c := *rec
			out = append(out, &c)
		}
	}
	return out
}

// ActiveJobs returns the number of jobs that are queued or running.
func (s *Scheduler) ActiveJobs() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active)
}

// QueueDepth returns the number of jobs waiting in the queue buffer.
func (s *Scheduler) QueueDepth() int {
	return len(s.queue)
}

// QueueCapacity returns the size of the queue buffer.
func (s *Scheduler) QueueCapacity() int {
	return cap(s.queue)
}
