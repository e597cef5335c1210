package metrics

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// Recorder collects stage metrics for one document.
type Recorder struct {
	docID string

	mu      sync.Mutex
	metrics []StageMetric

	now func() time.Time
}

// NewRecorder creates a recorder for a document.
func NewRecorder(docID string) *Recorder {
	return &Recorder{docID: docID, now: time.Now}
}

// DocID returns the document this recorder belongs to.
func (r *Recorder) DocID() string { return r.docID }

// Track runs fn and records its duration and outcome under stage. The
// error from fn is returned unchanged.
func (r *Recorder) Track(stage string, fn func() error) error {
	start := r.now()
	err := fn()

	m := StageMetric{
		DocID:      r.docID,
		Stage:      stage,
		StartedAt:  start,
		DurationMS: r.now().Sub(start).Milliseconds(),
		Success:    err == nil,
	}
	if err != nil {
		m.Error = err.Error()
	}
	r.Record(m)
	return err
}

// Record appends a prepared metric. DocID and StartedAt are filled in
// when empty.
func (r *Recorder) Record(m StageMetric) {
	if m.DocID == "" {
		m.DocID = r.docID
	}
	if m.StartedAt.IsZero() {
		m.StartedAt = r.now()
	}

	r.mu.Lock()
	r.metrics = append(r.metrics, m)
	r.mu.Unlock()
}

// Metrics returns a copy of the recorded metrics in record order.
func (r *Recorder) Metrics() []StageMetric {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]StageMetric, len(r.metrics))
	copy(out, r.metrics)
	return out
}

// metricsFile is the JSON sidecar written next to a document's result.
type metricsFile struct {
	DocID   string        `json:"doc_id"`
	Summary *Summary      `json:"summary"`
	Metrics []StageMetric `json:"metrics"`
}

// WriteFile persists the recorder's metrics and summary as JSON so
// finished runs survive a restart.
func (r *Recorder) WriteFile(path string) error {
	f := metricsFile{
		DocID:   r.docID,
		Summary: r.Summary(),
		Metrics: r.Metrics(),
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// ReadFile loads a previously written metrics sidecar into a recorder.
func ReadFile(path string) (*Recorder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f metricsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}

	r := NewRecorder(f.DocID)
	r.metrics = f.Metrics
	return r, nil
}
