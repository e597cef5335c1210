// Package metrics provides timing and outcome tracking for pipeline
// stage executions.
package metrics

import "time"

// StageMetric represents a single recorded stage execution. Metrics are
// append-only records held per document; page-level work (OCR, render)
// records one metric per page under an item key.
type StageMetric struct {
	// Attribution (for filtering/aggregation)
	DocID   string `json:"doc_id,omitempty"`
	Stage   string `json:"stage"`
	ItemKey string `json:"item_key,omitempty"` // e.g., "page_0001"

	// Engine info (OCR page records)
	Engine string `json:"engine,omitempty"`

	// Timing
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`

	// Status
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
