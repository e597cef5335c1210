package metrics

import (
	"sort"
	"sync"
)

// Registry tracks the recorder for every document this process has
// worked on. Recorders stay registered after completion so the metrics
// endpoint can serve finished runs.
type Registry struct {
	mu        sync.RWMutex
	recorders map[string]*Recorder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{recorders: make(map[string]*Recorder)}
}

// ForDocument returns the recorder for a document, creating it on
// first use.
func (g *Registry) ForDocument(docID string) *Recorder {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.recorders[docID]
	if !ok {
		r = NewRecorder(docID)
		g.recorders[docID] = r
	}
	return r
}

// Get returns the recorder for a document if one exists.
func (g *Registry) Get(docID string) (*Recorder, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	r, ok := g.recorders[docID]
	return r, ok
}

// Remove drops a document's recorder, e.g. after the document itself
// is deleted.
func (g *Registry) Remove(docID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.recorders, docID)
}

// DocIDs returns the documents with recorded metrics, sorted.
func (g *Registry) DocIDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]string, 0, len(g.recorders))
	for id := range g.recorders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Filter specifies metric selection for List and the breakdowns.
type Filter struct {
	DocID   string
	Stage   string
	Engine  string
	Success *bool // nil = any, true = success only, false = errors only
}

func (f Filter) matches(m StageMetric) bool {
	if f.DocID != "" && m.DocID != f.DocID {
		return false
	}
	if f.Stage != "" && m.Stage != f.Stage {
		return false
	}
	if f.Engine != "" && m.Engine != f.Engine {
		return false
	}
	if f.Success != nil && m.Success != *f.Success {
		return false
	}
	return true
}

// List returns all recorded metrics matching the filter.
func (g *Registry) List(f Filter) []StageMetric {
	g.mu.RLock()
	recorders := make([]*Recorder, 0, len(g.recorders))
	for _, r := range g.recorders {
		recorders = append(recorders, r)
	}
	g.mu.RUnlock()

	var out []StageMetric
	for _, r := range recorders {
		for _, m := range r.Metrics() {
			if f.matches(m) {
				out = append(out, m)
			}
		}
	}
	return out
}

// StageBreakdown returns total duration by stage for metrics matching
// the filter.
func (g *Registry) StageBreakdown(f Filter) map[string]int64 {
	breakdown := make(map[string]int64)
	for _, m := range g.List(f) {
		breakdown[m.Stage] += m.DurationMS
	}
	return breakdown
}

// EngineBreakdown returns total duration by OCR engine for metrics
// matching the filter. Records without an engine are skipped.
func (g *Registry) EngineBreakdown(f Filter) map[string]int64 {
	breakdown := make(map[string]int64)
	for _, m := range g.List(f) {
		if m.Engine == "" {
			continue
		}
		breakdown[m.Engine] += m.DurationMS
	}
	return breakdown
}

// Summary aggregates one document's metrics across the registry.
func (g *Registry) Summary(docID string) *Summary {
	return summarize(docID, g.List(Filter{DocID: docID}))
}
