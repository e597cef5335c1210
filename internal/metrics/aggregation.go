package metrics

import "sort"

// Summary aggregates a document's metrics for the processing summary
// and the metrics endpoint.
type Summary struct {
	DocID        string                 `json:"doc_id,omitempty"`
	Count        int                    `json:"count"`
	SuccessCount int                    `json:"success_count"`
	ErrorCount   int                    `json:"error_count"`
	TotalMS      int64                  `json:"total_ms"`
	Stages       map[string]*StageStats `json:"stages"`
}

// StageStats aggregates the records for one stage. Percentiles are
// meaningful for stages that record one metric per page.
type StageStats struct {
	Count        int      `json:"count"`
	SuccessCount int      `json:"success_count"`
	ErrorCount   int      `json:"error_count"`
	TotalMS      int64    `json:"total_ms"`
	AvgMS        float64  `json:"avg_ms"`
	MinMS        int64    `json:"min_ms"`
	MaxMS        int64    `json:"max_ms"`
	P50MS        float64  `json:"p50_ms"`
	P95MS        float64  `json:"p95_ms"`
	Errors       []string `json:"errors,omitempty"`
}

// Summary computes the aggregate view of everything recorded so far.
func (r *Recorder) Summary() *Summary {
	return summarize(r.docID, r.Metrics())
}

func summarize(docID string, metrics []StageMetric) *Summary {
	s := &Summary{
		DocID:  docID,
		Count:  len(metrics),
		Stages: make(map[string]*StageStats),
	}

	durations := make(map[string][]float64)
	for _, m := range metrics {
		s.TotalMS += m.DurationMS
		if m.Success {
			s.SuccessCount++
		} else {
			s.ErrorCount++
		}

		st, ok := s.Stages[m.Stage]
		if !ok {
			st = &StageStats{MinMS: m.DurationMS}
			s.Stages[m.Stage] = st
		}
		st.Count++
		st.TotalMS += m.DurationMS
		if m.Success {
			st.SuccessCount++
		} else {
			st.ErrorCount++
			if m.Error != "" {
				st.Errors = append(st.Errors, m.Error)
			}
		}
		if m.DurationMS < st.MinMS {
			st.MinMS = m.DurationMS
		}
		if m.DurationMS > st.MaxMS {
			st.MaxMS = m.DurationMS
		}
		durations[m.Stage] = append(durations[m.Stage], float64(m.DurationMS))
	}

	for stage, ds := range durations {
		st := s.Stages[stage]
		st.AvgMS = float64(st.TotalMS) / float64(st.Count)
		sort.Float64s(ds)
		st.P50MS = percentile(ds, 50)
		st.P95MS = percentile(ds, 95)
	}

	return s
}

// percentile calculates the p-th percentile from a sorted slice of values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	n := float64(len(sorted))
	idx := (p / 100.0) * (n - 1)

	// Interpolate between floor and ceil indices
	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
