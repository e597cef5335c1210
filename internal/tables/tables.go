// Package tables finds tabular content in a PDF by racing extraction
// strategies and keeping the one whose tables score best. Strategies run
// concurrently, each against its own read-only handle on the file, and a
// strategy that fails or times out simply drops out of the race.
package tables

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// DefaultTimeout bounds a single strategy's run.
const DefaultTimeout = 30 * time.Second

// Table is one extracted table. Score and Accuracy reflect the winning
// strategy's average cell completeness, not the individual table.
type Table struct {
	Page     int        `json:"page"`
	Index    int        `json:"index"`
	Rows     [][]string `json:"rows"`
	Shape    string     `json:"shape"`
	Method   string     `json:"method"`
	Score    float64    `json:"score"`
	Accuracy string     `json:"accuracy"`
}

// Result is the outcome of table extraction. When no strategy produced a
// usable table, Info carries the placeholder note; Error is reserved for
// the file being unreadable at all.
type Result struct {
	Tables []Table `json:"tables,omitempty"`
	Method string  `json:"method,omitempty"`
	Score  float64 `json:"score"`
	Info   string  `json:"info,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Options configure extraction.
type Options struct {
	// Timeout bounds each strategy individually. Zero means DefaultTimeout.
	Timeout time.Duration
	Logger  *slog.Logger
}

// candidate is a scored table before output conversion.
type candidate struct {
	page int
	grid [][]cell
}

// strategyFunc extracts candidate tables from the file at path.
type strategyFunc func(ctx context.Context, path string) ([]candidate, error)

// strategyOrder fixes both the race entrants and the tie-break: on equal
// scores the earlier strategy wins.
var strategyOrder = []struct {
	name string
	run  strategyFunc
}{
	{"lattice", func(ctx context.Context, path string) ([]candidate, error) {
		return runSpanStrategy(ctx, path, latticeParams)
	}},
	{"stream", func(ctx context.Context, path string) ([]candidate, error) {
		return runSpanStrategy(ctx, path, streamParams)
	}},
	{"lines", runLineStrategy},
}

type outcome struct {
	name   string
	tables []candidate
	score  float64
	err    error
}

// Extract races the strategies over the file and returns the best
// strategy's tables.
func Extract(ctx context.Context, path string, opts Options) *Result {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if fi, err := os.Stat(path); err != nil || fi.IsDir() {
		return &Result{Error: "File not found"}
	}

	results := make(chan outcome, len(strategyOrder))
	for _, s := range strategyOrder {
		go func(name string, run strategyFunc) {
			sctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			o := outcome{name: name}
			defer func() {
				if r := recover(); r != nil {
					o = outcome{name: name, err: fmt.Errorf("panic: %v", r)}
				}
				results <- o
			}()

			tables, err := run(sctx, path)
			if err != nil {
				o.err = err
				return
			}
			o.tables = tables
			o.score = averageScore(tables)
		}(s.name, s.run)
	}

	byName := make(map[string]outcome, len(strategyOrder))
	for range strategyOrder {
		o := <-results
		if o.err != nil {
			logger.Warn("table strategy failed", "strategy", o.name, "error", o.err)
		} else {
			logger.Debug("table strategy finished", "strategy", o.name, "tables", len(o.tables), "score", o.score)
		}
		byName[o.name] = o
	}

	// Completed strategies only; errors and timeouts are absent from the
	// comparison rather than scored zero.
	var ordered []outcome
	for _, s := range strategyOrder {
		if o, ok := byName[s.name]; ok && o.err == nil {
			ordered = append(ordered, o)
		}
	}
	best, ok := selectBest(ordered)
	if !ok {
		return &Result{Info: "All extraction strategies failed"}
	}
	if len(best.tables) == 0 {
		return &Result{Info: "No tables detected"}
	}

	logger.Info("table extraction complete", "strategy", best.name, "tables", len(best.tables), "score", best.score)

	out := &Result{Method: best.name, Score: best.score}
	for i, cand := range best.tables {
		rows := len(cand.grid)
		cols := 0
		if rows > 0 {
			cols = len(cand.grid[0])
		}
		out.Tables = append(out.Tables, Table{
			Page:     cand.page,
			Index:    i + 1,
			Rows:     cellsToRows(cand.grid),
			Shape:    fmt.Sprintf("%d rows × %d columns", rows, cols),
			Method:   best.name,
			Score:    best.score,
			Accuracy: fmt.Sprintf("%.1f%%", best.score),
		})
	}
	return out
}

// selectBest picks the completed outcome with the highest average score.
// Order decides ties.
func selectBest(completed []outcome) (outcome, bool) {
	if len(completed) == 0 {
		return outcome{}, false
	}
	best := completed[0]
	for _, o := range completed[1:] {
		if o.score > best.score {
			best = o
		}
	}
	return best, true
}

// averageScore is the mean per-table cell completeness, 0 with no tables.
func averageScore(tables []candidate) float64 {
	if len(tables) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range tables {
		sum += scoreGrid(t.grid)
	}
	return sum / float64(len(tables))
}

// scoreGrid is the percentage of non-null cells. Call after dropNull.
func scoreGrid(grid [][]cell) float64 {
	total, filled := 0, 0
	for _, row := range grid {
		for _, c := range row {
			total++
			if !c.null() {
				filled++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(filled) / float64(total) * 100
}

// dropNull removes rows, then columns, whose cells are all null. A grid
// with nothing left comes back nil.
func dropNull(grid [][]cell) [][]cell {
	var rows [][]cell
	for _, row := range grid {
		keep := false
		for _, c := range row {
			if !c.null() {
				keep = true
				break
			}
		}
		if keep {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil
	}

	width := len(rows[0])
	keepCol := make([]bool, width)
	for _, row := range rows {
		for i, c := range row {
			if i < width && !c.null() {
				keepCol[i] = true
			}
		}
	}
	var out [][]cell
	for _, row := range rows {
		var trimmed []cell
		for i, c := range row {
			if i < width && keepCol[i] {
				trimmed = append(trimmed, c)
			}
		}
		if len(trimmed) > 0 {
			out = append(out, trimmed)
		}
	}
	return out
}

func cellsToRows(grid [][]cell) [][]string {
	rows := make([][]string, len(grid))
	for i, row := range grid {
		rows[i] = make([]string, len(row))
		for j, c := range row {
			rows[i][j] = c.text
		}
	}
	return rows
}
