package tables

import (
	"math"
	"sort"
	"strings"

	"github.com/jackzampolin/lectern/internal/pdf"
)

// Geometry buckets for clustering word positions into table columns and
// rows. Words within a bucket of each other are treated as aligned.
const (
	latticeXBucket = 5.0
	streamXBucket  = 10.0
	yBucket        = 3.0

	// spacingTolerance is the allowed deviation of column spacings from
	// their mean before an alignment stops looking like a ruled grid.
	spacingTolerance = 0.3
)

// cell is one table cell; empty text means the cell is null.
type cell struct {
	text string
}

func (c cell) null() bool { return c.text == "" }

// gridParams tune the span clustering per strategy.
type gridParams struct {
	xBucket         float64
	minColumnWords  int
	requireRuledFit bool
}

var (
	latticeParams = gridParams{xBucket: latticeXBucket, minColumnWords: 3, requireRuledFit: true}
	streamParams  = gridParams{xBucket: streamXBucket, minColumnWords: 2, requireRuledFit: false}
)

// detectGrid clusters the page's words into an aligned grid. It returns nil
// when the words do not form at least a 2x2 aligned structure, or, for the
// lattice parameters, when the column spacing is too irregular for a ruled
// table.
func detectGrid(words []pdf.Span, p gridParams) [][]cell {
	if len(words) < 4 {
		return nil
	}

	colCenters := alignedCenters(words, p.xBucket, p.minColumnWords, func(w pdf.Span) float64 { return w.X })
	if len(colCenters) < 2 {
		return nil
	}
	rowCenters := alignedCenters(words, yBucket, 2, func(w pdf.Span) float64 { return w.Y })
	if len(rowCenters) < 2 {
		return nil
	}
	if p.requireRuledFit && !consistentSpacing(colCenters) {
		return nil
	}

	// Rows read top to bottom: higher Y first.
	sort.Sort(sort.Reverse(sort.Float64Slice(rowCenters)))

	type slot struct{ row, col int }
	assigned := make(map[slot][]pdf.Span)
	for _, w := range words {
		col := nearestIndex(colCenters, w.X, p.xBucket*2)
		row := nearestIndex(rowCenters, w.Y, yBucket*2)
		if col < 0 || row < 0 {
			continue
		}
		assigned[slot{row, col}] = append(assigned[slot{row, col}], w)
	}

	grid := make([][]cell, len(rowCenters))
	for r := range grid {
		grid[r] = make([]cell, len(colCenters))
		for c := range grid[r] {
			ws := assigned[slot{r, c}]
			sort.Slice(ws, func(i, j int) bool { return ws[i].X < ws[j].X })
			parts := make([]string, 0, len(ws))
			for _, w := range ws {
				if t := strings.TrimSpace(w.Text); t != "" {
					parts = append(parts, t)
				}
			}
			grid[r][c] = cell{text: strings.Join(parts, " ")}
		}
	}
	return grid
}

// alignedCenters buckets one coordinate of the words and returns the sorted
// centers of buckets holding at least minWords entries.
func alignedCenters(words []pdf.Span, bucket float64, minWords int, coord func(pdf.Span) float64) []float64 {
	counts := make(map[float64]int)
	sums := make(map[float64]float64)
	for _, w := range words {
		key := math.Round(coord(w)/bucket) * bucket
		counts[key]++
		sums[key] += coord(w)
	}
	var centers []float64
	for key, n := range counts {
		if n >= minWords {
			centers = append(centers, sums[key]/float64(n))
		}
	}
	sort.Float64s(centers)
	return centers
}

// consistentSpacing reports whether the gaps between sorted centers all sit
// within 30% of their mean, the signature of a ruled grid.
func consistentSpacing(centers []float64) bool {
	if len(centers) < 3 {
		return true
	}
	var spacings []float64
	for i := 1; i < len(centers); i++ {
		spacings = append(spacings, centers[i]-centers[i-1])
	}
	mean := 0.0
	for _, s := range spacings {
		mean += s
	}
	mean /= float64(len(spacings))
	if mean <= 0 {
		return false
	}
	for _, s := range spacings {
		if math.Abs(s-mean) > mean*spacingTolerance {
			return false
		}
	}
	return true
}

// nearestIndex returns the index of the center closest to v within maxDist,
// or -1 when nothing is close enough.
func nearestIndex(centers []float64, v, maxDist float64) int {
	best := -1
	bestDist := maxDist
	for i, c := range centers {
		if d := math.Abs(c - v); d <= bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}
