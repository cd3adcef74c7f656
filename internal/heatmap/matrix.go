package heatmap

import (
	"math"

	"github.com/dvloznov/revenue-cohorts/internal/trend"
)

// PercentageMatrix compares every value against every other one. Row i
// uses values[i] as its 100% base: cell [i][j] is values[j]/values[i]*100,
// rounded half up. The diagonal is always 100, and every other cell of a
// row whose base is zero is 0, even when the compared value is not.
func PercentageMatrix(values []float64) [][]int {
	n := len(values)
	matrix := make([][]int, n)
	for i := range matrix {
		row := make([]int, n)
		base := values[i]
		for j := range row {
			switch {
			case i == j:
				row[j] = 100
			case base == 0:
				row[j] = 0
			default:
				row[j] = int(math.Floor(values[j]/base*100 + 0.5))
			}
		}
		matrix[i] = row
	}
	return matrix
}

// Grid is one heatmap view: labels, the raw totals and their percentage matrix.
type Grid struct {
	Labels []string  `json:"labels"`
	Totals []float64 `json:"totals"`
	Matrix [][]int   `json:"matrix"`
	Weekly *Grid     `json:"weekly,omitempty"`
}

// NewGrid builds the percentage matrix of totals.
func NewGrid(labels []string, totals []float64) *Grid {
	return &Grid{
		Labels: labels,
		Totals: totals,
		Matrix: PercentageMatrix(totals),
	}
}

// Heatmap holds the month, quarter and year views of a report. The weekly
// view is nested under Month when a month was requested.
type Heatmap struct {
	Month   *Grid `json:"month"`
	Quarter *Grid `json:"quarter"`
	Year    *Grid `json:"year"`
}

// Build derives the heatmap views from the series of a trend.
func Build(t *trend.Trend) *Heatmap {
	h := &Heatmap{
		Month:   fromSeries(t.Monthly),
		Quarter: fromSeries(t.Quarterly),
		Year:    fromSeries(t.Yearly),
	}
	if len(t.Weekly) > 0 {
		h.Month.Weekly = fromSeries(t.Weekly)
	}
	return h
}

func fromSeries(points []trend.SeriesPoint) *Grid {
	return NewGrid(trend.Labels(points), trend.Values(points))
}
