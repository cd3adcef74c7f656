package heatmap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/revenue-cohorts/internal/period"
)

// Mode selects the highest or lowest cells of a column.
type Mode string

const (
	Top Mode = "top"
	Low Mode = "low"
)

// ParseMode parses "top" or "low".
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case Top, Low:
		return m, nil
	case "":
		return "", &period.ValidationError{Field: "type", Message: "type is required"}
	}
	return "", &period.ValidationError{Field: "type", Message: fmt.Sprintf("type must be top or low (got %q)", s)}
}

// Cell is one matrix cell picked for a column.
type Cell struct {
	Row   int `json:"row"`
	Value int `json:"value"`
}

// ColumnExtreme lists the picked cells of one column, best first.
type ColumnExtreme struct {
	Column int    `json:"column"`
	Cells  []Cell `json:"cells"`
}

// ColumnExtremes returns, per column, the highest (Top) or lowest (Low)
// non-zero off-diagonal cells with their row index. Three cells are picked
// per column of a 12x12 matrix, one otherwise. Ties keep row order.
func ColumnExtremes(matrix [][]int, mode Mode) ([]ColumnExtreme, error) {
	if len(matrix) == 0 {
		return nil, &period.ValidationError{Field: "matrix", Message: "matrix is required"}
	}
	if mode != Top && mode != Low {
		return nil, &period.ValidationError{Field: "type", Message: fmt.Sprintf("type must be top or low (got %q)", mode)}
	}
	n := len(matrix)
	for i, row := range matrix {
		if len(row) != n {
			return nil, &period.ValidationError{Field: "matrix", Message: fmt.Sprintf("matrix must be square: row %d has %d columns, want %d", i, len(row), n)}
		}
	}

	k := 1
	if n == 12 {
		k = 3
	}

	out := make([]ColumnExtreme, n)
	for j := 0; j < n; j++ {
		var cells []Cell
		for i := 0; i < n; i++ {
			if i == j || matrix[i][j] == 0 {
				continue
			}
			cells = append(cells, Cell{Row: i, Value: matrix[i][j]})
		}
		sort.SliceStable(cells, func(a, b int) bool {
			if mode == Top {
				return cells[a].Value > cells[b].Value
			}
			return cells[a].Value < cells[b].Value
		})
		if len(cells) > k {
			cells = cells[:k]
		}
		if cells == nil {
			cells = []Cell{}
		}
		out[j] = ColumnExtreme{Column: j, Cells: cells}
	}
	return out, nil
}
