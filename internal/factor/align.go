// Package factor implements factor-model estimation: panel alignment, factor
// premiums, static and rolling OLS loadings, and expected-return synthesis.
package factor

import (
	"fmt"
	"time"

	"github.com/yourusername/factorlab/internal/models"
)

// Align inner-joins asset returns and factor returns on their normalized dates.
// Only dates present in both frames survive; nothing is filled or interpolated.
func Align(returns, factors models.Frame) (models.Frame, error) {
	for _, col := range factors.Columns() {
		if returns.HasColumn(col) {
			return models.Frame{}, fmt.Errorf("%w: column %q present in both returns and factors", models.ErrInvalidInput, col)
		}
	}

	left := returns.Dates()
	right := factors.Dates()
	leftIdx := make([]int, 0, len(left))
	rightIdx := make([]int, 0, len(left))
	for i, j := 0, 0; i < len(left) && j < len(right); {
		switch {
		case left[i].Equal(right[j]):
			leftIdx = append(leftIdx, i)
			rightIdx = append(rightIdx, j)
			i++
			j++
		case left[i].Before(right[j]):
			i++
		default:
			j++
		}
	}

	if len(leftIdx) == 0 {
		return models.Frame{}, fmt.Errorf("%w: %d return dates, %d factor dates", models.ErrEmptyAlignment, len(left), len(right))
	}

	l := returns.Rows(leftIdx)
	r := factors.Rows(rightIdx)

	dates := make([]time.Time, len(leftIdx))
	for k, i := range leftIdx {
		dates[k] = left[i]
	}
	columns := append(l.Columns(), r.Columns()...)
	values := make(map[string][]float64, len(columns))
	for _, col := range l.Columns() {
		values[col], _ = l.Column(col)
	}
	for _, col := range r.Columns() {
		values[col], _ = r.Column(col)
	}
	return models.NewFrame(dates, columns, values)
}
