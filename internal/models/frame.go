package models

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Frequency is the sampling frequency of a date-indexed series
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyMonthly Frequency = "monthly"
)

// PeriodsPerYear returns the annualization constant for a frequency
func PeriodsPerYear(freq Frequency) float64 {
	switch freq {
	case FrequencyMonthly:
		return 12
	default:
		return 252
	}
}

// NormalizeDate drops the clock and the location of t, keeping the calendar date
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Frame is a date-indexed table of float64 columns.
// Dates are strictly increasing and every column holds one value per date.
type Frame struct {
	dates   []time.Time
	columns []string
	data    map[string][]float64
}

// NewFrame builds a frame, normalizing dates and checking the index invariants.
// Columns are kept in the order given.
func NewFrame(dates []time.Time, columns []string, values map[string][]float64) (Frame, error) {
	normalized := make([]time.Time, len(dates))
	for i, d := range dates {
		normalized[i] = NormalizeDate(d)
		if i > 0 && !normalized[i].After(normalized[i-1]) {
			return Frame{}, fmt.Errorf("dates must be strictly increasing: %s follows %s",
				normalized[i].Format(DateLayout), normalized[i-1].Format(DateLayout))
		}
	}

	data := make(map[string][]float64, len(columns))
	cols := make([]string, 0, len(columns))
	for _, col := range columns {
		if _, dup := data[col]; dup {
			return Frame{}, fmt.Errorf("duplicate column %q", col)
		}
		v, ok := values[col]
		if !ok {
			return Frame{}, fmt.Errorf("missing values for column %q", col)
		}
		if len(v) != len(dates) {
			return Frame{}, fmt.Errorf("column %q has %d values for %d dates", col, len(v), len(dates))
		}
		data[col] = append([]float64(nil), v...)
		cols = append(cols, col)
	}

	return Frame{dates: normalized, columns: cols, data: data}, nil
}

// DateLayout is the canonical date format used across artifacts
const DateLayout = "2006-01-02"

// Len returns the number of rows
func (f Frame) Len() int {
	return len(f.dates)
}

// Dates returns a copy of the date index
func (f Frame) Dates() []time.Time {
	return append([]time.Time(nil), f.dates...)
}

// Date returns the i-th date
func (f Frame) Date(i int) time.Time {
	return f.dates[i]
}

// Columns returns a copy of the column names in order
func (f Frame) Columns() []string {
	return append([]string(nil), f.columns...)
}

// HasColumn reports whether name is a column of the frame
func (f Frame) HasColumn(name string) bool {
	_, ok := f.data[name]
	return ok
}

// Column returns a copy of a column's values
func (f Frame) Column(name string) ([]float64, error) {
	v, ok := f.data[name]
	if !ok {
		return nil, fmt.Errorf("column %q not found", name)
	}
	return append([]float64(nil), v...), nil
}

// Value returns the value of column name at row i
func (f Frame) Value(name string, i int) float64 {
	return f.data[name][i]
}

// Select returns a new frame restricted to the given columns, in that order
func (f Frame) Select(columns ...string) (Frame, error) {
	values := make(map[string][]float64, len(columns))
	for _, col := range columns {
		v, ok := f.data[col]
		if !ok {
			return Frame{}, fmt.Errorf("column %q not found", col)
		}
		values[col] = v
	}
	return NewFrame(f.dates, columns, values)
}

// Slice returns rows [from, to) as a new frame
func (f Frame) Slice(from, to int) Frame {
	if from < 0 {
		from = 0
	}
	if to > len(f.dates) {
		to = len(f.dates)
	}
	if from > to {
		from = to
	}
	out := Frame{
		dates:   append([]time.Time(nil), f.dates[from:to]...),
		columns: append([]string(nil), f.columns...),
		data:    make(map[string][]float64, len(f.columns)),
	}
	for _, col := range f.columns {
		out.data[col] = append([]float64(nil), f.data[col][from:to]...)
	}
	return out
}

// Rename returns a new frame with columns renamed by mapping; unmapped columns keep their name
func (f Frame) Rename(mapping map[string]string) (Frame, error) {
	columns := make([]string, len(f.columns))
	values := make(map[string][]float64, len(f.columns))
	for i, col := range f.columns {
		name := col
		if renamed, ok := mapping[col]; ok {
			name = renamed
		}
		columns[i] = name
		values[name] = f.data[col]
	}
	return NewFrame(f.dates, columns, values)
}

// Map returns a new frame with fn applied to every value of the given columns.
// An empty column list applies fn to all columns.
func (f Frame) Map(fn func(float64) float64, columns ...string) (Frame, error) {
	targets := make(map[string]bool, len(columns))
	for _, col := range columns {
		if !f.HasColumn(col) {
			return Frame{}, fmt.Errorf("column %q not found", col)
		}
		targets[col] = true
	}
	values := make(map[string][]float64, len(f.columns))
	for _, col := range f.columns {
		src := f.data[col]
		if len(targets) > 0 && !targets[col] {
			values[col] = src
			continue
		}
		dst := make([]float64, len(src))
		for i, v := range src {
			dst[i] = fn(v)
		}
		values[col] = dst
	}
	return NewFrame(f.dates, f.columns, values)
}

// DropNaN returns a new frame without the rows that hold a NaN in any column
func (f Frame) DropNaN() Frame {
	keep := make([]int, 0, len(f.dates))
	for i := range f.dates {
		valid := true
		for _, col := range f.columns {
			if math.IsNaN(f.data[col][i]) {
				valid = false
				break
			}
		}
		if valid {
			keep = append(keep, i)
		}
	}
	return f.rows(keep)
}

// rows returns a new frame holding the given row indices in order
func (f Frame) rows(idx []int) Frame {
	out := Frame{
		dates:   make([]time.Time, len(idx)),
		columns: append([]string(nil), f.columns...),
		data:    make(map[string][]float64, len(f.columns)),
	}
	for j, i := range idx {
		out.dates[j] = f.dates[i]
	}
	for _, col := range f.columns {
		src := f.data[col]
		dst := make([]float64, len(idx))
		for j, i := range idx {
			dst[j] = src[i]
		}
		out.data[col] = dst
	}
	return out
}

// IndexOf returns the row index of date, or -1
func (f Frame) IndexOf(date time.Time) int {
	date = NormalizeDate(date)
	i := sort.Search(len(f.dates), func(i int) bool { return !f.dates[i].Before(date) })
	if i < len(f.dates) && f.dates[i].Equal(date) {
		return i
	}
	return -1
}

// Rows returns a new frame holding the given row indices; indices must be increasing
func (f Frame) Rows(idx []int) Frame {
	return f.rows(idx)
}
