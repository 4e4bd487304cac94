package datasource

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/yourusername/factorlab/internal/models"
)

// DateColumn is the date header expected in CSV inputs, matched case-insensitively
const DateColumn = "date"

var dateLayouts = []string{
	"2006-01-02",
	"20060102",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"01/02/2006",
}

// CleanColumnName trims a header and replaces inner spaces with underscores
func CleanColumnName(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return models.NormalizeDate(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

// ReadCSVFrame parses a CSV with a header row and a date column into a frame.
// Headers are cleaned, rows are sorted by date and unparseable cells become NaN.
func ReadCSVFrame(r io.Reader) (models.Frame, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return models.Frame{}, fmt.Errorf("%w: %v", ErrInvalidData, df.Err)
	}

	dateName := ""
	var columns []string
	raw := make(map[string][]float64)
	for _, name := range df.Names() {
		clean := CleanColumnName(name)
		if strings.EqualFold(clean, DateColumn) {
			dateName = name
			continue
		}
		if clean == "" {
			continue
		}
		if _, dup := raw[clean]; dup {
			return models.Frame{}, fmt.Errorf("%w: duplicate column %q", ErrInvalidData, clean)
		}
		columns = append(columns, clean)
		raw[clean] = parseFloats(df.Col(name).Records())
	}
	if dateName == "" {
		return models.Frame{}, fmt.Errorf("%w: no %q column", ErrInvalidData, DateColumn)
	}

	records := df.Col(dateName).Records()
	dates := make([]time.Time, len(records))
	for i, rec := range records {
		d, err := parseDate(rec)
		if err != nil {
			return models.Frame{}, fmt.Errorf("%w: row %d: %v", ErrInvalidData, i+1, err)
		}
		dates[i] = d
	}

	order := make([]int, len(dates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return dates[order[a]].Before(dates[order[b]]) })

	sortedDates := make([]time.Time, len(dates))
	values := make(map[string][]float64, len(columns))
	for _, col := range columns {
		values[col] = make([]float64, len(dates))
	}
	for i, src := range order {
		sortedDates[i] = dates[src]
		for _, col := range columns {
			values[col][i] = raw[col][src]
		}
	}

	frame, err := models.NewFrame(sortedDates, columns, values)
	if err != nil {
		return models.Frame{}, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return frame, nil
}

// parseFloats reads padded numeric cells; blanks and non-numeric cells become NaN
func parseFloats(records []string) []float64 {
	values := make([]float64, len(records))
	for i, rec := range records {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec), 64)
		if err != nil {
			v = math.NaN()
		}
		values[i] = v
	}
	return values
}

func readCSVFile(source, path string) (models.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.Frame{}, NewDataSourceError(source, ErrCodeNotFound, "file not found: "+path, ErrNotFound)
		}
		return models.Frame{}, NewDataSourceError(source, ErrCodeUnknown, "failed to open "+path, err)
	}
	defer f.Close()

	frame, err := ReadCSVFrame(f)
	if err != nil {
		return models.Frame{}, NewDataSourceError(source, ErrCodeInvalidData, "failed to parse "+path, err)
	}
	return frame, nil
}

// CSVFactorSource reads a Fama-French style factor table from disk
type CSVFactorSource struct {
	path string
}

// NewCSVFactorSource creates a factor source for path
func NewCSVFactorSource(path string) *CSVFactorSource {
	return &CSVFactorSource{path: path}
}

// Name returns the name of the data source
func (s *CSVFactorSource) Name() string {
	return "csv_factors"
}

// FetchFactors reads the file and keeps rows within [start, end]
func (s *CSVFactorSource) FetchFactors(ctx context.Context, start, end time.Time) (models.Frame, error) {
	if err := ctx.Err(); err != nil {
		return models.Frame{}, err
	}
	frame, err := readCSVFile(s.Name(), s.path)
	if err != nil {
		return models.Frame{}, err
	}
	return filterRange(frame, start, end), nil
}

// CSVPriceSource reads a wide price table: a date column and one column per ticker
type CSVPriceSource struct {
	path string
}

// NewCSVPriceSource creates a price source for path
func NewCSVPriceSource(path string) *CSVPriceSource {
	return &CSVPriceSource{path: path}
}

// Name returns the name of the data source
func (s *CSVPriceSource) Name() string {
	return "csv_prices"
}

// FetchPrices reads the file and selects the requested tickers
func (s *CSVPriceSource) FetchPrices(ctx context.Context, tickers []string, start, end time.Time) (models.Frame, error) {
	if err := ctx.Err(); err != nil {
		return models.Frame{}, err
	}
	frame, err := readCSVFile(s.Name(), s.path)
	if err != nil {
		return models.Frame{}, err
	}
	for _, t := range tickers {
		if !frame.HasColumn(t) {
			return models.Frame{}, NewDataSourceError(s.Name(), ErrCodeNotFound, "no prices for ticker "+t, ErrNotFound)
		}
	}
	selected, err := frame.Select(tickers...)
	if err != nil {
		return models.Frame{}, NewDataSourceError(s.Name(), ErrCodeInvalidData, "failed to select tickers", err)
	}
	return filterRange(selected, start, end), nil
}
