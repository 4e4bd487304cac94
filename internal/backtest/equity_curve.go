package backtest

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/yourusername/factorlab/internal/models"
)

// EquityPoint represents a point in the equity curve
type EquityPoint struct {
	Date     time.Time `json:"date"`
	Return   float64   `json:"return"`
	Value    float64   `json:"cumulative"`
	Drawdown float64   `json:"drawdown"`
}

// EquityCurve represents a time-series of equity points
type EquityCurve []EquityPoint

// NewEquityCurve builds the curve from dates and period returns
func NewEquityCurve(dates []time.Time, returns []float64) EquityCurve {
	curve := make(EquityCurve, len(returns))
	peak := 0.0
	growth := 1.0
	for i, r := range returns {
		growth *= 1 + r
		if growth > peak {
			peak = growth
		}
		dd := 0.0
		if peak > 0 {
			dd = (growth - peak) / peak
		}
		curve[i] = EquityPoint{Date: dates[i], Return: r, Value: growth, Drawdown: dd}
	}
	return curve
}

// GetReturns returns the period returns of the curve
func (e EquityCurve) GetReturns() []float64 {
	returns := make([]float64, len(e))
	for i, p := range e {
		returns[i] = p.Return
	}
	return returns
}

// Dates returns the dates of the curve
func (e EquityCurve) Dates() []time.Time {
	dates := make([]time.Time, len(e))
	for i, p := range e {
		dates[i] = p.Date
	}
	return dates
}

// Final returns the last cumulative value, or 1 for an empty curve
func (e EquityCurve) Final() float64 {
	if len(e) == 0 {
		return 1
	}
	return e[len(e)-1].Value
}

// ToCSV exports equity curve to CSV string
func (e EquityCurve) ToCSV() string {
	var buf bytes.Buffer
	buf.WriteString("date,return,cumulative,drawdown\n")
	for _, point := range e {
		buf.WriteString(point.Date.Format(models.DateLayout))
		buf.WriteString(",")
		buf.WriteString(formatFloat(point.Return))
		buf.WriteString(",")
		buf.WriteString(formatFloat(point.Value))
		buf.WriteString(",")
		buf.WriteString(formatFloat(point.Drawdown))
		buf.WriteString("\n")
	}
	return buf.String()
}

// ToJSON exports equity curve to JSON string
func (e EquityCurve) ToJSON() string {
	data, _ := json.Marshal(e)
	return string(data)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 8, 64)
}
