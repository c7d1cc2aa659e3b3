// Package risk computes per-instrument risk metrics from price history and
// scores them cross-sectionally against the rest of the universe.
package risk

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RawMetrics are one instrument's risk metrics before cross-sectional
// scoring. Percentiles, score, and level do not exist at this stage: they are
// only meaningful relative to the full population of the same run.
type RawMetrics struct {
	InstrumentID   uuid.UUID
	Volatility     decimal.Decimal
	MaxDrawdown    decimal.Decimal
	WorstDayReturn decimal.Decimal
}

// ScoredMetrics are raw metrics with population-relative fields attached
type ScoredMetrics struct {
	RawMetrics

	VolatilityPercentile float64 // in [0,1]
	MddPercentile        float64
	WorstDayPercentile   float64

	RiskScore decimal.Decimal // 0..100, 2 decimal places
	RiskLevel int             // 1..5
}

// HistoryRecord is one instrument's persisted weekly risk result.
// Unique per (instrument, ISO week); a second write in the same week is a
// no-op.
type HistoryRecord struct {
	InstrumentID   uuid.UUID
	Week           string // ISO year-week, YYYY-Www
	RiskLevel      int
	RiskScore      decimal.Decimal
	Volatility     decimal.Decimal
	MaxDrawdown    decimal.Decimal
	WorstDayReturn decimal.Decimal
}
