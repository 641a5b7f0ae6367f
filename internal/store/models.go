package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trend is the qualitative direction of recent rates.
type Trend string

const (
	TrendRising           Trend = "rising"
	TrendFalling          Trend = "falling"
	TrendStable           Trend = "stable"
	TrendInsufficientData Trend = "insufficient_data"
	TrendUnknown          Trend = "unknown"
)

// Observation is one persisted rate record. Rows are append-only and
// never rewritten.
type Observation struct {
	Date            time.Time
	Timestamp       time.Time
	Rate            decimal.Decimal
	Source          string
	TargetRate      decimal.Decimal
	State           string
	AlertSent       bool
	DailyReportSent bool
	Notes           string
}

// Metadata is the derived summary record, fully recomputed after every
// append.
type Metadata struct {
	Created      time.Time        `json:"created"`
	LastUpdated  time.Time        `json:"last_updated"`
	TotalRecords int              `json:"total_records"`
	SourcesUsed  []string         `json:"sources_used"`
	LatestRate   *decimal.Decimal `json:"latest_rate"`
	RateTrend    Trend            `json:"rate_trend"`
	DataSizeKB   float64          `json:"data_size_kb"`
}

// Statistics summarises the observation window.
type Statistics struct {
	PeriodDays  int
	RecordCount int
	LatestRate  decimal.Decimal
	AverageRate decimal.Decimal
	MinRate     decimal.Decimal
	MaxRate     decimal.Decimal
	Trend       Trend
	Volatility  decimal.Decimal
	DataSizeKB  float64
}
