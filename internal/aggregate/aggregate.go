package aggregate

import (
	"errors"
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// ErrNoValidData indicates that no source delivered a usable rate.
var ErrNoValidData = errors.New("aggregate: no valid rates from any source")

var (
	minValidRate = decimal.NewFromFloat(2.0)
	maxValidRate = decimal.NewFromFloat(15.0)
)

// Confidence classifies how much the successful sources agree.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Reading is one source's rate for a single poll cycle. A nil Rate means
// the source produced no value.
type Reading struct {
	Source string
	Rate   *decimal.Decimal
}

// SourceRate preserves the per-source detail in input order.
type SourceRate struct {
	Source string
	Rate   *decimal.Decimal
}

// Result is the combined outcome of one aggregation pass.
type Result struct {
	AggregatedRate    decimal.Decimal
	PerSourceRates    []SourceRate
	SuccessfulSources []string
	RateCount         int
	MinRate           decimal.Decimal
	MaxRate           decimal.Decimal
	AverageRate       decimal.Decimal
	RateSpread        decimal.Decimal
	Confidence        Confidence
}

// ValidRate reports whether a rate is plausible for a mortgage product.
// The explicit zero rejection is redundant with the lower bound but kept
// as a separate guard against historical sentinel values.
func ValidRate(rate decimal.Decimal) bool {
	if rate.IsZero() {
		return false
	}
	return rate.GreaterThanOrEqual(minValidRate) && rate.LessThanOrEqual(maxValidRate)
}

// Aggregate combines per-source readings into one robust rate with a
// confidence label. Invalid rates are treated the same as absent ones.
// When nothing validates, ErrNoValidData is returned and the Result still
// carries the per-source detail.
func Aggregate(readings []Reading) (Result, error) {
	result := Result{
		PerSourceRates:    make([]SourceRate, 0, len(readings)),
		SuccessfulSources: make([]string, 0, len(readings)),
	}

	valid := make([]decimal.Decimal, 0, len(readings))
	for _, reading := range readings {
		if reading.Rate == nil || !ValidRate(*reading.Rate) {
			result.PerSourceRates = append(result.PerSourceRates, SourceRate{Source: reading.Source})
			continue
		}
		rate := *reading.Rate
		result.PerSourceRates = append(result.PerSourceRates, SourceRate{Source: reading.Source, Rate: &rate})
		result.SuccessfulSources = append(result.SuccessfulSources, reading.Source)
		valid = append(valid, rate)
	}

	if len(valid) == 0 {
		return result, ErrNoValidData
	}

	result.RateCount = len(valid)
	result.AggregatedRate = median(valid).Round(3)
	result.MinRate, result.MaxRate = minMax(valid)
	result.AverageRate = mean(valid).Round(3)
	result.RateSpread = result.MaxRate.Sub(result.MinRate).Round(3)
	result.Confidence = classifyConfidence(valid, len(result.SuccessfulSources))

	return result, nil
}

// classifyConfidence applies the threshold ladder top-down: the first
// matching tier wins.
func classifyConfidence(valid []decimal.Decimal, sources int) Confidence {
	if sources < 2 {
		return ConfidenceLow
	}

	meanRate := mean(valid).InexactFloat64()
	cv := 1.0
	if meanRate > 0 {
		cv = sampleStdDev(valid) / meanRate
	}

	switch {
	case sources >= 3 && cv < 0.05:
		return ConfidenceHigh
	case sources >= 2 && cv < 0.10:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func median(rates []decimal.Decimal) decimal.Decimal {
	sorted := make([]decimal.Decimal, len(rates))
	copy(sorted, rates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}

func mean(rates []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, rate := range rates {
		sum = sum.Add(rate)
	}
	return sum.Div(decimal.NewFromInt(int64(len(rates))))
}

func minMax(rates []decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	lo, hi := rates[0], rates[0]
	for _, rate := range rates[1:] {
		if rate.LessThan(lo) {
			lo = rate
		}
		if rate.GreaterThan(hi) {
			hi = rate
		}
	}
	return lo, hi
}

// sampleStdDev uses the n-1 denominator; callers guarantee len >= 2.
func sampleStdDev(rates []decimal.Decimal) float64 {
	m := mean(rates).InexactFloat64()
	var sumSq float64
	for _, rate := range rates {
		diff := rate.InexactFloat64() - m
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(rates)-1))
}
