package fetcher

import (
	"context"

	"github.com/shopspring/decimal"
)

// Static always returns a fixed rate. Used by the simulate command to
// drive the full cycle without touching real sources.
type Static struct {
	name string
	rate decimal.Decimal
}

// NewStatic constructs a fixed-rate source.
func NewStatic(name string, rate decimal.Decimal) *Static {
	return &Static{name: name, rate: rate}
}

// Name implements Source.
func (s *Static) Name() string { return s.name }

// Fetch implements Source.
func (s *Static) Fetch(ctx context.Context) (decimal.Decimal, error) {
	return s.rate, nil
}

var _ Source = (*Static)(nil)
