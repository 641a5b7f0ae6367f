package fetcher

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"mortgage-rate-alerts/internal/aggregate"
)

// Source retrieves one published rate per poll cycle.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (decimal.Decimal, error)
}

// Options parameterise the HTTP-backed sources.
type Options struct {
	FredAPIKey string
	FredAPIURL string
	FredCSVURL string
	Timeout    time.Duration
	UserAgent  string
}

// Build resolves source names against the known registry, preserving the
// requested order. Unknown names are logged and skipped.
func Build(names []string, opts Options, logger zerolog.Logger) []Source {
	sources := make([]Source, 0, len(names))
	for _, name := range names {
		switch name {
		case "fred":
			sources = append(sources, NewFRED(opts, logger))
		case "bankrate":
			sources = append(sources, NewBankrate(opts, logger))
		case "mortgage_news_daily":
			sources = append(sources, NewMortgageNewsDaily(opts, logger))
		case "freddiemac":
			sources = append(sources, NewFreddieMac(opts, logger))
		default:
			logger.Warn().Str("source", name).Msg("unknown rate source")
		}
	}
	return sources
}

// FetchAll fans out across sources concurrently and returns one reading
// per source in input order. A failed source yields an absent reading;
// it never prevents the others from completing.
func FetchAll(ctx context.Context, sources []Source, logger zerolog.Logger) []aggregate.Reading {
	readings := make([]aggregate.Reading, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		readings[i] = aggregate.Reading{Source: src.Name()}

		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			rate, err := src.Fetch(ctx)
			if err != nil {
				logger.Warn().Err(err).Str("source", src.Name()).Msg("source fetch failed")
				return
			}
			if !aggregate.ValidRate(rate) {
				logger.Warn().Str("source", src.Name()).Str("rate", rate.String()).Msg("source returned implausible rate")
				return
			}
			readings[i].Rate = &rate
			logger.Info().Str("source", src.Name()).Str("rate", rate.String()).Msg("source fetch succeeded")
		}(i, src)
	}
	wg.Wait()

	return readings
}
