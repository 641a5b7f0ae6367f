package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"mortgage-rate-alerts/internal/aggregate"
	"mortgage-rate-alerts/internal/alerting"
	"mortgage-rate-alerts/internal/archive"
	"mortgage-rate-alerts/internal/fetcher"
	"mortgage-rate-alerts/internal/store"
)

// ObservationStore is the persistence surface the service depends on.
type ObservationStore interface {
	Save(obs store.Observation) error
	Statistics(windowDays int) (store.Statistics, error)
	Metadata() (store.Metadata, error)
}

// Options parameterise the poll cycle. The service owns no ambient
// configuration; everything arrives through here.
type Options struct {
	TargetRate  decimal.Decimal
	State       string
	DailyReport bool
	LockKey     int64
}

// Service orchestrates fetching, aggregation, alerting, and persistence.
type Service struct {
	opts     Options
	sources  []fetcher.Source
	store    ObservationStore
	mirror   archive.ObservationArchive
	locker   archive.Locker
	notifier alerting.Notifier
	logger   zerolog.Logger
}

// New constructs the monitoring service. Store, mirror, locker and
// notifier may each be nil; a nil store disables persistence.
func New(opts Options, sources []fetcher.Source, observations ObservationStore, mirror archive.ObservationArchive, locker archive.Locker, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		opts:     opts,
		sources:  sources,
		store:    observations,
		mirror:   mirror,
		locker:   locker,
		notifier: notifier,
		logger:   logger.With().Str("component", "service").Logger(),
	}
}

// CurrentRate runs the fetch and aggregation half of a cycle without
// persisting or notifying.
func (s *Service) CurrentRate(ctx context.Context) (aggregate.Result, error) {
	readings := fetcher.FetchAll(ctx, s.sources, s.logger)
	result, err := aggregate.Aggregate(readings)
	if err != nil {
		return result, fmt.Errorf("aggregate readings: %w", err)
	}
	return result, nil
}

// RunCheck executes one complete poll cycle: fetch, aggregate, decide,
// notify, persist. A cycle with no valid data is a failed cycle and
// records nothing; notification and persistence failures are independent
// and non-fatal.
func (s *Service) RunCheck(ctx context.Context) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Info().Msg("skipping cycle; another invocation holds the lock")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	result, err := s.CurrentRate(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("no rate retrieved from any source")
		return err
	}

	s.logger.Info().
		Str("rate", result.AggregatedRate.String()).
		Int("sources", result.RateCount).
		Str("confidence", string(result.Confidence)).
		Msg("aggregated rate retrieved")

	belowTarget := result.AggregatedRate.LessThan(s.opts.TargetRate)
	shouldNotify := s.opts.DailyReport || belowTarget

	alertSent := false
	dailyReportSent := false
	if shouldNotify {
		if s.opts.DailyReport {
			dailyReportSent = true
		} else {
			alertSent = true
		}
		s.notify(ctx, result, belowTarget)
	} else {
		s.logger.Info().
			Str("rate", result.AggregatedRate.String()).
			Str("target", s.opts.TargetRate.String()).
			Msg("rate above target; no alert needed")
	}

	if s.store == nil {
		return nil
	}

	obs := s.buildObservation(result, alertSent, dailyReportSent)
	if err := s.store.Save(obs); err != nil {
		s.logger.Error().Err(err).Msg("failed to save rate observation")
	} else if s.mirror != nil {
		if err := s.mirror.InsertObservation(ctx, obs); err != nil {
			s.logger.Error().Err(err).Msg("failed to mirror observation to archive")
		}
	}

	s.logSummary()
	return nil
}

func (s *Service) notify(ctx context.Context, result aggregate.Result, belowTarget bool) {
	if s.notifier == nil {
		s.logger.Warn().Msg("no notification channel configured")
		return
	}

	kind := alerting.KindDailyReport
	if belowTarget {
		kind = alerting.KindAlert
	}

	note := alerting.Notification{
		Kind:              kind,
		CurrentRate:       result.AggregatedRate,
		TargetRate:        s.opts.TargetRate,
		State:             s.opts.State,
		Confidence:        string(result.Confidence),
		SuccessfulSources: result.SuccessfulSources,
		RateCount:         result.RateCount,
		MinRate:           result.MinRate,
		MaxRate:           result.MaxRate,
		GeneratedAt:       time.Now(),
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Str("kind", string(kind)).Msg("failed to send notification")
		return
	}
	s.logger.Info().Str("kind", string(kind)).Msg("notification sent")
}

func (s *Service) buildObservation(result aggregate.Result, alertSent, dailyReportSent bool) store.Observation {
	now := time.Now()
	return store.Observation{
		Date:            now,
		Timestamp:       now,
		Rate:            result.AggregatedRate,
		Source:          strings.Join(result.SuccessfulSources, ","),
		TargetRate:      s.opts.TargetRate,
		State:           s.opts.State,
		AlertSent:       alertSent,
		DailyReportSent: dailyReportSent,
		Notes:           fmt.Sprintf("Sources: %s, Confidence: %s", strings.Join(result.SuccessfulSources, ", "), result.Confidence),
	}
}

func (s *Service) logSummary() {
	meta, err := s.store.Metadata()
	if err != nil {
		s.logger.Warn().Err(err).Msg("could not read store metadata")
		return
	}
	event := s.logger.Info().
		Int("total_records", meta.TotalRecords).
		Str("trend", string(meta.RateTrend)).
		Float64("data_size_kb", meta.DataSizeKB).
		Strs("sources_used", meta.SourcesUsed)
	if meta.LatestRate != nil {
		event = event.Str("latest_rate", meta.LatestRate.String())
	}
	event.Msg("store summary")
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.locker == nil || s.opts.LockKey == 0 {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.opts.LockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
