package store

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	ratesFileName    = "rates.csv"
	metadataFileName = "metadata.json"

	dateLayout = "2006-01-02"

	trendWindowDays = 7
)

var (
	// ErrNoData indicates that the requested window holds no observations.
	ErrNoData = errors.New("store: no data available")

	csvHeader = []string{"date", "timestamp", "rate", "source", "target_rate", "state", "alert_sent", "daily_report_sent", "notes"}
)

// Store is an append-only observation log backed by a CSV file, with a
// JSON metadata record derived from the full log.
type Store struct {
	dir      string
	ratePath string
	metaPath string
	logger   zerolog.Logger

	mu  sync.Mutex
	now func() time.Time
}

// New opens a store rooted at dir, creating the log and metadata record
// on first use. Opening an already-initialised directory preserves
// existing data.
func New(dir string, logger zerolog.Logger) (*Store, error) {
	s := &Store{
		dir:      dir,
		ratePath: filepath.Join(dir, ratesFileName),
		metaPath: filepath.Join(dir, metadataFileName),
		logger:   logger.With().Str("component", "store").Logger(),
		now:      time.Now,
	}
	if err := s.initialize(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	if _, err := os.Stat(s.ratePath); errors.Is(err, os.ErrNotExist) {
		file, err := os.Create(s.ratePath)
		if err != nil {
			return fmt.Errorf("create rates file: %w", err)
		}
		writer := csv.NewWriter(file)
		if err := writer.Write(csvHeader); err != nil {
			file.Close()
			return fmt.Errorf("write rates header: %w", err)
		}
		writer.Flush()
		if err := file.Close(); err != nil {
			return fmt.Errorf("close rates file: %w", err)
		}
		s.logger.Info().Str("path", s.ratePath).Msg("created new rates file")
	} else if err != nil {
		return fmt.Errorf("stat rates file: %w", err)
	}

	if _, err := os.Stat(s.metaPath); errors.Is(err, os.ErrNotExist) {
		meta := Metadata{
			Created:     s.now(),
			LastUpdated: s.now(),
			SourcesUsed: []string{},
			RateTrend:   TrendUnknown,
		}
		if err := s.writeMetadata(meta); err != nil {
			return err
		}
		s.logger.Info().Str("path", s.metaPath).Msg("created new metadata file")
	} else if err != nil {
		return fmt.Errorf("stat metadata file: %w", err)
	}

	return nil
}

// Save appends one observation and recomputes the metadata projection.
// An observation that reached the log before a metadata failure is kept;
// the error still reports the failed save.
func (s *Store) Save(obs Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if obs.Timestamp.IsZero() {
		obs.Timestamp = s.now()
	}
	if obs.Date.IsZero() {
		obs.Date = obs.Timestamp
	}

	if err := s.appendRow(obs); err != nil {
		return err
	}
	s.logger.Info().Str("rate", obs.Rate.String()).Str("source", obs.Source).Msg("saved rate record")

	if err := s.recomputeMetadata(obs); err != nil {
		return fmt.Errorf("update metadata: %w", err)
	}
	return nil
}

func (s *Store) appendRow(obs Observation) error {
	file, err := os.OpenFile(s.ratePath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open rates file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	record := []string{
		obs.Date.Format(dateLayout),
		obs.Timestamp.Format(time.RFC3339),
		obs.Rate.String(),
		obs.Source,
		obs.TargetRate.String(),
		obs.State,
		strconv.FormatBool(obs.AlertSent),
		strconv.FormatBool(obs.DailyReportSent),
		obs.Notes,
	}
	if err := writer.Write(record); err != nil {
		return fmt.Errorf("append rate record: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush rate record: %w", err)
	}
	return nil
}

func (s *Store) recomputeMetadata(latest Observation) error {
	meta, err := s.readMetadata()
	if err != nil {
		return err
	}

	rate := latest.Rate
	meta.LastUpdated = s.now()
	meta.LatestRate = &rate
	meta.TotalRecords = s.countRows()
	meta.DataSizeKB = s.fileSizeKB()
	meta.RateTrend = s.computeTrend()

	seen := false
	for _, used := range meta.SourcesUsed {
		if used == latest.Source {
			seen = true
			break
		}
	}
	if !seen {
		meta.SourcesUsed = append(meta.SourcesUsed, latest.Source)
	}

	return s.writeMetadata(meta)
}

// RecentRates returns rates whose calendar date falls within the window
// [today - windowDays, today], most recent first. Malformed rows are
// skipped, never fatal.
func (s *Store) RecentRates(windowDays int) []decimal.Decimal {
	observations := s.RecentObservations(windowDays)
	rates := make([]decimal.Decimal, 0, len(observations))
	for _, obs := range observations {
		rates = append(rates, obs.Rate)
	}
	return rates
}

// RecentObservations returns full observations in the calendar window,
// most recent first.
func (s *Store) RecentObservations(windowDays int) []Observation {
	today := s.today()
	cutoff := today.AddDate(0, 0, -windowDays)

	all := s.readObservations()
	recent := make([]Observation, 0, len(all))
	// Rows are appended chronologically; walk backwards for recency order.
	for i := len(all) - 1; i >= 0; i-- {
		day := dateOnly(all[i].Date)
		if day.Before(cutoff) || day.After(today) {
			continue
		}
		recent = append(recent, all[i])
	}
	return recent
}

// Statistics derives windowed summary values from the recent rates.
func (s *Store) Statistics(windowDays int) (Statistics, error) {
	rates := s.RecentRates(windowDays)
	if len(rates) == 0 {
		return Statistics{}, ErrNoData
	}

	lo, hi := rates[0], rates[0]
	sum := decimal.Zero
	for _, rate := range rates {
		if rate.LessThan(lo) {
			lo = rate
		}
		if rate.GreaterThan(hi) {
			hi = rate
		}
		sum = sum.Add(rate)
	}

	return Statistics{
		PeriodDays:  windowDays,
		RecordCount: len(rates),
		LatestRate:  rates[0],
		AverageRate: sum.Div(decimal.NewFromInt(int64(len(rates)))).Round(3),
		MinRate:     lo,
		MaxRate:     hi,
		Trend:       s.computeTrend(),
		Volatility:  decimal.NewFromFloat(volatility(rates)).Round(3),
		DataSizeKB:  s.fileSizeKB(),
	}, nil
}

// Metadata returns the persisted metadata snapshot.
func (s *Store) Metadata() (Metadata, error) {
	return s.readMetadata()
}

// computeTrend bisects the 7-day window by index, exactly as returned by
// RecentRates (most recent first), and compares the half means.
func (s *Store) computeTrend() Trend {
	rates := s.RecentRates(trendWindowDays)
	if len(rates) < 2 {
		return TrendInsufficientData
	}

	firstHalf := rates[:len(rates)/2]
	secondHalf := rates[len(rates)/2:]
	if len(firstHalf) == 0 || len(secondHalf) == 0 {
		return TrendInsufficientData
	}

	diff := meanOf(secondHalf).Sub(meanOf(firstHalf))
	threshold := decimal.NewFromFloat(0.1)
	switch {
	case diff.GreaterThan(threshold):
		return TrendRising
	case diff.LessThan(threshold.Neg()):
		return TrendFalling
	default:
		return TrendStable
	}
}

// volatility is the population standard deviation; a single rate yields 0.
func volatility(rates []decimal.Decimal) float64 {
	if len(rates) < 2 {
		return 0.0
	}
	m := meanOf(rates).InexactFloat64()
	var sumSq float64
	for _, rate := range rates {
		diff := rate.InexactFloat64() - m
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(len(rates)))
}

func meanOf(rates []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, rate := range rates {
		sum = sum.Add(rate)
	}
	return sum.Div(decimal.NewFromInt(int64(len(rates))))
}

// countRows counts every data row in the log, malformed ones included.
// The metadata record reflects the full log; only rate derivation skips
// rows it cannot parse.
func (s *Store) countRows() int {
	file, err := os.Open(s.ratePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to open rates file")
		return 0
	}
	defer file.Close()

	count := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		count++
	}
	if count > 0 {
		count-- // header
	}
	return count
}

func (s *Store) readObservations() []Observation {
	file, err := os.Open(s.ratePath)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to open rates file")
		return nil
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	observations := make([]Observation, 0)
	first := true
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				s.logger.Warn().Err(err).Msg("skipping unreadable rate record")
				continue
			}
			s.logger.Error().Err(err).Msg("failed to read rates file")
			break
		}
		if first {
			first = false
			continue
		}
		obs, ok := parseRow(record)
		if !ok {
			s.logger.Warn().Strs("row", record).Msg("skipping malformed rate record")
			continue
		}
		observations = append(observations, obs)
	}
	return observations
}

func parseRow(record []string) (Observation, bool) {
	if len(record) < 9 {
		return Observation{}, false
	}

	date, err := time.Parse(dateLayout, record[0])
	if err != nil {
		return Observation{}, false
	}
	timestamp, err := time.Parse(time.RFC3339, record[1])
	if err != nil {
		timestamp = date
	}
	rate, err := decimal.NewFromString(record[2])
	if err != nil {
		return Observation{}, false
	}
	target, err := decimal.NewFromString(record[4])
	if err != nil {
		target = decimal.Zero
	}
	alertSent, _ := strconv.ParseBool(record[6])
	dailySent, _ := strconv.ParseBool(record[7])

	return Observation{
		Date:            date,
		Timestamp:       timestamp,
		Rate:            rate,
		Source:          record[3],
		TargetRate:      target,
		State:           record[5],
		AlertSent:       alertSent,
		DailyReportSent: dailySent,
		Notes:           record[8],
	}, true
}

func (s *Store) readMetadata() (Metadata, error) {
	data, err := os.ReadFile(s.metaPath)
	if err != nil {
		return Metadata{}, fmt.Errorf("read metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, fmt.Errorf("parse metadata: %w", err)
	}
	if meta.SourcesUsed == nil {
		meta.SourcesUsed = []string{}
	}
	return meta, nil
}

func (s *Store) writeMetadata(meta Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(s.metaPath, data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func (s *Store) fileSizeKB() float64 {
	info, err := os.Stat(s.ratePath)
	if err != nil {
		return 0
	}
	return math.Round(float64(info.Size())/1024*100) / 100
}

func (s *Store) today() time.Time {
	return dateOnly(s.now())
}

// dateOnly normalises to a UTC calendar date so that rows written in any
// zone compare consistently against the window bounds.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
