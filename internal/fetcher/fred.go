package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	fredSeriesID      = "MORTGAGE30US"
	defaultFredAPIURL = "https://api.stlouisfed.org"
	defaultFredCSVURL = "https://fred.stlouisfed.org"
)

// FRED retrieves the 30-year fixed mortgage average from the Federal
// Reserve Economic Data service: the JSON API when a key is configured,
// the public fredgraph CSV endpoint otherwise.
type FRED struct {
	opts   Options
	logger zerolog.Logger
	client *http.Client
	apiURL string
	csvURL string
}

// NewFRED constructs the FRED source.
func NewFRED(opts Options, logger zerolog.Logger) *FRED {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	apiURL := strings.TrimRight(opts.FredAPIURL, "/")
	if apiURL == "" {
		apiURL = defaultFredAPIURL
	}
	csvURL := strings.TrimRight(opts.FredCSVURL, "/")
	if csvURL == "" {
		csvURL = defaultFredCSVURL
	}

	return &FRED{
		opts:   opts,
		logger: logger.With().Str("component", "fred_source").Logger(),
		client: &http.Client{Timeout: timeout},
		apiURL: apiURL,
		csvURL: csvURL,
	}
}

// Name implements Source.
func (f *FRED) Name() string { return "fred" }

// Fetch implements Source.
func (f *FRED) Fetch(ctx context.Context) (decimal.Decimal, error) {
	if f.opts.FredAPIKey != "" {
		return f.fetchAPI(ctx)
	}
	return f.fetchCSV(ctx)
}

func (f *FRED) fetchAPI(ctx context.Context) (decimal.Decimal, error) {
	query := url.Values{}
	query.Set("series_id", fredSeriesID)
	query.Set("api_key", f.opts.FredAPIKey)
	query.Set("file_type", "json")
	query.Set("limit", "1")
	query.Set("sort_order", "desc")

	endpoint := f.apiURL + "/fred/series/observations?" + query.Encode()
	body, err := f.get(ctx, endpoint)
	if err != nil {
		return decimal.Decimal{}, err
	}

	var payload struct {
		Observations []struct {
			Value string `json:"value"`
		} `json:"observations"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse fred response: %w", err)
	}

	for _, obs := range payload.Observations {
		value := strings.TrimSpace(obs.Value)
		if value == "" || value == "." {
			continue
		}
		rate, err := decimal.NewFromString(value)
		if err != nil {
			continue
		}
		return rate, nil
	}
	return decimal.Decimal{}, errors.New("fred api returned no usable observation")
}

func (f *FRED) fetchCSV(ctx context.Context) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/graph/fredgraph.csv?id=%s", f.csvURL, fredSeriesID)
	body, err := f.get(ctx, endpoint)
	if err != nil {
		return decimal.Decimal{}, err
	}

	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) < 2 {
		return decimal.Decimal{}, errors.New("fred csv returned no observations")
	}

	// Walk backwards past missing-value markers to the newest usable row.
	for i := len(lines) - 1; i >= 1; i-- {
		parts := strings.Split(lines[i], ",")
		if len(parts) < 2 {
			continue
		}
		value := strings.Trim(strings.TrimSpace(parts[1]), `"`)
		if value == "" || value == "." {
			continue
		}
		rate, err := decimal.NewFromString(value)
		if err != nil {
			continue
		}
		return rate, nil
	}
	return decimal.Decimal{}, errors.New("fred csv contained no usable rate")
}

func (f *FRED) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create fred request: %w", err)
	}
	if ua := strings.TrimSpace(f.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fred request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read fred response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fred responded %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

var _ Source = (*FRED)(nil)
