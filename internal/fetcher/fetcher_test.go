package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

type failingSource struct{ name string }

func (f *failingSource) Name() string { return f.name }
func (f *failingSource) Fetch(ctx context.Context) (decimal.Decimal, error) {
	return decimal.Decimal{}, errors.New("boom")
}

func TestFetchAllIsolatesFailures(t *testing.T) {
	sources := []Source{
		NewStatic("fred", decimal.NewFromFloat(5.25)),
		&failingSource{name: "bankrate"},
		NewStatic("freddiemac", decimal.NewFromFloat(5.30)),
	}

	readings := FetchAll(context.Background(), sources, noopLogger())
	if len(readings) != 3 {
		t.Fatalf("expected 3 readings, got %d", len(readings))
	}
	if readings[0].Source != "fred" || readings[1].Source != "bankrate" || readings[2].Source != "freddiemac" {
		t.Fatalf("readings must preserve input order: %+v", readings)
	}
	if readings[0].Rate == nil || !readings[0].Rate.Equal(decimal.NewFromFloat(5.25)) {
		t.Fatalf("unexpected first reading: %+v", readings[0])
	}
	if readings[1].Rate != nil {
		t.Fatal("failed source must yield an absent reading")
	}
	if readings[2].Rate == nil {
		t.Fatal("failure of one source must not block the others")
	}
}

func TestFetchAllRejectsImplausibleRates(t *testing.T) {
	readings := FetchAll(context.Background(), []Source{NewStatic("zillow", decimal.NewFromFloat(55.0))}, noopLogger())
	if readings[0].Rate != nil {
		t.Fatal("implausible rate must be treated as absent")
	}
}

func TestFREDAPIMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("series_id") != "MORTGAGE30US" {
			t.Fatalf("unexpected series id: %s", r.URL.Query().Get("series_id"))
		}
		if r.URL.Query().Get("api_key") != "secret" {
			t.Fatal("api key not forwarded")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"observations":[{"value":"6.35"}]}`))
	}))
	defer srv.Close()

	f := NewFRED(Options{FredAPIKey: "secret", FredAPIURL: srv.URL, Timeout: time.Second}, noopLogger())
	rate, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !rate.Equal(decimal.NewFromFloat(6.35)) {
		t.Fatalf("expected 6.35, got %s", rate)
	}
}

func TestFREDAPIModeSkipsMissingValues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"observations":[{"value":"."}]}`))
	}))
	defer srv.Close()

	f := NewFRED(Options{FredAPIKey: "secret", FredAPIURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := f.Fetch(context.Background()); err == nil {
		t.Fatal("missing-value marker must not produce a rate")
	}
}

func TestFREDCSVMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("DATE,MORTGAGE30US\n2026-08-13,6.40\n2026-08-20,6.35\n2026-08-27,.\n"))
	}))
	defer srv.Close()

	f := NewFRED(Options{FredCSVURL: srv.URL, Timeout: time.Second}, noopLogger())
	rate, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !rate.Equal(decimal.NewFromFloat(6.35)) {
		t.Fatalf("expected newest usable rate 6.35, got %s", rate)
	}
}

func TestFREDErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := NewFRED(Options{FredCSVURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := f.Fetch(context.Background()); err == nil {
		t.Fatal("non-200 response must surface as an error")
	}
}

func TestPageSourceExtraction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><span class="rate">Today's refinance rate: 5.875%</span></body></html>`))
	}))
	defer srv.Close()

	p := NewPage("bankrate", []string{srv.URL}, Options{Timeout: time.Second}, noopLogger())
	rate, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !rate.Equal(decimal.NewFromFloat(5.875)) {
		t.Fatalf("expected 5.875, got %s", rate)
	}
}

func TestPageSourceFallsThroughURLs(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("30-year fixed at 6.125 percent"))
	}))
	defer good.Close()

	p := NewPage("freddiemac", []string{bad.URL, good.URL}, Options{Timeout: time.Second}, noopLogger())
	rate, err := p.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if !rate.Equal(decimal.NewFromFloat(6.125)) {
		t.Fatalf("expected 6.125, got %s", rate)
	}
}

func TestExtractRateIgnoresImplausibleMatches(t *testing.T) {
	text := "Save 50.5% today! Current rate: 5.25%"
	rate, ok := ExtractRate(text)
	if !ok {
		t.Fatal("expected a rate")
	}
	if !rate.Equal(decimal.NewFromFloat(5.25)) {
		t.Fatalf("expected 5.25, got %s", rate)
	}
}

func TestBuildSkipsUnknownSources(t *testing.T) {
	sources := Build([]string{"fred", "lemonade", "bankrate"}, Options{}, noopLogger())
	if len(sources) != 2 {
		t.Fatalf("expected 2 known sources, got %d", len(sources))
	}
	if sources[0].Name() != "fred" || sources[1].Name() != "bankrate" {
		t.Fatalf("unexpected source order: %s, %s", sources[0].Name(), sources[1].Name())
	}
}
