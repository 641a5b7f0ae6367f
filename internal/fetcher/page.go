package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"mortgage-rate-alerts/internal/aggregate"
)

// ratePatterns are tried in order against page text; the first plausible
// match wins.
var ratePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+\.\d+)%`),
	regexp.MustCompile(`(?i)(\d+\.\d+)\s*percent`),
	regexp.MustCompile(`(?i)rate[:\s]*(\d+\.\d+)`),
	regexp.MustCompile(`(?i)(\d+\.\d+)\s*APR`),
	regexp.MustCompile(`(?i)(\d+\.\d+)\s*fixed`),
}

// Page scrapes a published rate out of one or more public pages by
// scanning for percentage patterns. Markup-accurate selectors are out of
// scope; the pattern scan is the contract.
type Page struct {
	name   string
	urls   []string
	logger zerolog.Logger
	client *http.Client
	agent  string
}

// NewPage constructs a page-scanning source over candidate URLs, tried
// in order until one yields a plausible rate.
func NewPage(name string, urls []string, opts Options, logger zerolog.Logger) *Page {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Page{
		name:   name,
		urls:   urls,
		logger: logger.With().Str("component", "page_source").Str("source", name).Logger(),
		client: &http.Client{Timeout: timeout},
		agent:  opts.UserAgent,
	}
}

// NewBankrate targets the Bankrate refinance pages.
func NewBankrate(opts Options, logger zerolog.Logger) *Page {
	return NewPage("bankrate", []string{
		"https://www.bankrate.com/mortgages/refinance-rates/",
		"https://www.bankrate.com/mortgages/mortgage-rates/",
	}, opts, logger)
}

// NewMortgageNewsDaily targets the Mortgage News Daily rate page.
func NewMortgageNewsDaily(opts Options, logger zerolog.Logger) *Page {
	return NewPage("mortgage_news_daily", []string{
		"https://www.mortgagenewsdaily.com/mortgage-rates",
	}, opts, logger)
}

// NewFreddieMac targets the Freddie Mac primary mortgage market survey.
func NewFreddieMac(opts Options, logger zerolog.Logger) *Page {
	return NewPage("freddiemac", []string{
		"https://www.freddiemac.com/pmms/",
	}, opts, logger)
}

// Name implements Source.
func (p *Page) Name() string { return p.name }

// Fetch implements Source.
func (p *Page) Fetch(ctx context.Context) (decimal.Decimal, error) {
	var lastErr error
	for _, pageURL := range p.urls {
		text, err := p.get(ctx, pageURL)
		if err != nil {
			lastErr = err
			p.logger.Debug().Err(err).Str("url", pageURL).Msg("page fetch failed")
			continue
		}
		if rate, ok := ExtractRate(text); ok {
			return rate, nil
		}
		lastErr = fmt.Errorf("no rate pattern found at %s", pageURL)
	}
	if lastErr == nil {
		lastErr = errors.New("no page urls configured")
	}
	return decimal.Decimal{}, lastErr
}

// ExtractRate scans text for a plausible rate percentage.
func ExtractRate(text string) (decimal.Decimal, bool) {
	for _, pattern := range ratePatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			rate, err := decimal.NewFromString(match[1])
			if err != nil {
				continue
			}
			if aggregate.ValidRate(rate) {
				return rate, true
			}
		}
	}
	return decimal.Decimal{}, false
}

func (p *Page) get(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create page request: %w", err)
	}
	if ua := strings.TrimSpace(p.agent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s responded %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", pageURL, err)
	}
	return string(body), nil
}

var _ Source = (*Page)(nil)
