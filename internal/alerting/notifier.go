package alerting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind distinguishes threshold alerts from scheduled daily reports.
type Kind string

const (
	KindAlert       Kind = "alert"
	KindDailyReport Kind = "daily_report"
)

// Notification carries the context of one aggregated rate for delivery.
type Notification struct {
	Kind              Kind
	CurrentRate       decimal.Decimal
	TargetRate        decimal.Decimal
	State             string
	Confidence        string
	SuccessfulSources []string
	RateCount         int
	MinRate           decimal.Decimal
	MaxRate           decimal.Decimal
	GeneratedAt       time.Time
}

// Notifier delivers rate notifications.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// Title renders the subject line for the notification.
func (n Notification) Title() string {
	if n.Kind == KindAlert {
		return fmt.Sprintf("Refinance Rate Alert - %s", n.State)
	}
	return fmt.Sprintf("Daily Refinance Rate Report - %s", n.State)
}

// Subtitle renders the one-line summary.
func (n Notification) Subtitle() string {
	if n.Kind == KindAlert {
		return "Rates have dropped below your target."
	}
	return "Here's today's refinance rate update."
}

// Savings is the margin below the target; only meaningful for alerts.
func (n Notification) Savings() decimal.Decimal {
	return n.TargetRate.Sub(n.CurrentRate)
}

// SourceLine summarises where the rate came from.
func (n Notification) SourceLine() string {
	if len(n.SuccessfulSources) == 0 {
		return ""
	}
	return fmt.Sprintf("Sources: %s | Confidence: %s", strings.Join(n.SuccessfulSources, ", "), n.Confidence)
}
