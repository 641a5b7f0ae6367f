package app

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"mortgage-rate-alerts/internal/fetcher"
	"mortgage-rate-alerts/internal/service"
)

// SimulateAlert drives one full cycle with a fixed rate instead of the
// real sources. Nothing is persisted.
func (a *App) SimulateAlert(ctx context.Context, rate decimal.Decimal, source string) error {
	notifier, err := a.newNotifier()
	if err != nil {
		return err
	}
	if notifier == nil {
		return errors.New("no notification channel configured")
	}

	if source == "" {
		source = "simulated"
	}
	sources := []fetcher.Source{fetcher.NewStatic(source, rate)}

	svc := service.New(a.serviceOptions(), sources, nil, nil, nil, notifier, a.Logger)
	return svc.RunCheck(ctx)
}
