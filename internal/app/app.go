package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"mortgage-rate-alerts/internal/alerting"
	"mortgage-rate-alerts/internal/archive"
	"mortgage-rate-alerts/internal/config"
	"mortgage-rate-alerts/internal/fetcher"
	"mortgage-rate-alerts/internal/scheduler"
	"mortgage-rate-alerts/internal/service"
	"mortgage-rate-alerts/internal/store"
)

// App aggregates configuration and shared dependencies for the CLI
// commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore() (*store.Store, error) {
	return store.New(a.Config.Data.Dir, a.Logger)
}

// openArchive returns nil without error when no DSN is configured.
func (a *App) openArchive(ctx context.Context) (*archive.Archive, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	arch, err := archive.Open(ctx, archive.Options{
		DSN:             a.Config.Database.DSN,
		MaxOpenConns:    a.Config.Database.MaxOpenConns,
		MaxIdleConns:    a.Config.Database.MaxIdleConns,
		ConnMaxLifetime: a.Config.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}
	return arch, arch.Close, nil
}

func (a *App) newSources() []fetcher.Source {
	return fetcher.Build(a.Config.Sources.Preferred, a.sourceOptions(), a.Logger)
}

func (a *App) sourceOptions() fetcher.Options {
	return fetcher.Options{
		FredAPIKey: a.Config.Sources.FredAPIKey,
		Timeout:    a.Config.Sources.RequestTimeout,
		UserAgent:  a.Config.Sources.UserAgent,
	}
}

// newNotifier builds the configured channel; method "none" yields nil.
func (a *App) newNotifier() (alerting.Notifier, error) {
	switch a.Config.Notification.Method {
	case "telegram":
		cfg := a.Config.Notification.Telegram
		if cfg.BotToken == "" || cfg.ChatID == "" {
			return nil, errors.New("notification.telegram requires bot_token and chat_id")
		}
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 30*time.Second, a.Logger), nil
	case "email":
		cfg := a.Config.Notification.Email
		return alerting.NewEmailNotifier(alerting.EmailOptions{
			Host:       cfg.SMTPHost,
			Port:       cfg.SMTPPort,
			Sender:     cfg.Sender,
			Password:   cfg.Password,
			Recipients: cfg.Recipients,
		}, a.Logger)
	case "none", "":
		return nil, nil
	default:
		return nil, errors.New("unknown notification method: " + a.Config.Notification.Method)
	}
}

func (a *App) serviceOptions() service.Options {
	return service.Options{
		TargetRate:  decimal.NewFromFloat(a.Config.Alert.TargetRate),
		State:       a.Config.Alert.State,
		DailyReport: a.Config.Alert.DailyReport,
		LockKey:     a.Config.Scheduler.AdvisoryLockKey,
	}
}

func (a *App) newService(ctx context.Context) (*service.Service, func(), error) {
	observations, err := a.openStore()
	if err != nil {
		return nil, nil, err
	}

	arch, closeArchive, err := a.openArchive(ctx)
	if err != nil {
		return nil, nil, err
	}

	notifier, err := a.newNotifier()
	if err != nil {
		a.Logger.Warn().Err(err).Msg("notification channel unavailable; alerts will be logged only")
	}

	var mirror archive.ObservationArchive
	var locker archive.Locker
	if arch != nil {
		mirror = arch
		locker = arch
	}

	svc := service.New(a.serviceOptions(), a.newSources(), observations, mirror, locker, notifier, a.Logger)

	closer := func() {
		if closeArchive != nil {
			closeArchive()
		}
	}
	return svc, closer, nil
}

// Check runs one complete poll cycle.
func (a *App) Check(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, closer, err := a.newService(ctx)
	if err != nil {
		return err
	}
	defer closer()

	return svc.RunCheck(ctx)
}

// Run executes poll cycles continuously on the configured interval.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc, closer, err := a.newService(ctx)
	if err != nil {
		return err
	}
	defer closer()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToInterval,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("starting watch mode")
	err = sched.Run(ctx, func(ctx context.Context, _ time.Time) error {
		return svc.RunCheck(ctx)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("watch mode terminated with error")
		return err
	}

	a.Logger.Info().Msg("watch mode stopped")
	return nil
}
