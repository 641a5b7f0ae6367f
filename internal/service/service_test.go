package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"mortgage-rate-alerts/internal/aggregate"
	"mortgage-rate-alerts/internal/alerting"
	"mortgage-rate-alerts/internal/fetcher"
	"mortgage-rate-alerts/internal/store"
)

type recordingStore struct {
	saved   []store.Observation
	saveErr error
}

func (r *recordingStore) Save(obs store.Observation) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved = append(r.saved, obs)
	return nil
}

func (r *recordingStore) Statistics(windowDays int) (store.Statistics, error) {
	return store.Statistics{}, store.ErrNoData
}

func (r *recordingStore) Metadata() (store.Metadata, error) {
	return store.Metadata{TotalRecords: len(r.saved), SourcesUsed: []string{}}, nil
}

type recordingNotifier struct {
	notes []alerting.Notification
	err   error
}

func (r *recordingNotifier) Notify(ctx context.Context, note alerting.Notification) error {
	if r.err != nil {
		return r.err
	}
	r.notes = append(r.notes, note)
	return nil
}

type brokenSource struct{ name string }

func (b *brokenSource) Name() string { return b.name }
func (b *brokenSource) Fetch(ctx context.Context) (decimal.Decimal, error) {
	return decimal.Decimal{}, errors.New("unreachable")
}

func newService(opts Options, sources []fetcher.Source, st ObservationStore, notifier alerting.Notifier) *Service {
	return New(opts, sources, st, nil, nil, notifier, zerolog.Nop())
}

func TestRunCheckSendsAlertBelowTarget(t *testing.T) {
	st := &recordingStore{}
	notifier := &recordingNotifier{}
	svc := newService(
		Options{TargetRate: decimal.NewFromFloat(6.0), State: "Oregon"},
		[]fetcher.Source{fetcher.NewStatic("fred", decimal.NewFromFloat(5.25))},
		st, notifier,
	)

	if err := svc.RunCheck(context.Background()); err != nil {
		t.Fatalf("run check failed: %v", err)
	}

	if len(notifier.notes) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.notes))
	}
	if notifier.notes[0].Kind != alerting.KindAlert {
		t.Fatalf("expected alert kind, got %s", notifier.notes[0].Kind)
	}
	if len(st.saved) != 1 {
		t.Fatalf("expected one observation, got %d", len(st.saved))
	}
	if !st.saved[0].AlertSent || st.saved[0].DailyReportSent {
		t.Fatalf("unexpected flags: %+v", st.saved[0])
	}
	if st.saved[0].Source != "fred" {
		t.Fatalf("unexpected source field: %q", st.saved[0].Source)
	}
}

func TestRunCheckNoAlertAboveTarget(t *testing.T) {
	st := &recordingStore{}
	notifier := &recordingNotifier{}
	svc := newService(
		Options{TargetRate: decimal.NewFromFloat(5.0), State: "Oregon"},
		[]fetcher.Source{fetcher.NewStatic("fred", decimal.NewFromFloat(5.25))},
		st, notifier,
	)

	if err := svc.RunCheck(context.Background()); err != nil {
		t.Fatalf("run check failed: %v", err)
	}

	if len(notifier.notes) != 0 {
		t.Fatal("no notification expected above target")
	}
	if len(st.saved) != 1 {
		t.Fatal("observation must still be recorded above target")
	}
	if st.saved[0].AlertSent || st.saved[0].DailyReportSent {
		t.Fatalf("no flags expected: %+v", st.saved[0])
	}
}

func TestRunCheckDailyReportAlwaysSends(t *testing.T) {
	st := &recordingStore{}
	notifier := &recordingNotifier{}
	svc := newService(
		Options{TargetRate: decimal.NewFromFloat(5.0), State: "Oregon", DailyReport: true},
		[]fetcher.Source{fetcher.NewStatic("fred", decimal.NewFromFloat(5.25))},
		st, notifier,
	)

	if err := svc.RunCheck(context.Background()); err != nil {
		t.Fatalf("run check failed: %v", err)
	}

	if len(notifier.notes) != 1 {
		t.Fatalf("daily report must always send, got %d notifications", len(notifier.notes))
	}
	if notifier.notes[0].Kind != alerting.KindDailyReport {
		t.Fatalf("expected daily report kind, got %s", notifier.notes[0].Kind)
	}
	if !st.saved[0].DailyReportSent || st.saved[0].AlertSent {
		t.Fatalf("unexpected flags: %+v", st.saved[0])
	}
}

func TestRunCheckNoValidDataRecordsNothing(t *testing.T) {
	st := &recordingStore{}
	notifier := &recordingNotifier{}
	svc := newService(
		Options{TargetRate: decimal.NewFromFloat(6.0), State: "Oregon"},
		[]fetcher.Source{&brokenSource{name: "fred"}, &brokenSource{name: "bankrate"}},
		st, notifier,
	)

	err := svc.RunCheck(context.Background())
	if !errors.Is(err, aggregate.ErrNoValidData) {
		t.Fatalf("expected ErrNoValidData, got %v", err)
	}
	if len(st.saved) != 0 {
		t.Fatal("failed cycle must not record an observation")
	}
	if len(notifier.notes) != 0 {
		t.Fatal("failed cycle must not notify")
	}
}

func TestRunCheckSurvivesNotifierAndStoreFailures(t *testing.T) {
	st := &recordingStore{saveErr: errors.New("disk full")}
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	svc := newService(
		Options{TargetRate: decimal.NewFromFloat(6.0), State: "Oregon"},
		[]fetcher.Source{fetcher.NewStatic("fred", decimal.NewFromFloat(5.25))},
		st, notifier,
	)

	if err := svc.RunCheck(context.Background()); err != nil {
		t.Fatalf("notification and persistence failures must not fail the cycle: %v", err)
	}
}

func TestRunCheckProceedsWithPartialSources(t *testing.T) {
	st := &recordingStore{}
	svc := newService(
		Options{TargetRate: decimal.NewFromFloat(6.0), State: "Oregon"},
		[]fetcher.Source{
			&brokenSource{name: "fred"},
			fetcher.NewStatic("bankrate", decimal.NewFromFloat(5.30)),
		},
		st, &recordingNotifier{},
	)

	if err := svc.RunCheck(context.Background()); err != nil {
		t.Fatalf("run check failed: %v", err)
	}
	if len(st.saved) != 1 {
		t.Fatal("partial sources must still record an observation")
	}
	if st.saved[0].Source != "bankrate" {
		t.Fatalf("unexpected source field: %q", st.saved[0].Source)
	}
}
