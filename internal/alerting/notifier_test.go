package alerting

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testNotification(kind Kind) Notification {
	return Notification{
		Kind:              kind,
		CurrentRate:       decimal.NewFromFloat(5.25),
		TargetRate:        decimal.NewFromFloat(6.0),
		State:             "Oregon",
		Confidence:        "high",
		SuccessfulSources: []string{"fred", "bankrate"},
		RateCount:         2,
		MinRate:           decimal.NewFromFloat(5.2),
		MaxRate:           decimal.NewFromFloat(5.3),
		GeneratedAt:       time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC),
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	var received url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path must contain sendMessage, got %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		received = r.PostForm
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), testNotification(KindAlert)); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	if got := received.Get("chat_id"); got != "chat" {
		t.Fatalf("wrong chat_id: %q", got)
	}
	text := received.Get("text")
	if !strings.Contains(text, "5.250%") {
		t.Fatalf("message must contain current rate, got %q", text)
	}
	if !strings.Contains(text, "fred, bankrate") {
		t.Fatalf("message must list sources, got %q", text)
	}
}

func TestTelegramNotifierRejectsNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false}`))
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), testNotification(KindDailyReport)); err == nil {
		t.Fatal("ok=false must surface as an error")
	}
}

func TestEmailNotifierValidation(t *testing.T) {
	if _, err := NewEmailNotifier(EmailOptions{Host: "smtp.example.com"}, testLogger()); err == nil {
		t.Fatal("incomplete email config must be rejected")
	}
}

func TestEmailNotifierBuildsMessage(t *testing.T) {
	notifier, err := NewEmailNotifier(EmailOptions{
		Host:       "smtp.example.com",
		Port:       587,
		Sender:     "watcher@example.com",
		Password:   "secret",
		Recipients: []string{"a@example.com", " b@example.com "},
	}, testLogger())
	if err != nil {
		t.Fatalf("failed to build notifier: %v", err)
	}

	var sentTo []string
	var sentMsg string
	notifier.send = func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
		sentTo = to
		sentMsg = string(msg)
		return nil
	}

	if err := notifier.Notify(context.Background(), testNotification(KindAlert)); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	if len(sentTo) != 2 || sentTo[1] != "b@example.com" {
		t.Fatalf("recipients must be trimmed, got %v", sentTo)
	}
	if !strings.Contains(sentMsg, "Subject: Refinance Rate Alert - Oregon") {
		t.Fatalf("missing subject line: %q", sentMsg)
	}
	if !strings.Contains(sentMsg, "0.75%") {
		t.Fatalf("alert body must contain savings: %q", sentMsg)
	}
}

func TestNotificationKinds(t *testing.T) {
	alert := testNotification(KindAlert)
	if !strings.Contains(alert.Title(), "Alert") {
		t.Fatalf("unexpected alert title: %s", alert.Title())
	}

	report := testNotification(KindDailyReport)
	if !strings.Contains(report.Title(), "Daily") {
		t.Fatalf("unexpected report title: %s", report.Title())
	}
}
