package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Alert.TargetRate != 6.0 {
		t.Fatalf("expected default target 6.0, got %v", cfg.Alert.TargetRate)
	}
	if len(cfg.Sources.Preferred) != 4 || cfg.Sources.Preferred[0] != "fred" {
		t.Fatalf("unexpected default sources: %v", cfg.Sources.Preferred)
	}
	if cfg.Notification.Method != "email" {
		t.Fatalf("expected default method email, got %s", cfg.Notification.Method)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
alert:
  target_rate: 5.5
  state: Washington
  daily_report: true
sources:
  preferred:
    - fred
notification:
  method: telegram
  telegram:
    bot_token: token
    chat_id: chat
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Alert.TargetRate != 5.5 || cfg.Alert.State != "Washington" || !cfg.Alert.DailyReport {
		t.Fatalf("unexpected alert config: %+v", cfg.Alert)
	}
	if err := cfg.ValidateNotification(); err != nil {
		t.Fatalf("telegram config should validate: %v", err)
	}
}

func TestValidateRejectsBadTarget(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("alert:\n  target_rate: 25\n"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("target rate of 25 must be rejected")
	}
}

func TestValidateNotificationIncompleteEmail(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if err := cfg.ValidateNotification(); err == nil {
		t.Fatal("default email config without credentials must not validate")
	}
}
