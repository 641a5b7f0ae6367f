package alerting

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify sends the rendered message through the sendMessage endpoint.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", renderTelegramMessage(note))
	form.Set("parse_mode", "HTML")

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram responded %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		return fmt.Errorf("telegram returned ok=false")
	}

	n.logger.Info().Str("kind", string(note.Kind)).Str("chat_id", n.chatID).Msg("notification sent via telegram")
	return nil
}

func renderTelegramMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("<b>%s</b>\n\n", note.Title()))
	builder.WriteString(note.Subtitle() + "\n\n")
	builder.WriteString(fmt.Sprintf("Current Rate: <b>%s%%</b>\n", note.CurrentRate.StringFixed(3)))
	builder.WriteString(fmt.Sprintf("Target Rate: %s%%\n", note.TargetRate.StringFixed(3)))
	if note.Kind == KindAlert {
		builder.WriteString(fmt.Sprintf("Potential Savings: <b>%s%%</b>\n", note.Savings().StringFixed(2)))
	}
	if note.RateCount > 1 {
		builder.WriteString(fmt.Sprintf("Range: %s%% - %s%%\n", note.MinRate.StringFixed(3), note.MaxRate.StringFixed(3)))
	}
	if line := note.SourceLine(); line != "" {
		builder.WriteString(line + "\n")
	}
	builder.WriteString(fmt.Sprintf("\nGenerated %s", note.GeneratedAt.Format("January 2, 2006 at 3:04 PM")))
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
