package alerting

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"
)

// EmailOptions configure SMTP delivery.
type EmailOptions struct {
	Host       string
	Port       int
	Sender     string
	Password   string
	Recipients []string
}

// EmailNotifier delivers notifications over SMTP with STARTTLS.
type EmailNotifier struct {
	opts   EmailOptions
	logger zerolog.Logger

	// send is swapped in tests; defaults to smtp.SendMail.
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier constructs an email notifier. Recipients may not be
// empty.
func NewEmailNotifier(opts EmailOptions, logger zerolog.Logger) (*EmailNotifier, error) {
	recipients := make([]string, 0, len(opts.Recipients))
	for _, r := range opts.Recipients {
		if trimmed := strings.TrimSpace(r); trimmed != "" {
			recipients = append(recipients, trimmed)
		}
	}
	opts.Recipients = recipients

	if opts.Sender == "" || opts.Password == "" || len(opts.Recipients) == 0 {
		return nil, errors.New("email configuration incomplete: sender, password and recipients are required")
	}
	if opts.Port <= 0 {
		opts.Port = 587
	}

	return &EmailNotifier{
		opts:   opts,
		logger: logger.With().Str("component", "alert_email").Logger(),
		send:   smtp.SendMail,
	}, nil
}

// Notify renders and sends the HTML message to every recipient.
func (n *EmailNotifier) Notify(ctx context.Context, note Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", n.opts.Sender))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(n.opts.Recipients, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", note.Title()))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(renderEmailBody(note))

	addr := fmt.Sprintf("%s:%d", n.opts.Host, n.opts.Port)
	auth := smtp.PlainAuth("", n.opts.Sender, n.opts.Password, n.opts.Host)
	if err := n.send(addr, auth, n.opts.Sender, n.opts.Recipients, []byte(msg.String())); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info().Str("kind", string(note.Kind)).Int("recipients", len(n.opts.Recipients)).Msg("notification sent via email")
	return nil
}

func renderEmailBody(note Notification) string {
	accent := "#007bff"
	if note.Kind == KindAlert {
		accent = "#28a745"
	}

	var body strings.Builder
	body.WriteString(`<html><body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">`)
	body.WriteString(fmt.Sprintf(`<h2 style="color: %s;">%s</h2>`, accent, note.Title()))
	body.WriteString(fmt.Sprintf("<p>%s</p>", note.Subtitle()))
	body.WriteString(fmt.Sprintf(`<h3>Current Rate: <span style="color: %s;">%s%%</span></h3>`, accent, note.CurrentRate.StringFixed(3)))
	body.WriteString(fmt.Sprintf("<p>Target Rate: %s%%</p>", note.TargetRate.StringFixed(3)))
	if note.Kind == KindAlert {
		body.WriteString(fmt.Sprintf("<p>Potential Savings: <b>%s%%</b></p>", note.Savings().StringFixed(2)))
	}
	if line := note.SourceLine(); line != "" {
		body.WriteString(fmt.Sprintf(`<p style="color: #666;">%s</p>`, line))
	}
	body.WriteString(fmt.Sprintf(`<p style="color: #999; font-size: 12px;">Generated %s</p>`, note.GeneratedAt.Format("January 2, 2006 at 3:04 PM")))
	body.WriteString("</body></html>")
	return body.String()
}

var _ Notifier = (*EmailNotifier)(nil)
