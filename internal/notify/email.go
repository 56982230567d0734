// Package notify sends transactional email.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"gopkg.in/gomail.v2"

	"sprintium/internal/config"
)

// PasswordResetSender delivers password reset tokens to users.
type PasswordResetSender interface {
	SendPasswordReset(ctx context.Context, to, token string) error
}

// EmailNotifier sends mail over SMTP.
type EmailNotifier struct {
	cfg      config.SMTPConfig
	resetURL string
	logger   *slog.Logger
	send     func(m *gomail.Message) error
}

// NewEmailNotifier creates a notifier. Links in reset mails point at resetURL.
func NewEmailNotifier(cfg config.SMTPConfig, resetURL string, logger *slog.Logger) *EmailNotifier {
	n := &EmailNotifier{
		cfg:      cfg,
		resetURL: resetURL,
		logger:   logger,
	}
	n.send = func(m *gomail.Message) error {
		d := gomail.NewDialer(n.cfg.Host, n.cfg.Port, n.cfg.User, n.cfg.Password)
		return d.DialAndSend(m)
	}
	return n
}

// SendPasswordReset mails a reset link carrying token.
// Without SMTP settings the mail is skipped and nil is returned.
func (n *EmailNotifier) SendPasswordReset(ctx context.Context, to, token string) error {
	if !n.cfg.Enabled() {
		n.logger.WarnContext(ctx, "email config missing, skip password reset mail")
		return nil
	}
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("empty recipient")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "[Sprintium] Reset your password")

	link := ResetLink(n.resetURL, token)
	m.SetBody("text/plain", fmt.Sprintf(
		"Someone asked to reset the password for your Sprintium account.\n\n"+
			"Open this link within 15 minutes to choose a new password:\n%s\n\n"+
			"If you did not ask for this, ignore this mail.\n", link))
	m.AddAlternative("text/html", fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
  <div style="max-width: 520px; margin: 0 auto; padding: 16px;">
    <h2>Reset your Sprintium password</h2>
    <p>Open the link below within 15 minutes to choose a new password.</p>
    <p><a href="%s">Reset password</a></p>
    <p>If you did not ask for this, ignore this mail.</p>
  </div>
</body>
</html>`, link))

	if err := n.send(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.InfoContext(ctx, "password reset email sent", slog.String("to", to))
	return nil
}

// ResetLink appends token to base as the "token" query parameter.
func ResetLink(base, token string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}
