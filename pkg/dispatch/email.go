// Package dispatch delivers alert digests. Delivery is best-effort:
// a failed send is logged by the caller and never retried, because the
// alerted identities are already recorded as seen.
package dispatch

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"carwatch/models"
)

// Dispatcher sends one digest of hits to the configured recipient.
type Dispatcher interface {
	Send(hits []models.Hit) error
}

// EmailDispatcher sends a plain-text digest over SMTP.
type EmailDispatcher struct {
	cfg models.SMTPConfig
}

// NewEmail creates a dispatcher from the SMTP config block.
func NewEmail(cfg models.SMTPConfig) *EmailDispatcher {
	return &EmailDispatcher{cfg: cfg}
}

// Send delivers the digest in a single SMTP transaction.
func (d *EmailDispatcher) Send(hits []models.Hit) error {
	if len(hits) == 0 {
		return nil
	}
	if d.cfg.Host == "" || len(d.cfg.To) == 0 {
		return fmt.Errorf("smtp is not configured")
	}

	addr := fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port)
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to smtp server: %w", err)
	}
	defer client.Close()

	if d.cfg.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: d.cfg.Host}); err != nil {
				return fmt.Errorf("failed to start TLS: %w", err)
			}
		}
	}
	if d.cfg.User != "" {
		auth := smtp.PlainAuth("", d.cfg.User, d.cfg.Password, d.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth failed: %w", err)
		}
	}

	if err := client.Mail(d.cfg.From); err != nil {
		return fmt.Errorf("smtp mail failed: %w", err)
	}
	for _, rcpt := range d.cfg.To {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt failed: %w", err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data failed: %w", err)
	}
	if _, err := w.Write([]byte(d.message(hits))); err != nil {
		w.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}
	return client.Quit()
}

func (d *EmailDispatcher) message(hits []models.Hit) string {
	lines := make([]string, 0, len(hits))
	for _, hit := range hits {
		lines = append(lines, fmt.Sprintf("%s — %s", hit.URL, hit.QueryText))
	}

	name := d.cfg.RecipientName
	if name == "" {
		name = "User"
	}

	body := fmt.Sprintf(`Hello %s,

We have found you cars you might be interested in on your given search queries:

%s

With best Regards
your ML Tool`, name, strings.Join(lines, "\n"))

	return fmt.Sprintf("Subject: Your car search results\r\nFrom: %s\r\nTo: %s\r\n\r\n%s",
		d.cfg.From, strings.Join(d.cfg.To, ", "), body)
}

// LogDispatcher records hits in the log instead of sending mail. Used
// by dry runs.
type LogDispatcher struct {
	Logger *slog.Logger
}

// Send logs each hit and always succeeds.
func (d *LogDispatcher) Send(hits []models.Hit) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, hit := range hits {
		logger.Info("hit (mail disabled)", "url", hit.URL, "query", hit.QueryText)
	}
	return nil
}
