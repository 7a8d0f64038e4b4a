package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gopkg.in/gomail.v2"
)

// SMTPConfig configures the SMTP transport.
type SMTPConfig struct {
	Host     string        `env:"HOST"`
	Port     int           `env:"PORT" envDefault:"587"`
	Username string        `env:"USER"`
	Password string        `env:"PASS"`
	From     string        `env:"FROM" envDefault:"no-reply@example.com"`
	Attempts int           `env:"ATTEMPTS" envDefault:"3"`
	Backoff  time.Duration `env:"BACKOFF" envDefault:"500ms"`
}

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPDispatcher sends mail through an SMTP relay, retrying transient
// failures up to Attempts times.
type SMTPDispatcher struct {
	cfg    SMTPConfig
	sender mailSender
	logger *slog.Logger
}

// NewSMTPDispatcher builds a dispatcher on a gomail dialer. The dialer opens
// a fresh connection per message.
func NewSMTPDispatcher(cfg SMTPConfig, logger *slog.Logger) *SMTPDispatcher {
	return newSMTPDispatcher(cfg, gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), logger)
}

func newSMTPDispatcher(cfg SMTPConfig, sender mailSender, logger *slog.Logger) *SMTPDispatcher {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPDispatcher{cfg: cfg, sender: sender, logger: logger}
}

func (d *SMTPDispatcher) Send(ctx context.Context, msg Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", d.cfg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	var lastErr error
	for attempt := 1; attempt <= d.cfg.Attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %w", ErrDispatch, ctx.Err())
			case <-time.After(d.cfg.Backoff * time.Duration(attempt-1)):
			}
		}

		lastErr = d.sendOnce(ctx, m)
		if lastErr == nil {
			d.logger.Info("email sent",
				slog.String("to", msg.To),
				slog.String("subject", msg.Subject),
				slog.Int("attempt", attempt),
			)
			return nil
		}

		d.logger.Warn("email send failed",
			slog.String("to", msg.To),
			slog.Int("attempt", attempt),
			slog.String("error", lastErr.Error()),
		)
	}

	return fmt.Errorf("%w: %w", ErrDispatch, lastErr)
}

// sendOnce runs a single delivery. gomail has no context support, so the
// call is abandoned (not interrupted) when ctx ends first.
func (d *SMTPDispatcher) sendOnce(ctx context.Context, m *gomail.Message) error {
	done := make(chan error, 1)
	go func() { done <- d.sender.DialAndSend(m) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
