package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/gomail.v2"
)

// ErrNotConfigured is returned when SMTP delivery is selected without a host or sender.
var ErrNotConfigured = errors.New("mail: smtp is not configured")

// Dispatcher delivers a single HTML message.
type Dispatcher interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPConfig holds SMTP connection settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Sender abstracts gomail's dialer so tests can capture messages.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPDispatcher sends mail through an SMTP relay.
type SMTPDispatcher struct {
	cfg    SMTPConfig
	sender Sender
	logger *slog.Logger
}

// NewSMTPDispatcher creates a dispatcher backed by gomail's dialer.
func NewSMTPDispatcher(cfg SMTPConfig, logger *slog.Logger) *SMTPDispatcher {
	return &SMTPDispatcher{
		cfg:    cfg,
		sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		logger: logger,
	}
}

// WithSender replaces the underlying sender.
func (d *SMTPDispatcher) WithSender(sender Sender) *SMTPDispatcher {
	d.sender = sender
	return d
}

// Send delivers an HTML message. The context is checked before dialing; gomail
// itself does not accept one.
func (d *SMTPDispatcher) Send(ctx context.Context, to, subject, body string) error {
	if d.cfg.Host == "" || d.cfg.From == "" {
		return ErrNotConfigured
	}
	if strings.TrimSpace(to) == "" {
		return errors.New("mail: empty recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", d.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)

	if err := d.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	d.logger.Info("email sent", slog.String("to", to), slog.String("subject", subject))
	return nil
}

// LogDispatcher writes messages to the log instead of sending them. Used in development.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher creates a dispatcher that only logs.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

// Send logs the message body at debug level, so codes only show up when asked for.
func (d *LogDispatcher) Send(_ context.Context, to, subject, body string) error {
	d.logger.Info("email suppressed", slog.String("to", to), slog.String("subject", subject))
	d.logger.Debug("email body", slog.String("to", to), slog.String("body", body))
	return nil
}
