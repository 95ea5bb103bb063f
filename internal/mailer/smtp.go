package mailer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"
)

// ErrSMTPNotConfigured is returned when the SMTP host is empty.
var ErrSMTPNotConfigured = errors.New("smtp host not configured")

// SMTPConfig addresses an SMTP relay. The defaults match a Gmail relay on
// the submission port.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
}

// DefaultSMTPConfig returns smtp.gmail.com:587.
func DefaultSMTPConfig() SMTPConfig {
	return SMTPConfig{Host: "smtp.gmail.com", Port: "587"}
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends plain-text mail through an SMTP relay with PLAIN auth.
type SMTPMailer struct {
	cfg  SMTPConfig
	send sendFunc
}

// NewSMTPMailer returns a mailer for cfg.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, send: smtp.SendMail}
}

// Send delivers one message. It returns ctx.Err() if ctx ends first; the
// SMTP exchange itself is not interruptible and finishes in the background.
func (m *SMTPMailer) Send(ctx context.Context, from, to, subject, body string) error {
	if m.cfg.Host == "" {
		return ErrSMTPNotConfigured
	}
	if from == "" {
		from = m.cfg.Username
	}
	if from == "" {
		return errors.New("smtp from not configured")
	}

	var auth smtp.Auth
	if m.cfg.Username != "" || m.cfg.Password != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	addr := net.JoinHostPort(m.cfg.Host, m.cfg.Port)
	msg := buildMessage(from, to, subject, body)

	done := make(chan error, 1)
	go func() {
		done <- m.send(addr, auth, from, []string{to}, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildMessage(from, to, subject, body string) []byte {
	headers := []string{
		"From: " + sanitizeHeader(from),
		"To: " + sanitizeHeader(to),
		"Subject: " + sanitizeHeader(subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
	}
	return []byte(strings.Join(headers, "\r\n") + "\r\n\r\n" + body)
}

// sanitizeHeader drops CR and LF so caller values cannot inject headers.
func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(v)
}
