// Package email отправка уведомлений о заказах по почте.
package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Sender отправляет письмо. correlationID и messageID попадают в заголовки письма.
//
//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name=Sender --dir=. --output=./mocks --outpkg=mocks
type Sender interface {
	Send(ctx context.Context, correlationID, messageID uuid.UUID, to, body string) error
}

// SMTPConfig параметры SMTP сервера
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPSender отправляет письма через SMTP (net/smtp)
type SMTPSender struct {
	logger *zap.Logger
	cfg    SMTPConfig
	now    func() time.Time
}

// NewSMTPSender создаёт SMTP sender
func NewSMTPSender(logger *zap.Logger, cfg SMTPConfig) *SMTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMTPSender{
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Send отправляет письмо. Соединение ограничено дедлайном ctx.
func (s *SMTPSender) Send(ctx context.Context, correlationID, messageID uuid.UUID, to, body string) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	dialer := net.Dialer{Timeout: s.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(s.cfg.Timeout)
	}
	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if s.cfg.Username != "" {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
				return fmt.Errorf("smtp starttls: %w", err)
			}
		}
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to %s: %w", to, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(buildMessage(s.cfg.From, to, correlationID, messageID, body, s.now())); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp end data: %w", err)
	}

	s.logger.Debug("email sent",
		zap.String("to", to),
		zap.String("correlation_id", correlationID.String()),
		zap.String("message_id", messageID.String()),
	)
	return client.Quit()
}

// buildMessage собирает письмо RFC 5322 с заголовками Message-ID и X-Correlation-ID
func buildMessage(from, to string, correlationID, messageID uuid.UUID, body string, at time.Time) []byte {
	var b bytes.Buffer
	header := func(k, v string) {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\r\n")
	}
	header("From", from)
	header("To", to)
	header("Subject", "Order notification")
	header("Date", at.Format(time.RFC1123Z))
	header("Message-ID", "<"+messageID.String()+"@ordering>")
	header("X-Correlation-ID", correlationID.String())
	header("MIME-Version", "1.0")
	header("Content-Type", "text/plain; charset=UTF-8")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return b.Bytes()
}

// NoOpSender - no-op реализация Sender (когда email отключён)
type NoOpSender struct {
	logger *zap.Logger
}

// NewNoOpSender создаёт no-op sender
func NewNoOpSender(logger *zap.Logger) *NoOpSender {
	return &NoOpSender{
		logger: logger,
	}
}

// Send ничего не отправляет, только логирует
func (s *NoOpSender) Send(_ context.Context, correlationID, messageID uuid.UUID, to, body string) error {
	s.logger.Debug("no-op sender: email not sent",
		zap.String("to", to),
		zap.String("correlation_id", correlationID.String()),
		zap.String("message_id", messageID.String()),
		zap.String("body_preview", truncate(body, 50)),
	)
	return nil
}

// truncate обрезает строку до указанной длины
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
