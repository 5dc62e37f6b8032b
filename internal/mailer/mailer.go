// Package mailer delivers the one-time sign-in codes over SMTP. A logging
// sender stands in when no SMTP host is configured so local runs still
// complete the flow.
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultTimeout = 30 * time.Second

// Sender delivers a one-time sign-in code.
type Sender interface {
	SendOTP(ctx context.Context, toEmail string, code string, expiresAt time.Time) error
}

// Config carries the SMTP connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	UseTLS   bool
	Timeout  time.Duration
}

// SMTPSender implements Sender over a plain SMTP session.
type SMTPSender struct {
	config Config
}

// NewSMTPSender returns a sender for the given SMTP endpoint.
func NewSMTPSender(config Config) *SMTPSender {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.FromName == "" {
		config.FromName = "AlumNet"
	}
	return &SMTPSender{config: config}
}

// SendOTP mails the code to the recipient.
func (sender *SMTPSender) SendOTP(ctx context.Context, toEmail string, code string, expiresAt time.Time) error {
	message := buildOTPMessage(sender.config, toEmail, code, expiresAt)
	return sender.send(ctx, toEmail, message)
}

func (sender *SMTPSender) send(ctx context.Context, to string, message string) error {
	addr := fmt.Sprintf("%s:%d", sender.config.Host, sender.config.Port)
	dialer := &net.Dialer{Timeout: sender.config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp connect: %w", err)
	}
	defer func() { _ = conn.Close() }()

	client, err := smtp.NewClient(conn, sender.config.Host)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	defer func() { _ = client.Close() }()

	if sender.config.UseTLS {
		tlsConfig := &tls.Config{
			ServerName: sender.config.Host,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if sender.config.Username != "" && sender.config.Password != "" {
		auth := smtp.PlainAuth("", sender.config.Username, sender.config.Password, sender.config.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(sender.config.From); err != nil {
		return fmt.Errorf("smtp sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("smtp recipient: %w", err)
	}
	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := writer.Write([]byte(message)); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	// QUIT failure after a delivered message is not an error.
	_ = client.Quit()
	return nil
}

func buildOTPMessage(config Config, to string, code string, expiresAt time.Time) string {
	var message strings.Builder
	message.WriteString(fmt.Sprintf("From: %s <%s>\r\n", config.FromName, config.From))
	message.WriteString(fmt.Sprintf("To: %s\r\n", to))
	message.WriteString("Subject: Your sign-in code\r\n")
	message.WriteString("MIME-Version: 1.0\r\n")
	message.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	message.WriteString("\r\n")
	message.WriteString(fmt.Sprintf("Your one-time sign-in code is %s.\r\n", code))
	message.WriteString(fmt.Sprintf("It expires at %s.\r\n", expiresAt.UTC().Format(time.RFC1123)))
	return message.String()
}

// LogSender logs the code instead of mailing it. Development only.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender returns a sender that writes codes to the log.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (sender *LogSender) SendOTP(_ context.Context, toEmail string, code string, expiresAt time.Time) error {
	sender.logger.Info("otp issued",
		zap.String("email", toEmail),
		zap.String("code", code),
		zap.Time("expires_at", expiresAt))
	return nil
}
