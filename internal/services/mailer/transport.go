// -----------------------------------------------------------------------
// Mail transports - STARTTLS SMTP delivery plus a logging test-mode
// transport used when no credentials are configured
// -----------------------------------------------------------------------

package mailer

import (
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/vistaview/conveyor/internal/common"
)

// Transport delivers one composed message to one recipient
type Transport interface {
	Name() string
	Send(to string, message []byte) error
}

// NewTransport selects SMTP delivery when credentials are configured,
// otherwise the logging test transport so downstream flows never block
// on missing mail configuration.
func NewTransport(config common.MailConfig, logger arbor.ILogger) Transport {
	if config.Username == "" {
		logger.Info().Msg("No SMTP credentials configured, mail runs in test mode")
		return &TestTransport{logger: logger}
	}
	return &SMTPTransport{config: config, logger: logger}
}

// SMTPTransport sends through an SMTP server, upgrading the connection
// with STARTTLS before authenticating.
type SMTPTransport struct {
	config common.MailConfig
	logger arbor.ILogger
}

func (t *SMTPTransport) Name() string { return "smtp" }

func (t *SMTPTransport) Send(to string, message []byte) error {
	addr := t.config.Host + ":" + strconv.Itoa(t.config.Port)
	auth := smtp.PlainAuth("", t.config.Username, t.config.Password, t.config.Host)

	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: t.config.Host}); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("SMTP authentication failed: %w", err)
	}

	if err := client.Mail(t.config.From); err != nil {
		return fmt.Errorf("failed to set mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set mail recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start data: %w", err)
	}
	if _, err := w.Write(message); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return client.Quit()
}

// TestTransport logs the delivery and succeeds without transmitting
type TestTransport struct {
	logger arbor.ILogger
}

func (t *TestTransport) Name() string { return "test" }

func (t *TestTransport) Send(to string, message []byte) error {
	t.logger.Info().
		Str("to", to).
		Int("size", len(message)).
		Msg("Test mode: mail logged, not transmitted")
	return nil
}

// TestMessageID mirrors the id format recorded for test-mode deliveries
func TestMessageID() string {
	return fmt.Sprintf("test-%d", time.Now().UnixNano())
}
