// Package mailer delivers alert emails over SMTP with implicit TLS.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/bdougie/firewatch/internal/alert"
)

const jpegContentType = mail.ContentType("image/jpeg")

// Config holds SMTP connection details
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
}

// SMTPTransport implements alert.Transport
type SMTPTransport struct {
	cfg Config
}

// New creates a transport. Nothing is dialed until a message is sent.
func New(cfg Config) *SMTPTransport {
	if cfg.Port == 0 {
		cfg.Port = 465
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &SMTPTransport{cfg: cfg}
}

// SendWithAttachment opens an authenticated TLS session, sends msg and closes
// the connection whatever the outcome.
func (t *SMTPTransport) SendWithAttachment(ctx context.Context, msg alert.Message) error {
	m, err := BuildMessage(msg)
	if err != nil {
		return fmt.Errorf("%w: %v", alert.ErrTransport, err)
	}

	client, err := mail.NewClient(t.cfg.Host,
		mail.WithPort(t.cfg.Port),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(t.cfg.Username),
		mail.WithPassword(t.cfg.Password),
		mail.WithTimeout(t.cfg.Timeout),
	)
	if err != nil {
		return fmt.Errorf("%w: client: %v", alert.ErrTransport, err)
	}

	if err := client.DialWithContext(ctx); err != nil {
		return fmt.Errorf("%w: dial %s:%d: %v", alert.ErrTransport, t.cfg.Host, t.cfg.Port, err)
	}
	defer client.Close()

	if err := client.Send(m); err != nil {
		return fmt.Errorf("%w: send: %v", alert.ErrTransport, err)
	}
	return nil
}

// BuildMessage assembles the MIME message for msg
func BuildMessage(msg alert.Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", msg.From, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	if len(msg.Attachment) > 0 {
		name := msg.AttachmentName
		if name == "" {
			name = alert.AttachmentName
		}
		if err := m.AttachReader(name, bytes.NewReader(msg.Attachment),
			mail.WithFileContentType(jpegContentType)); err != nil {
			return nil, fmt.Errorf("failed to attach frame: %w", err)
		}
	}
	return m, nil
}
