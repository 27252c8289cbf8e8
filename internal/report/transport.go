package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/wneessen/go-mail"
)

// ErrMailNotConfigured is returned when the sender address or password is missing.
var ErrMailNotConfigured = errors.New("sender address and password are required")

// Email is a composed report message.
type Email struct {
	To         []string
	Subject    string
	Text       string
	HTML       string
	Attachment *Attachment
}

// Attachment is a file attached to an Email.
type Attachment struct {
	Name string
	Data []byte
}

// Transport delivers composed e-mails.
type Transport interface {
	Send(ctx context.Context, email Email) error
}

// SMTPTransport sends e-mails through an SMTP server with mandatory STARTTLS
// and PLAIN authentication.
type SMTPTransport struct {
	cfg     domain.MailConfig
	timeout time.Duration
}

// NewSMTPTransport creates an SMTP transport.
func NewSMTPTransport(cfg domain.MailConfig) (*SMTPTransport, error) {
	if cfg.Address == "" || cfg.Password == "" {
		return nil, ErrMailNotConfigured
	}
	if cfg.SMTPServer == "" {
		cfg.SMTPServer = "smtp.gmail.com"
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 587
	}
	return &SMTPTransport{cfg: cfg, timeout: 30 * time.Second}, nil
}

// Send composes and delivers email in a single SMTP session.
func (t *SMTPTransport) Send(ctx context.Context, email Email) error {
	msg, err := t.compose(email)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(t.cfg.SMTPServer,
		mail.WithPort(t.cfg.SMTPPort),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(t.cfg.Address),
		mail.WithPassword(t.cfg.Password),
		mail.WithTimeout(t.timeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send e-mail: %w", err)
	}
	return nil
}

func (t *SMTPTransport) compose(email Email) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.FromFormat(t.cfg.FromName, t.cfg.Address); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(email.To...); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(email.Subject)
	msg.SetBodyString(mail.TypeTextPlain, email.Text)
	if email.HTML != "" {
		msg.AddAlternativeString(mail.TypeTextHTML, email.HTML)
	}
	if a := email.Attachment; a != nil {
		if err := msg.AttachReader(a.Name, bytes.NewReader(a.Data)); err != nil {
			return nil, fmt.Errorf("failed to attach %s: %w", a.Name, err)
		}
	}
	return msg, nil
}
