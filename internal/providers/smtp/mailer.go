// Package smtp delivers composed messages through an SMTP relay.
package smtp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/dwadden/commboard/internal/ports"
)

var (
	ErrNotConfigured = errors.New("SMTP host and sender address are not configured")
	ErrNoRecipients  = errors.New("message has no recipients")
)

// TLS modes accepted in Config.TLS.
const (
	TLSMandatory     = "mandatory"
	TLSOpportunistic = "opportunistic"
	TLSNone          = "none"
)

// Config describes the relay and the sender identity.
type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	Signature string
	Footer    string
	TLS       string
	Timeout   time.Duration
}

// Mailer implements ports.Mailer with go-mail.
type Mailer struct {
	cfg Config
}

var _ ports.Mailer = (*Mailer)(nil)

func NewMailer(cfg Config) *Mailer {
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if cfg.TLS == "" {
		cfg.TLS = TLSMandatory
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Mailer{cfg: cfg}
}

// Configured reports whether the relay and sender are set.
func (m *Mailer) Configured() bool {
	return strings.TrimSpace(m.cfg.Host) != "" && strings.TrimSpace(m.cfg.From) != ""
}

func (m *Mailer) Send(ctx context.Context, msg ports.MailMessage) error {
	if !m.Configured() {
		return ErrNotConfigured
	}
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}

	message, err := m.buildMessage(msg)
	if err != nil {
		return err
	}
	client, err := mail.NewClient(m.cfg.Host, m.clientOptions()...)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, message); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (m *Mailer) buildMessage(msg ports.MailMessage) (*mail.Msg, error) {
	message := mail.NewMsg()
	if signature := strings.TrimSpace(m.cfg.Signature); signature != "" {
		if err := message.FromFormat(signature, m.cfg.From); err != nil {
			return nil, fmt.Errorf("invalid sender address: %w", err)
		}
	} else if err := message.From(m.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := message.To(msg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	message.Subject(msg.Subject)

	body := msg.Body
	if footer := strings.TrimSpace(m.cfg.Footer); footer != "" {
		body += "\n\n\n" + footer
	}
	message.SetBodyString(mail.TypeTextPlain, body)
	return message, nil
}

func (m *Mailer) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithPort(m.cfg.Port),
		mail.WithTimeout(m.cfg.Timeout),
	}
	switch m.cfg.TLS {
	case TLSNone:
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	case TLSOpportunistic:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	default:
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}
	return opts
}
