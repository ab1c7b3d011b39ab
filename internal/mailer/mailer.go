package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/proflinker/api/internal/config"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// ErrInvalidMessage is returned for a message that cannot be sent
var ErrInvalidMessage = errors.New("invalid email message")

// Message is an outbound email
type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Validate checks addresses and content
func (m Message) Validate() error {
	if len(m.To) == 0 {
		return fmt.Errorf("%w: no recipients", ErrInvalidMessage)
	}
	for _, to := range m.To {
		if _, err := mail.ParseAddress(to); err != nil {
			return fmt.Errorf("%w: bad recipient %q", ErrInvalidMessage, to)
		}
	}
	if m.From != "" {
		if _, err := mail.ParseAddress(m.From); err != nil {
			return fmt.Errorf("%w: bad sender %q", ErrInvalidMessage, m.From)
		}
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("%w: empty subject", ErrInvalidMessage)
	}
	if strings.TrimSpace(m.HTML) == "" && strings.TrimSpace(m.Text) == "" {
		return fmt.Errorf("%w: empty body", ErrInvalidMessage)
	}
	return nil
}

// Sender delivers email
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer sends email over SMTP. User-supplied HTML is sanitized first.
type SMTPMailer struct {
	dialer     *gomail.Dialer
	sender     string
	senderName string
	policy     *bluemonday.Policy
	logger     *zap.Logger
}

func NewSMTPMailer(cfg config.SMTPConfig, logger *zap.Logger) *SMTPMailer {
	return &SMTPMailer{
		dialer:     gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		sender:     cfg.Sender,
		senderName: cfg.SenderName,
		policy:     bluemonday.UGCPolicy(),
		logger:     logger,
	}
}

func (s *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	if msg.From != "" {
		// replies go to the user; the envelope sender stays ours
		m.SetHeader("Reply-To", msg.From)
	}
	m.SetAddressHeader("From", s.sender, s.senderName)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)

	switch {
	case msg.HTML != "" && msg.Text != "":
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", s.policy.Sanitize(msg.HTML))
	case msg.HTML != "":
		m.SetBody("text/html", s.policy.Sanitize(msg.HTML))
	default:
		m.SetBody("text/plain", msg.Text)
	}

	start := time.Now()
	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Error("failed to send email",
			zap.Strings("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.Error(err),
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		zap.Strings("to", msg.To),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// LogMailer only logs messages; used when SMTP is not configured
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (l *LogMailer) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	l.logger.Info("email not sent, SMTP disabled",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// New returns an SMTP mailer, or a logging mailer when no host is configured
func New(cfg config.SMTPConfig, logger *zap.Logger) Sender {
	if cfg.Host == "" {
		return NewLogMailer(logger)
	}
	return NewSMTPMailer(cfg, logger)
}
