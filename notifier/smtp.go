package notifier

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/wneessen/go-mail"
)

// SMTPConfig holds the relay settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// SMTPSender delivers through an SMTP relay, in development usually a
// catch-all inbox such as Mailtrap.
type SMTPSender struct {
	client *mail.Client
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required", errors.CategoryValidation)
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}

	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create smtp client")
	}

	return &SMTPSender{client: client}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := buildMailMsg(msg)
	if err != nil {
		return err
	}

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "smtp delivery failed")
	}
	return nil
}

func buildMailMsg(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()

	if err := m.From(msg.From); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid sender address")
	}

	if err := m.AddToFormat(msg.Name, msg.To); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid recipient address")
	}

	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}

	return m, nil
}
