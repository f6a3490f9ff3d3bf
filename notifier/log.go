package notifier

import (
	"context"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-tours/auth"
)

// LogSender writes messages to the logger instead of sending them.
// Handy in development and tests where no relay is available.
type LogSender struct {
	logger auth.Logger
}

func NewLogSender(logger auth.Logger) *LogSender {
	if logger == nil {
		logger = nopLogger{}
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email",
		"from", msg.From,
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Text,
	)
	return nil
}

const (
	DriverSMTP   = "smtp"
	DriverResend = "resend"
	DriverLog    = "log"
)

// Options selects and configures a Sender
type Options struct {
	Driver       string
	From         string
	SMTP         SMTPConfig
	ResendAPIKey string
}

// New builds the mailer for the configured driver
func New(opts Options, logger auth.Logger) (*Mailer, error) {
	var (
		sender Sender
		err    error
	)

	switch strings.ToLower(opts.Driver) {
	case DriverSMTP:
		sender, err = NewSMTPSender(opts.SMTP)
	case DriverResend:
		sender, err = NewResendSender(opts.ResendAPIKey)
	case DriverLog, "":
		sender = NewLogSender(logger)
	default:
		err = errors.New("unknown email driver", errors.CategoryValidation).
			WithMetadata(map[string]any{"driver": opts.Driver})
	}

	if err != nil {
		return nil, err
	}

	return NewMailer(sender, opts.From).WithLogger(logger), nil
}
