// Package notifier delivers the transactional emails sent by the auth
// flows. The mailer composes messages and a Sender moves them over SMTP,
// the Resend API or the log.
package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-tours/auth"
)

const (
	SubjectWelcome       = "Welcome to the Natours Family!"
	SubjectPasswordReset = "Your password reset token (valid for only 10 minutes)"
)

// Message is a single outbound email
type Message struct {
	From    string
	To      string
	Name    string
	Subject string
	Text    string
	HTML    string
}

// Sender moves a composed message to the provider.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Mailer implements auth.Notifier on top of a Sender
type Mailer struct {
	sender Sender
	from   string
	logger auth.Logger
}

var _ auth.Notifier = (*Mailer)(nil)

func NewMailer(sender Sender, from string) *Mailer {
	return &Mailer{
		sender: sender,
		from:   from,
		logger: nopLogger{},
	}
}

func (m *Mailer) WithLogger(logger auth.Logger) *Mailer {
	if logger != nil {
		m.logger = logger
	}
	return m
}

func (m *Mailer) SendWelcome(ctx context.Context, user *auth.User, url string) error {
	first := firstName(user.Name)
	return m.send(ctx, Message{
		From:    m.from,
		To:      user.Email,
		Name:    user.Name,
		Subject: SubjectWelcome,
		Text: fmt.Sprintf(
			"Hi %s,\n\nWelcome to Natours, we're glad to have you!\nUpload your user photo and get started: %s\n",
			first, url,
		),
		HTML: fmt.Sprintf(
			`<p>Hi %s,</p><p>Welcome to Natours, we're glad to have you!</p><p><a href="%s">Upload your user photo</a></p>`,
			first, url,
		),
	})
}

func (m *Mailer) SendPasswordReset(ctx context.Context, user *auth.User, url string) error {
	first := firstName(user.Name)
	return m.send(ctx, Message{
		From:    m.from,
		To:      user.Email,
		Name:    user.Name,
		Subject: SubjectPasswordReset,
		Text: fmt.Sprintf(
			"Hi %s,\n\nForgot your password? Submit a PATCH request with your new password and passwordConfirm to: %s\nIf you didn't forget your password, please ignore this email!\n",
			first, url,
		),
		HTML: fmt.Sprintf(
			`<p>Hi %s,</p><p>Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: <a href="%s">%s</a></p><p>If you didn't forget your password, please ignore this email!</p>`,
			first, url, url,
		),
	})
}

func (m *Mailer) send(ctx context.Context, msg Message) error {
	if err := m.sender.Send(ctx, msg); err != nil {
		// the url may carry a reset token, only log the recipient
		m.logger.Error("email delivery failed", "to", msg.To, "subject", msg.Subject, "error", err)
		return errors.Wrap(err, errors.CategoryOperation, "failed to deliver email").
			WithMetadata(map[string]any{"subject": msg.Subject})
	}
	m.logger.Debug("email delivered", "to", msg.To, "subject", msg.Subject)
	return nil
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
