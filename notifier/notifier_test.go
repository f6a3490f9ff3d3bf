package notifier_test

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/goliatone/go-tours/auth"
	"github.com/goliatone/go-tours/notifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordLogger struct {
	infos  []string
	errors []string
}

func (l *recordLogger) Debug(string, ...any)       {}
func (l *recordLogger) Warn(string, ...any)        {}
func (l *recordLogger) Info(msg string, _ ...any)  { l.infos = append(l.infos, msg) }
func (l *recordLogger) Error(msg string, _ ...any) { l.errors = append(l.errors, msg) }

func capture(out *[]notifier.Message) notifier.Sender {
	return notifier.SenderFunc(func(_ context.Context, msg notifier.Message) error {
		*out = append(*out, msg)
		return nil
	})
}

func TestMailer_SendPasswordReset(t *testing.T) {
	var sent []notifier.Message
	m := notifier.NewMailer(capture(&sent), "Natours <hello@natours.io>")

	user := &auth.User{Name: "Alice Smith", Email: "alice@x.com"}
	url := "http://localhost:3000/api/v1/users/resetPassword/abc123"

	require.NoError(t, m.SendPasswordReset(context.Background(), user, url))
	require.Len(t, sent, 1)

	msg := sent[0]
	assert.Equal(t, "Natours <hello@natours.io>", msg.From)
	assert.Equal(t, "alice@x.com", msg.To)
	assert.Equal(t, notifier.SubjectPasswordReset, msg.Subject)
	assert.Contains(t, msg.Text, "Hi Alice,")
	assert.Contains(t, msg.Text, "passwordConfirm to: "+url)
	assert.Contains(t, msg.Text, "please ignore this email!")
	assert.Contains(t, msg.HTML, url)
}

func TestMailer_SendWelcome(t *testing.T) {
	var sent []notifier.Message
	m := notifier.NewMailer(capture(&sent), "hello@natours.io")

	require.NoError(t, m.SendWelcome(context.Background(), &auth.User{Name: "", Email: "bob@x.com"}, "http://localhost:3000/me"))
	require.Len(t, sent, 1)
	assert.Equal(t, notifier.SubjectWelcome, sent[0].Subject)
	assert.Contains(t, sent[0].Text, "Hi there,")
	assert.Contains(t, sent[0].Text, "http://localhost:3000/me")
}

func TestMailer_DeliveryFailure(t *testing.T) {
	logger := &recordLogger{}
	failing := notifier.SenderFunc(func(context.Context, notifier.Message) error {
		return stderrors.New("connection refused")
	})
	m := notifier.NewMailer(failing, "hello@natours.io").WithLogger(logger)

	err := m.SendPasswordReset(context.Background(), &auth.User{Email: "a@x.com"}, "http://x/secret")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to deliver email")
	assert.Equal(t, []string{"email delivery failed"}, logger.errors)
}

func TestLogSender(t *testing.T) {
	logger := &recordLogger{}
	s := notifier.NewLogSender(logger)

	require.NoError(t, s.Send(context.Background(), notifier.Message{To: "a@x.com", Subject: "hi"}))
	assert.Equal(t, []string{"email"}, logger.infos)
}

func TestNew_SelectsDriver(t *testing.T) {
	t.Run("log is the default", func(t *testing.T) {
		m, err := notifier.New(notifier.Options{From: "hello@natours.io"}, &recordLogger{})
		require.NoError(t, err)
		assert.NotNil(t, m)
	})

	t.Run("smtp needs a host", func(t *testing.T) {
		_, err := notifier.New(notifier.Options{Driver: "smtp"}, nil)
		require.Error(t, err)
	})

	t.Run("smtp", func(t *testing.T) {
		m, err := notifier.New(notifier.Options{
			Driver: "SMTP",
			From:   "hello@natours.io",
			SMTP:   notifier.SMTPConfig{Host: "sandbox.smtp.mailtrap.io", Port: 2525, Username: "u", Password: "p"},
		}, nil)
		require.NoError(t, err)
		assert.NotNil(t, m)
	})

	t.Run("resend needs a key", func(t *testing.T) {
		_, err := notifier.New(notifier.Options{Driver: "resend"}, nil)
		require.Error(t, err)
	})

	t.Run("resend", func(t *testing.T) {
		m, err := notifier.New(notifier.Options{Driver: "resend", ResendAPIKey: "re_test"}, nil)
		require.NoError(t, err)
		assert.NotNil(t, m)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := notifier.New(notifier.Options{Driver: "pigeon"}, nil)
		require.Error(t, err)
	})
}
