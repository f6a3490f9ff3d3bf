package main

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-tours/auth"
	"github.com/goliatone/go-tours/internal/routertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNotFound(t *testing.T) {
	ctx := routertest.NewMockContext()
	ctx.On("OriginalURL").Return("/api/v1/nope")

	var body map[string]any
	ctx.On("JSON", 404, mock.Anything).Run(func(args mock.Arguments) {
		body = args.Get(1).(map[string]any)
	}).Return(nil)

	require.NoError(t, notFound(ctx))
	assert.Equal(t, "fail", body["status"])
	assert.Equal(t, "Can't find /api/v1/nope on this server!", body["message"])
	assert.Equal(t, auth.TextCodeNotFound, body["code"])
}

type captureLogger struct {
	msgs []string
	args [][]any
}

func (l *captureLogger) Debug(string, ...any) {}
func (l *captureLogger) Info(msg string, args ...any) {
	l.msgs = append(l.msgs, msg)
	l.args = append(l.args, args)
}
func (l *captureLogger) Warn(string, ...any)  {}
func (l *captureLogger) Error(string, ...any) {}

func TestAuditSink(t *testing.T) {
	log := &captureLogger{}
	sink := auditSink(log)

	err := sink.Record(context.Background(), auth.ActivityEvent{
		EventType:  auth.ActivityEventLoginSuccess,
		UserID:     "user-1",
		OccurredAt: time.Now(),
	})
	require.NoError(t, err)
	require.Len(t, log.msgs, 1)
	assert.Equal(t, string(auth.ActivityEventLoginSuccess), log.msgs[0])
	assert.Contains(t, log.args[0], "user-1")
}
