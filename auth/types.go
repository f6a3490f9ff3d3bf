package auth

import (
	"context"
	"fmt"
	"time"
)

// Logger is the logging contract used by this package.
// glog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetTokenExpiration() time.Duration
	GetCookieExpiration() time.Duration
	GetContextKey() string
	GetTokenLookup() string
	GetAuthScheme() string
	GetSecureCookies() bool
	GetResetTokenTTL() time.Duration
	GetBaseURL() string
}

// Notifier delivers transactional email
type Notifier interface {
	SendWelcome(ctx context.Context, user *User, url string) error
	SendPasswordReset(ctx context.Context, user *User, url string) error
}

// Clock returns the current time. Handlers take one so expiry
// rules can be tested without sleeping.
type Clock func() time.Time

func normalizeClock(c Clock) Clock {
	if c == nil {
		return time.Now
	}
	return c
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) { d.print("ERR", msg, args) }
func (d defLogger) Warn(msg string, args ...any)  { d.print("WRN", msg, args) }
func (d defLogger) Info(msg string, args ...any)  { d.print("INF", msg, args) }
func (d defLogger) Debug(msg string, args ...any) { d.print("DBG", msg, args) }

// print writes the message followed by its key/value pairs
func (defLogger) print(level, msg string, args []any) {
	line := append([]any{"[" + level + "] AUTH", msg}, args...)
	fmt.Println(line...)
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
