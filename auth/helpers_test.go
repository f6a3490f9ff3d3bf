package auth_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-tours/auth"
	"github.com/goliatone/go-tours/migrations"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type testConfig struct {
	signingKey string
	issuer     string
	expiration time.Duration
	resetTTL   time.Duration
	secure     bool
}

func newTestConfig() testConfig {
	return testConfig{
		signingKey: "test-signing-key-" + time.Now().Format(time.RFC3339Nano),
		issuer:     "go-tours-test",
		expiration: time.Hour,
		resetTTL:   10 * time.Minute,
	}
}

func (c testConfig) GetSigningKey() string              { return c.signingKey }
func (c testConfig) GetIssuer() string                  { return c.issuer }
func (c testConfig) GetTokenExpiration() time.Duration  { return c.expiration }
func (c testConfig) GetCookieExpiration() time.Duration { return 24 * time.Hour }
func (c testConfig) GetContextKey() string              { return "jwt" }
func (c testConfig) GetTokenLookup() string             { return "" }
func (c testConfig) GetAuthScheme() string              { return "Bearer" }
func (c testConfig) GetSecureCookies() bool             { return c.secure }
func (c testConfig) GetResetTokenTTL() time.Duration    { return c.resetTTL }
func (c testConfig) GetBaseURL() string                 { return "http://localhost:3000/" }

type sentEmail struct {
	kind string
	to   string
	url  string
}

type fakeNotifier struct {
	mu         sync.Mutex
	sent       []sentEmail
	resetErr   error
	welcomeErr error
}

func (n *fakeNotifier) SendWelcome(_ context.Context, user *auth.User, url string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.welcomeErr != nil {
		return n.welcomeErr
	}
	n.sent = append(n.sent, sentEmail{kind: "welcome", to: user.Email, url: url})
	return nil
}

func (n *fakeNotifier) SendPasswordReset(_ context.Context, user *auth.User, url string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.resetErr != nil {
		return n.resetErr
	}
	n.sent = append(n.sent, sentEmail{kind: "reset", to: user.Email, url: url})
	return nil
}

func (n *fakeNotifier) last(kind string) (sentEmail, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].kind == kind {
			return n.sent[i], true
		}
	}
	return sentEmail{}, false
}

// testClock is a settable time source shared by every component under test
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Now().UTC().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type quietLogger struct{}

func (quietLogger) Debug(string, ...any) {}
func (quietLogger) Info(string, ...any)  {}
func (quietLogger) Warn(string, ...any)  {}
func (quietLogger) Error(string, ...any) {}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	// a single connection keeps the in-memory database alive
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	_, err = migrations.Migrate(context.Background(), db)
	require.NoError(t, err)

	return db
}

type fixture struct {
	db       *bun.DB
	repo     auth.RepositoryManager
	cfg      testConfig
	clock    *testClock
	tokens   *auth.TokenService
	notifier *fakeNotifier
	resolver *auth.SessionResolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)
	cfg := newTestConfig()
	clock := newTestClock()
	repo := auth.NewRepositoryManager(db)
	tokens := auth.NewTokenService(cfg).WithClock(clock.Now).WithLogger(quietLogger{})

	return &fixture{
		db:       db,
		repo:     repo,
		cfg:      cfg,
		clock:    clock,
		tokens:   tokens,
		notifier: &fakeNotifier{},
		resolver: auth.NewSessionResolver(tokens, repo.Users(), cfg).WithLogger(quietLogger{}),
	}
}

// signup registers a user through the command handler and returns the
// session it produced.
func (f *fixture) signup(t *testing.T, name, email, password string) *auth.SessionResponse {
	t.Helper()

	var session *auth.SessionResponse
	handler := auth.NewRegisterUserHandler(f.repo, f.tokens, f.notifier, f.cfg.GetBaseURL()).
		WithLogger(quietLogger{}).
		WithClock(f.clock.Now)

	err := handler.Execute(context.Background(), auth.RegisterUserMessage{
		Payload: auth.SignupPayload{
			Name:            name,
			Email:           email,
			Password:        password,
			PasswordConfirm: password,
		},
		OnResponse: func(resp *auth.SessionResponse) {
			session = resp
		},
	})
	require.NoError(t, err)
	require.NotNil(t, session)

	return session
}
