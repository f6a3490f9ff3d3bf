package auth

import (
	"context"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// CredentialStore is what the authenticator needs to verify a login
type CredentialStore interface {
	GetActiveByEmail(ctx context.Context, email string) (*User, error)
}

// Auther verifies credentials and signs session tokens.
type Auther struct {
	users    CredentialStore
	tokens   *TokenService
	logger   Logger
	activity ActivitySink
	// dummyHash keeps login timing flat for unknown emails
	dummyHash string
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(users CredentialStore, tokens *TokenService) *Auther {
	return &Auther{
		users:     users,
		tokens:    tokens,
		logger:    defLogger{},
		activity:  noopActivitySink{},
		dummyHash: RandomPasswordHash(),
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activity = normalizeActivitySink(sink)
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() *TokenService {
	return s.tokens
}

// Login returns the user matching email and password together with a
// fresh token. Unknown emails and wrong passwords fail the same way.
func (s *Auther) Login(ctx context.Context, email, password string) (*User, string, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, "", ErrMissingCredentials.Clone()
	}

	user, err := s.users.GetActiveByEmail(ctx, email)
	if err != nil {
		if !repository.IsRecordNotFound(err) && !errors.IsNotFound(err) {
			s.logger.Error("Login find user error", "error", err)
			return nil, "", errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user during login")
		}
		_ = ComparePasswordAndHash(password, s.dummyHash)
		s.emitLoginFailure(ctx, "", email)
		return nil, "", ErrIncorrectCredentials.Clone()
	}

	if !user.CorrectPassword(password) {
		s.emitLoginFailure(ctx, user.ID.String(), email)
		return nil, "", ErrIncorrectCredentials.Clone()
	}

	token, err := s.tokens.Issue(user.ID.String())
	if err != nil {
		s.logger.Error("Login sign token error", "error", err)
		return nil, "", err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		UserID:    user.ID.String(),
	})

	return user, token, nil
}

func (s *Auther) emitLoginFailure(ctx context.Context, userID, email string) {
	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventLoginFailure,
		UserID:    userID,
		Metadata:  map[string]any{"email": NormalizeEmail(email)},
	})
}
