package auth

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-tours/middleware/jwtware"
)

// UserFinder is the lookup the resolver needs from the credential store
type UserFinder interface {
	GetActiveByID(ctx context.Context, id string) (*User, error)
}

// SessionResolver turns a request token into an active user.
type SessionResolver struct {
	tokens     *TokenService
	users      UserFinder
	extractors []jwtware.JWTExtractor
	logger     Logger
}

// NewSessionResolver looks for tokens following cfg.GetTokenLookup,
// by default the bearer header and then the jwt cookie.
func NewSessionResolver(tokens *TokenService, users UserFinder, cfg Config) *SessionResolver {
	lookup := cfg.GetTokenLookup()
	if lookup == "" {
		lookup = jwtware.DefaultTokenLookup
	}

	return &SessionResolver{
		tokens:     tokens,
		users:      users,
		extractors: jwtware.GetExtractors(lookup, cfg.GetAuthScheme()),
		logger:     defLogger{},
	}
}

// WithLogger sets the logger
func (r *SessionResolver) WithLogger(logger Logger) *SessionResolver {
	r.logger = normalizeLogger(logger)
	return r
}

// Resolve extracts the token from src and returns its user.
func (r *SessionResolver) Resolve(ctx context.Context, src jwtware.TokenSource) (*User, error) {
	raw, err := jwtware.ExtractRawTokenFromContext(src, r.extractors)
	if err != nil || raw == "" {
		return nil, ErrUnauthenticated.Clone()
	}

	return r.ResolveToken(ctx, raw)
}

// ResolveOptional is Resolve for pages that render for guests too.
// Every failure yields a nil user.
func (r *SessionResolver) ResolveOptional(ctx context.Context, src jwtware.TokenSource) *User {
	user, err := r.Resolve(ctx, src)
	if err != nil {
		r.logger.Debug("optional session not resolved", "error", err)
		return nil
	}
	return user
}

// ResolveToken verifies raw, loads the active subject and rejects tokens
// issued before the last password change.
func (r *SessionResolver) ResolveToken(ctx context.Context, raw string) (*User, error) {
	claims, err := r.tokens.Verify(raw)
	if err != nil {
		return nil, err
	}

	user, err := r.users.GetActiveByID(ctx, claims.SubjectID())
	if err != nil {
		if repository.IsRecordNotFound(err) || errors.IsNotFound(err) {
			return nil, ErrUserGone.Clone()
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load session user")
	}

	if user.ChangedPasswordAfter(claims.IssuedAtTime()) {
		return nil, ErrPasswordChanged.Clone()
	}

	return user, nil
}

// ValidateSession implements jwtware.SessionValidator
func (r *SessionResolver) ValidateSession(ctx context.Context, raw string) (context.Context, error) {
	user, err := r.ResolveToken(ctx, raw)
	if err != nil {
		return nil, err
	}
	return WithContext(ctx, user), nil
}
