package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// DefaultTokenExpiration is used when the config does not set one
const DefaultTokenExpiration = 90 * 24 * time.Hour

// Claims are the registered claims we sign. The subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
}

// SubjectID returns the user id the token was issued for
func (c *Claims) SubjectID() string {
	return c.Subject
}

// IssuedAtTime returns iat, or the zero time when absent
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// TokenService issues and verifies HS256 session tokens.
// It holds no mutable state after construction and is safe for
// concurrent use.
type TokenService struct {
	signingKey []byte
	expiration time.Duration
	issuer     string
	now        Clock
	logger     Logger
}

// NewTokenService creates a token service from cfg
func NewTokenService(cfg Config) *TokenService {
	expiration := cfg.GetTokenExpiration()
	if expiration <= 0 {
		expiration = DefaultTokenExpiration
	}

	return &TokenService{
		signingKey: []byte(cfg.GetSigningKey()),
		expiration: expiration,
		issuer:     cfg.GetIssuer(),
		now:        time.Now,
		logger:     defLogger{},
	}
}

// WithClock replaces the time source
func (ts *TokenService) WithClock(now Clock) *TokenService {
	ts.now = normalizeClock(now)
	return ts
}

// WithLogger sets the logger
func (ts *TokenService) WithLogger(logger Logger) *TokenService {
	ts.logger = normalizeLogger(logger)
	return ts
}

// Expiration returns how long issued tokens stay valid
func (ts *TokenService) Expiration() time.Duration {
	return ts.expiration
}

// Issue signs a token for subjectID valid for the configured duration
func (ts *TokenService) Issue(subjectID string) (string, error) {
	if subjectID == "" {
		return "", errors.New("token subject must not be empty", errors.CategoryInternal)
	}

	now := ts.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.expiration)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signed, nil
}

// Verify checks signature, algorithm and expiry and returns the claims.
// Any failure is an authentication error.
func (ts *TokenService) Verify(tokenString string) (*Claims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token verify encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired.Clone()
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithCode(ErrTokenMalformed.Code).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		ts.logger.Error("token verify could not decode or validate claims")
		return nil, ErrTokenMalformed.Clone()
	}

	return claims, nil
}
