package config

import (
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-tours/auth"
)

// Auth implements auth.Config
type Auth struct {
	SigningKey       string        `koanf:"signing_key"`
	Issuer           string        `koanf:"issuer"`
	TokenExpiration  time.Duration `koanf:"token_expiration"`
	CookieExpiration time.Duration `koanf:"cookie_expiration"`
	SecureCookies    bool          `koanf:"secure_cookies"`
	ResetTokenTTL    time.Duration `koanf:"reset_token_ttl"`
	BaseURL          string        `koanf:"base_url"`
	TokenLookup      string        `koanf:"token_lookup"`
	AuthScheme       string        `koanf:"auth_scheme"`
	ContextKey       string        `koanf:"context_key"`
}

var absoluteURL = regexp.MustCompile(`^https?://`)

var _ auth.Config = Auth{}

func (a Auth) GetSigningKey() string              { return a.SigningKey }
func (a Auth) GetIssuer() string                  { return a.Issuer }
func (a Auth) GetTokenExpiration() time.Duration  { return a.TokenExpiration }
func (a Auth) GetCookieExpiration() time.Duration { return a.CookieExpiration }
func (a Auth) GetContextKey() string              { return a.ContextKey }
func (a Auth) GetTokenLookup() string             { return a.TokenLookup }
func (a Auth) GetAuthScheme() string              { return a.AuthScheme }
func (a Auth) GetSecureCookies() bool             { return a.SecureCookies }
func (a Auth) GetResetTokenTTL() time.Duration    { return a.ResetTokenTTL }
func (a Auth) GetBaseURL() string                 { return a.BaseURL }

// Validate requires a signing key long enough for HS256 and an absolute
// base URL for the links sent by email
func (a Auth) Validate() error {
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&a,
			validation.Field(&a.SigningKey,
				validation.Required.Error("JWT_SECRET is required"),
				validation.Length(32, 0).Error("JWT_SECRET must have at least 32 characters"),
			),
			validation.Field(&a.TokenExpiration, validation.Min(time.Second)),
			validation.Field(&a.CookieExpiration, validation.Min(time.Second)),
			validation.Field(&a.ResetTokenTTL, validation.Min(time.Second)),
			validation.Field(&a.ContextKey, validation.Required),
			validation.Field(&a.BaseURL,
				validation.Required.Error("BASE_URL is required"),
				validation.Match(absoluteURL).Error("BASE_URL must start with http:// or https://"),
				is.URL,
			),
		)
	}, "invalid auth configuration")
}
