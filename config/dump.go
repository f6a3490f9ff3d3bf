package config

import (
	"github.com/goliatone/go-print"
)

const masked = "********"

// Dump renders the resolved configuration with secrets masked, for the
// startup log.
func (c *Config) Dump() string {
	return print.MaybePrettyJSON(c.Redacted())
}

func (c *Config) Redacted() map[string]any {
	return map[string]any{
		"env":  c.Env,
		"port": c.Port,
		"database": map[string]any{
			"driver": c.Database.Driver,
			"dsn":    mask(c.Database.DSN),
			"debug":  c.Database.Debug,
		},
		"auth": map[string]any{
			"signing_key":       mask(c.Auth.SigningKey),
			"issuer":            c.Auth.Issuer,
			"token_expiration":  c.Auth.TokenExpiration.String(),
			"cookie_expiration": c.Auth.CookieExpiration.String(),
			"secure_cookies":    c.Auth.SecureCookies,
			"reset_token_ttl":   c.Auth.ResetTokenTTL.String(),
			"base_url":          c.Auth.BaseURL,
			"token_lookup":      c.Auth.TokenLookup,
			"context_key":       c.Auth.ContextKey,
		},
		"email": map[string]any{
			"driver":         c.Email.Driver,
			"from":           c.Email.From,
			"host":           c.Email.Host,
			"port":           c.Email.Port,
			"username":       c.Email.Username,
			"password":       mask(c.Email.Password),
			"resend_api_key": mask(c.Email.ResendAPIKey),
		},
		"rate_limit": map[string]any{
			"max":    c.RateLimit.Max,
			"window": c.RateLimit.Window.String(),
		},
	}
}

func mask(v string) string {
	if v == "" {
		return ""
	}
	return masked
}
