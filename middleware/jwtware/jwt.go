package jwtware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/goliatone/go-router"
)

var (
	// DefaultTokenLookup checks the bearer header first, then the jwt cookie
	DefaultTokenLookup       = "header:" + router.HeaderAuthorization + ",cookie:jwt"
	ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")
)

// TokenSource is the part of a request a token can be read from.
// router.Context satisfies it.
type TokenSource interface {
	Header(key string) string
	Cookies(key string, defaultValue ...string) string
	Query(key string, defaultValue string) string
	Param(key string, defaultValue ...string) string
}

// SessionValidator resolves a raw token and returns a context that
// carries whatever the session resolved to.
type SessionValidator interface {
	ValidateSession(ctx context.Context, raw string) (context.Context, error)
}

// SessionValidatorFunc adapts a function to SessionValidator
type SessionValidatorFunc func(ctx context.Context, raw string) (context.Context, error)

// ValidateSession implements SessionValidator
func (f SessionValidatorFunc) ValidateSession(ctx context.Context, raw string) (context.Context, error) {
	return f(ctx, raw)
}

type Config struct {
	// Filter skips the middleware when it returns true
	Filter       func(router.Context) bool
	ErrorHandler router.ErrorHandler
	TokenLookup  string
	AuthScheme   string
	Validator    SessionValidator
	// Optional lets the request through without a session when the token
	// is missing or does not validate.
	Optional bool
}

// New returns a middleware that extracts the token, validates it and
// stores the resulting context on the request.
func New(config ...Config) router.MiddlewareFunc {
	cfg := GetDefaultConfig(config...)
	extractors := cfg.getExtractors()

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return next(ctx)
			}

			raw, err := ExtractRawTokenFromContext(ctx, extractors)
			if err != nil {
				if cfg.Optional {
					return next(ctx)
				}
				return cfg.ErrorHandler(ctx, err)
			}

			stdCtx, err := cfg.Validator.ValidateSession(ctx.Context(), raw)
			if err != nil {
				if cfg.Optional {
					return next(ctx)
				}
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.SetContext(stdCtx)

			return next(ctx)
		}
	}
}

// ExtractRawTokenFromContext runs extractors in order and returns the
// first token found.
func ExtractRawTokenFromContext(src TokenSource, extractors []JWTExtractor) (string, error) {
	err := ErrJWTMissingOrMalformed

	for _, extractor := range extractors {
		raw, xerr := extractor(src)
		if raw != "" && xerr == nil {
			return raw, nil
		}
		if xerr != nil {
			err = xerr
		}
	}

	return "", err
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(ctx router.Context, err error) error {
			if errors.Is(err, ErrJWTMissingOrMalformed) {
				return ctx.Status(http.StatusBadRequest).SendString(ErrJWTMissingOrMalformed.Error())
			}
			return ctx.Status(http.StatusUnauthorized).SendString("Invalid or expired JWT")
		}
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = DefaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	if cfg.Validator == nil {
		panic("jwtware: session validator is required")
	}

	return cfg
}

func (cfg *Config) getExtractors() []JWTExtractor {
	return GetExtractors(cfg.TokenLookup, cfg.AuthScheme)
}

// GetExtractors parses a lookup definition such as
// "header:Authorization,cookie:jwt,query:auth_token,param:token".
func GetExtractors(tokenLookup string, authSchemes ...string) []JWTExtractor {
	extractors := make([]JWTExtractor, 0)

	authScheme := "Bearer"
	if len(authSchemes) > 0 && strings.TrimSpace(authSchemes[0]) != "" {
		authScheme = strings.TrimSpace(authSchemes[0])
	}

	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}

		source, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

		switch source {
		case "header":
			extractors = append(extractors, jwtFromHeader(name, authScheme))
		case "query":
			extractors = append(extractors, jwtFromQuery(name))
		case "param":
			extractors = append(extractors, jwtFromParam(name))
		case "cookie":
			extractors = append(extractors, jwtFromCookie(name))
		}
	}

	return extractors
}

type JWTExtractor func(src TokenSource) (string, error)

// jwtFromHeader returns a function that extracts token from the request header.
func jwtFromHeader(header string, authScheme string) JWTExtractor {
	return func(src TokenSource) (string, error) {
		a := src.Header(header)
		l := len(authScheme)
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) && a[l] == ' ' {
			if token := strings.TrimSpace(a[l:]); token != "" {
				return token, nil
			}
		}
		return "", ErrJWTMissingOrMalformed
	}
}

// jwtFromQuery returns a function that extracts token from the query string.
func jwtFromQuery(param string) JWTExtractor {
	return func(src TokenSource) (string, error) {
		token := src.Query(param, "")
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// jwtFromParam returns a function that extracts token from the url param string.
func jwtFromParam(param string) JWTExtractor {
	return func(src TokenSource) (string, error) {
		token := src.Param(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// jwtFromCookie returns a function that extracts token from the named cookie.
func jwtFromCookie(name string) JWTExtractor {
	return func(src TokenSource) (string, error) {
		token := src.Cookies(name)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}
