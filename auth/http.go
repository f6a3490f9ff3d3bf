package auth

import (
	stderrors "errors"
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-tours/middleware/jwtware"
)

// LoggedOutCookieValue replaces the session cookie on logout
const LoggedOutCookieValue = "loggedout"

// RouteAuthenticator carries the session middleware and cookie handling
// shared by every controller.
type RouteAuthenticator struct {
	resolver     *SessionResolver
	cfg          Config
	now          Clock
	Logger       Logger
	ErrorHandler router.ErrorHandler
}

func NewHTTPAuthenticator(resolver *SessionResolver, cfg Config) *RouteAuthenticator {
	a := &RouteAuthenticator{
		resolver: resolver,
		cfg:      cfg,
		now:      time.Now,
		Logger:   defLogger{},
	}
	a.ErrorHandler = a.defaultErrHandler
	return a
}

func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	a.Logger = normalizeLogger(logger)
	return a
}

func (a *RouteAuthenticator) WithClock(now Clock) *RouteAuthenticator {
	a.now = normalizeClock(now)
	return a
}

// Protect rejects requests without a valid session.
func (a *RouteAuthenticator) Protect() router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		Validator:    a.resolver,
		TokenLookup:  a.cfg.GetTokenLookup(),
		AuthScheme:   a.cfg.GetAuthScheme(),
		ErrorHandler: a.authErrHandler,
	})
}

// IsLoggedIn attaches the user when the request carries a valid session
// and lets guests through otherwise.
func (a *RouteAuthenticator) IsLoggedIn() router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		Validator:   a.resolver,
		TokenLookup: a.cfg.GetTokenLookup(),
		AuthScheme:  a.cfg.GetAuthScheme(),
		Optional:    true,
	})
}

// RestrictTo must be mounted after Protect.
func (a *RouteAuthenticator) RestrictTo(roles ...Role) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			user, _ := CurrentUser(c)
			if err := Authorize(user, roles...); err != nil {
				return a.ErrorHandler(c, err)
			}
			return next(c)
		}
	}
}

// SetSessionCookie stores token in the session cookie
func (a *RouteAuthenticator) SetSessionCookie(c router.Context, token string) {
	expiration := a.cfg.GetCookieExpiration()
	if expiration <= 0 {
		expiration = DefaultTokenExpiration
	}
	a.setCookie(c, token, a.now().Add(expiration))
}

// ClearSessionCookie overwrites the session cookie with a short lived
// placeholder, so the browser drops the real token.
func (a *RouteAuthenticator) ClearSessionCookie(c router.Context) {
	a.setCookie(c, LoggedOutCookieValue, a.now().Add(10*time.Second))
}

func (a *RouteAuthenticator) setCookie(c router.Context, val string, expires time.Time) {
	c.Cookie(&router.Cookie{
		Name:     a.cookieName(),
		Value:    val,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   a.cfg.GetSecureCookies(),
		SameSite: router.CookieSameSiteLaxMode,
	})
}

func (a *RouteAuthenticator) cookieName() string {
	if name := a.cfg.GetContextKey(); name != "" {
		return name
	}
	return "jwt"
}

func (a *RouteAuthenticator) authErrHandler(c router.Context, err error) error {
	if stderrors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
		err = ErrUnauthenticated.Clone()
	}
	return a.ErrorHandler(c, err)
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	richErr := ToRichError(err)
	if richErr.Code >= http.StatusInternalServerError {
		a.Logger.Error("request failed",
			"path", c.OriginalURL(),
			"text_code", richErr.TextCode,
			"error", err,
		)
	}
	return WriteError(c, richErr)
}

// WriteError renders err as the JSON error envelope. Internal failures
// get a generic message so wrapped details stay in the logs.
func WriteError(c router.Context, err error) error {
	richErr := ToRichError(err)

	status := "fail"
	if richErr.Code >= http.StatusInternalServerError {
		status = "error"
	}

	message := richErr.Message
	if richErr.Category == errors.CategoryInternal {
		message = "Something went very wrong!"
	}

	body := map[string]any{
		"status":  status,
		"message": message,
		"code":    richErr.TextCode,
	}

	if fields := richErr.ValidationMap(); len(fields) > 0 {
		body["validation"] = fields
	}

	return c.JSON(richErr.Code, body)
}
