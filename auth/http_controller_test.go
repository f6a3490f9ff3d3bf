package auth_test

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/goliatone/go-router"
	"github.com/goliatone/go-tours/auth"
	"github.com/goliatone/go-tours/internal/routertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestController(f *fixture) (*auth.Controller, *auth.RouteAuthenticator) {
	httpAuth := auth.NewHTTPAuthenticator(f.resolver, f.cfg).
		WithLogger(quietLogger{}).
		WithClock(f.clock.Now)
	auther := auth.NewAuthenticator(f.repo.Users(), f.tokens).WithLogger(quietLogger{})

	controller := auth.NewController(f.repo, auther, httpAuth, f.notifier, f.cfg,
		auth.WithControllerLogger(quietLogger{}),
		auth.WithControllerClock(f.clock.Now),
	)
	return controller, httpAuth
}

func bindPayload[T any](ctx *routertest.MockContext, payload T) {
	ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		if dst, ok := args.Get(0).(*T); ok {
			*dst = payload
		}
	}).Return(nil)
}

func captureJSON(ctx *routertest.MockContext, status int) *map[string]any {
	body := map[string]any{}
	ctx.On("JSON", status, mock.Anything).Run(func(args mock.Arguments) {
		body = args.Get(1).(map[string]any)
	}).Return(nil)
	return &body
}

func TestController_Signup(t *testing.T) {
	f := newFixture(t)
	controller, _ := newTestController(f)

	ctx := routertest.NewMockContext()
	ctx.On("Context").Return(context.Background())
	bindPayload(ctx, auth.SignupPayload{
		Name:            "Alice",
		Email:           "alice@x.com",
		Password:        "secret123",
		PasswordConfirm: "secret123",
	})

	var cookie *router.Cookie
	ctx.On("Cookie", mock.Anything).Run(func(args mock.Arguments) {
		cookie = args.Get(0).(*router.Cookie)
	}).Return()
	body := captureJSON(ctx, 201)

	require.NoError(t, controller.Signup(ctx))

	assert.Equal(t, "success", (*body)["status"])
	token, _ := (*body)["token"].(string)
	require.NotEmpty(t, token)

	data := (*body)["data"].(map[string]any)
	user := data["user"].(*auth.User)
	assert.Equal(t, "alice@x.com", user.Email)

	require.NotNil(t, cookie)
	assert.Equal(t, "jwt", cookie.Name)
	assert.Equal(t, token, cookie.Value)
	assert.True(t, cookie.HTTPOnly)
	assert.False(t, cookie.Secure)
	assert.Equal(t, "Lax", cookie.SameSite)
	assert.WithinDuration(t, f.clock.Now().Add(24*time.Hour), cookie.Expires, time.Second)
}

func TestController_LoginWrongPassword(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "Alice", "alice@x.com", "secret123")
	controller, _ := newTestController(f)

	ctx := routertest.NewMockContext()
	ctx.On("Context").Return(context.Background())
	bindPayload(ctx, auth.LoginPayload{Email: "alice@x.com", Password: "wrongpass"})
	body := captureJSON(ctx, 401)

	require.NoError(t, controller.Login(ctx))
	assert.Equal(t, "fail", (*body)["status"])
	assert.Equal(t, "Incorrect Credentials", (*body)["message"])
	assert.Equal(t, auth.TextCodeIncorrectCredentials, (*body)["code"])
}

func TestController_LoginMissingFields(t *testing.T) {
	f := newFixture(t)
	controller, _ := newTestController(f)

	ctx := routertest.NewMockContext()
	ctx.On("Context").Return(context.Background())
	bindPayload(ctx, auth.LoginPayload{Email: "alice@x.com"})
	body := captureJSON(ctx, 400)

	require.NoError(t, controller.Login(ctx))
	assert.Equal(t, "Please provide email and password!", (*body)["message"])
}

func TestController_Logout(t *testing.T) {
	f := newFixture(t)
	controller, _ := newTestController(f)

	ctx := routertest.NewMockContext()
	ctx.On("Cookie", mock.MatchedBy(func(c *router.Cookie) bool {
		return c.Name == "jwt" &&
			c.Value == auth.LoggedOutCookieValue &&
			c.HTTPOnly &&
			c.Expires.Equal(f.clock.Now().Add(10*time.Second))
	})).Return()
	body := captureJSON(ctx, 200)

	require.NoError(t, controller.Logout(ctx))
	assert.Equal(t, "success", (*body)["status"])
	ctx.AssertExpectations(t)
}

func TestController_ForgotPasswordAlwaysSucceeds(t *testing.T) {
	f := newFixture(t)
	controller, _ := newTestController(f)

	ctx := routertest.NewMockContext()
	ctx.On("Context").Return(context.Background())
	bindPayload(ctx, auth.ForgotPasswordPayload{Email: "nobody@x.com"})
	body := captureJSON(ctx, 200)

	require.NoError(t, controller.ForgotPassword(ctx))
	assert.Equal(t, "Token sent to email!", (*body)["message"])
}

func TestController_ResetPasswordBadToken(t *testing.T) {
	f := newFixture(t)
	controller, _ := newTestController(f)

	ctx := routertest.NewMockContext()
	ctx.ParamsM["token"] = "does-not-exist"
	ctx.On("Context").Return(context.Background())
	bindPayload(ctx, auth.ResetPasswordPayload{Password: "newpass123", PasswordConfirm: "newpass123"})
	body := captureJSON(ctx, 400)

	require.NoError(t, controller.ResetPassword(ctx))
	assert.Equal(t, auth.TextCodeInvalidOrExpired, (*body)["code"])
}

func TestController_MeUsesSessionUser(t *testing.T) {
	f := newFixture(t)
	session := f.signup(t, "Alice", "alice@x.com", "secret123")
	controller, _ := newTestController(f)

	ctx := routertest.NewMockContext()
	ctx.On("Context").Return(auth.WithContext(context.Background(), session.User))
	body := captureJSON(ctx, 200)

	require.NoError(t, controller.Me(ctx))
	data := (*body)["data"].(map[string]any)
	assert.Equal(t, session.User.ID, data["user"].(*auth.User).ID)
}

func TestController_DeleteMe(t *testing.T) {
	f := newFixture(t)
	session := f.signup(t, "Alice", "alice@x.com", "secret123")
	controller, _ := newTestController(f)

	ctx := routertest.NewMockContext()
	ctx.On("Context").Return(auth.WithContext(context.Background(), session.User))
	ctx.On("NoContent", 204).Return(nil)

	require.NoError(t, controller.DeleteMe(ctx))

	_, err := f.repo.Users().GetActiveByEmail(context.Background(), "alice@x.com")
	assert.Error(t, err, "deactivated users are hidden")
}

func TestRouteAuthenticator_ProtectWithoutToken(t *testing.T) {
	f := newFixture(t)
	_, httpAuth := newTestController(f)

	ctx := routertest.NewMockContext()
	ctx.On("Context").Return(context.Background())
	ctx.On("Header", "Authorization").Return("").Maybe()
	ctx.On("Cookies", "jwt").Return("").Maybe()
	body := captureJSON(ctx, 401)

	called := false
	err := httpAuth.Protect()(func(router.Context) error {
		called = true
		return nil
	})(ctx)

	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, auth.TextCodeUnauthenticated, (*body)["code"])
	assert.Equal(t, "You are not logged in! Please log in to get access.", (*body)["message"])
}

func TestController_SessionForGuestAndUser(t *testing.T) {
	f := newFixture(t)
	session := f.signup(t, "Alice", "alice@x.com", "secret123")
	controller, httpAuth := newTestController(f)
	handler := httpAuth.IsLoggedIn()(controller.Session)

	t.Run("guest", func(t *testing.T) {
		ctx := routertest.NewMockContext()
		body := captureJSON(ctx, 200)

		require.NoError(t, handler(ctx))
		assert.Equal(t, "success", (*body)["status"])
		assert.Nil(t, (*body)["data"].(map[string]any)["user"])
	})

	t.Run("invalid token is treated as guest", func(t *testing.T) {
		ctx := routertest.NewMockContext()
		ctx.HeadersM["Authorization"] = "Bearer garbage"
		body := captureJSON(ctx, 200)

		require.NoError(t, handler(ctx))
		assert.Nil(t, (*body)["data"].(map[string]any)["user"])
	})

	t.Run("user", func(t *testing.T) {
		ctx := routertest.NewMockContext()
		ctx.HeadersM["Authorization"] = "Bearer " + session.Token
		body := captureJSON(ctx, 200)

		require.NoError(t, handler(ctx))
		user, ok := (*body)["data"].(map[string]any)["user"].(*auth.User)
		require.True(t, ok)
		assert.Equal(t, "alice@x.com", user.Email)
	})
}

func TestRouteAuthenticator_RestrictTo(t *testing.T) {
	f := newFixture(t)
	_, httpAuth := newTestController(f)

	guide := &auth.User{Role: auth.RoleGuide}

	t.Run("forbidden", func(t *testing.T) {
		ctx := routertest.NewMockContext()
		ctx.On("Context").Return(auth.WithContext(context.Background(), guide))
		body := captureJSON(ctx, 403)

		called := false
		err := httpAuth.RestrictTo(auth.RoleAdmin, auth.RoleLeadGuide)(func(router.Context) error {
			called = true
			return nil
		})(ctx)

		require.NoError(t, err)
		assert.False(t, called)
		assert.Equal(t, auth.TextCodeForbidden, (*body)["code"])
	})

	t.Run("allowed", func(t *testing.T) {
		ctx := routertest.NewMockContext()
		ctx.On("Context").Return(auth.WithContext(context.Background(), guide))

		called := false
		err := httpAuth.RestrictTo(auth.RoleGuide)(func(router.Context) error {
			called = true
			return nil
		})(ctx)

		require.NoError(t, err)
		assert.True(t, called)
	})
}

func TestWriteError_HidesInternalDetails(t *testing.T) {
	ctx := routertest.NewMockContext()
	body := captureJSON(ctx, 500)

	require.NoError(t, auth.WriteError(ctx, stderrors.New("pq: connection refused")))
	assert.Equal(t, "error", (*body)["status"])
	assert.Equal(t, "Something went very wrong!", (*body)["message"])
	assert.Equal(t, auth.TextCodeInternal, (*body)["code"])
}

func TestWriteError_ValidationFields(t *testing.T) {
	ctx := routertest.NewMockContext()
	body := captureJSON(ctx, 400)

	verr := auth.SignupPayload{Email: "bad"}.Validate()
	require.NotNil(t, verr)

	require.NoError(t, auth.WriteError(ctx, verr))
	assert.Equal(t, "fail", (*body)["status"])
	assert.Contains(t, *body, "validation")
}
