package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// RouteRegistrar captures the router methods used by the controllers.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Patch(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// Controller serves the /users API.
type Controller struct {
	Debug    bool
	Logger   Logger
	Repo     RepositoryManager
	Auther   *Auther
	HTTP     *RouteAuthenticator
	Notifier Notifier
	Config   Config
	Activity ActivitySink
	Now      Clock
}

type ControllerOption func(*Controller) *Controller

func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) *Controller {
		c.Logger = normalizeLogger(logger)
		return c
	}
}

func WithControllerActivitySink(sink ActivitySink) ControllerOption {
	return func(c *Controller) *Controller {
		c.Activity = normalizeActivitySink(sink)
		return c
	}
}

func WithControllerClock(now Clock) ControllerOption {
	return func(c *Controller) *Controller {
		c.Now = normalizeClock(now)
		return c
	}
}

func WithControllerDebug(debug bool) ControllerOption {
	return func(c *Controller) *Controller {
		c.Debug = debug
		return c
	}
}

func NewController(repo RepositoryManager, auther *Auther, httpAuth *RouteAuthenticator, notifier Notifier, cfg Config, opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger:   defLogger{},
		Repo:     repo,
		Auther:   auther,
		HTTP:     httpAuth,
		Notifier: notifier,
		Config:   cfg,
		Activity: noopActivitySink{},
		Now:      time.Now,
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil || c.HTTP == nil {
		panic("Missing authenticator in auth controller...")
	}

	return c
}

// RegisterRoutes mounts the handlers, group is expected at /api/v1/users
func (a *Controller) RegisterRoutes(group RouteRegistrar) {
	protect := a.HTTP.Protect()
	admin := a.HTTP.RestrictTo(RoleAdmin)

	group.Post("/signup", a.Signup)
	group.Post("/login", a.Login)
	group.Get("/logout", a.Logout)
	group.Post("/forgotPassword", a.ForgotPassword)
	group.Patch("/resetPassword/:token", a.ResetPassword)

	group.Patch("/updateMyPassword", a.UpdateMyPassword, protect)
	group.Get("/me", a.Me, protect)
	group.Get("/session", a.Session, a.HTTP.IsLoggedIn())
	group.Patch("/updateMe", a.UpdateMe, protect)
	group.Delete("/deleteMe", a.DeleteMe, protect)

	group.Get("/", a.ListUsers, protect, admin)
	group.Get("/:id", a.GetUser, protect, admin)
	group.Patch("/:id", a.UpdateUser, protect, admin)
	group.Delete("/:id", a.DeleteUser, protect, admin)
}

func (a *Controller) Signup(ctx router.Context) error {
	payload := new(SignupPayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.HTTP.ErrorHandler(ctx, err)
	}

	var session *SessionResponse
	handler := NewRegisterUserHandler(a.Repo, a.Auther.TokenService(), a.Notifier, a.Config.GetBaseURL()).
		WithLogger(a.Logger).
		WithActivitySink(a.Activity).
		WithClock(a.Now)

	err := handler.Execute(ctx.Context(), RegisterUserMessage{
		Payload: *payload,
		OnResponse: func(resp *SessionResponse) {
			session = resp
		},
	})
	if err != nil {
		return a.HTTP.ErrorHandler(ctx, err)
	}

	return a.sendSession(ctx, http.StatusCreated, session)
}

func (a *Controller) Login(ctx router.Context) error {
	payload := new(LoginPayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.HTTP.ErrorHandler(ctx, err)
	}

	user, token, err := a.Auther.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return a.HTTP.ErrorHandler(ctx, err)
	}

	return a.sendSession(ctx, http.StatusOK, &SessionResponse{User: user, Token: token})
}

func (a *Controller) Logout(ctx router.Context) error {
	a.HTTP.ClearSessionCookie(ctx)
	return ctx.JSON(http.StatusOK, map[string]any{"status": "success"})
}

func (a *Controller) ForgotPassword(ctx router.Context) error {
	payload := new(ForgotPasswordPayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.HTTP.ErrorHandler(ctx, err)
	}

	handler := NewInitializePasswordResetHandler(a.Repo, a.Notifier, a.Config).
		WithLogger(a.Logger).
		WithActivitySink(a.Activity).
		WithClock(a.Now)

	if err := handler.Execute(ctx.Context(), InitializePasswordResetMessage{Email: payload.Email}); err != nil {
		return a.HTTP.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Token sent to email!",
	})
}

func (a *Controller) ResetPassword(ctx router.Context) error {
	payload := new(ResetPasswordPayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.HTTP.ErrorHandler(ctx, err)
	}

	var session *SessionResponse
	handler := NewFinalizePasswordResetHandler(a.Repo, a.Auther.TokenService()).
		WithLogger(a.Logger).
		WithActivitySink(a.Activity).
		WithClock(a.Now)

	err := handler.Execute(ctx.Context(), FinalizePasswordResetMessage{
		Token:   ctx.Param("token"),
		Payload: *payload,
		OnResponse: func(resp *SessionResponse) {
			session = resp
		},
	})
	if err != nil {
		return a.HTTP.ErrorHandler(ctx, err)
	}

	return a.sendSession(ctx, http.StatusOK, session)
}

func (a *Controller) UpdateMyPassword(ctx router.Context) error {
	user, ok := CurrentUser(ctx)
	if !ok {
		return a.HTTP.ErrorHandler(ctx, ErrUnauthenticated.Clone())
	}

	payload := new(UpdatePasswordPayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.HTTP.ErrorHandler(ctx, err)
	}

	var session *SessionResponse
	handler := NewUpdatePasswordHandler(a.Repo, a.Auther.TokenService()).
		WithLogger(a.Logger).
		WithActivitySink(a.Activity).
		WithClock(a.Now)

	err := handler.Execute(ctx.Context(), UpdatePasswordMessage{
		UserID:  user.ID.String(),
		Payload: *payload,
		OnResponse: func(resp *SessionResponse) {
			session = resp
		},
	})
	if err != nil {
		return a.HTTP.ErrorHandler(ctx, err)
	}

	return a.sendSession(ctx, http.StatusOK, session)
}

func (a *Controller) Me(ctx router.Context) error {
	user, ok := CurrentUser(ctx)
	if !ok {
		return a.HTTP.ErrorHandler(ctx, ErrUnauthenticated.Clone())
	}
	return sendUser(ctx, http.StatusOK, user)
}

// Session answers for guests too, with a null user.
func (a *Controller) Session(ctx router.Context) error {
	user, _ := CurrentUser(ctx)
	return sendUser(ctx, http.StatusOK, user)
}

func (a *Controller) UpdateMe(ctx router.Context) error {
	user, ok := CurrentUser(ctx)
	if !ok {
		return a.HTTP.ErrorHandler(ctx, ErrUnauthenticated.Clone())
	}

	payload := new(UpdateMePayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.HTTP.ErrorHandler(ctx, err)
	}

	if verr := payload.Validate(); verr != nil {
		return a.HTTP.ErrorHandler(ctx, verr)
	}

	updated := *user
	payload.Apply(&updated)

	if err := a.Repo.Users().UpdateProfile(ctx.Context(), &updated); err != nil {
		return a.HTTP.ErrorHandler(ctx, err)
	}

	return sendUser(ctx, http.StatusOK, &updated)
}

func (a *Controller) DeleteMe(ctx router.Context) error {
	user, ok := CurrentUser(ctx)
	if !ok {
		return a.HTTP.ErrorHandler(ctx, ErrUnauthenticated.Clone())
	}

	if err := a.Repo.Users().Deactivate(ctx.Context(), user.ID); err != nil {
		return a.HTTP.ErrorHandler(ctx, err)
	}

	recordActivity(ctx.Context(), a.Activity, a.Logger, ActivityEvent{
		EventType:  ActivityEventUserDeactivated,
		UserID:     user.ID.String(),
		OccurredAt: a.Now(),
	})

	return ctx.NoContent(http.StatusNoContent)
}

func (a *Controller) ListUsers(ctx router.Context) error {
	records, err := a.Repo.Users().ListActive(ctx.Context())
	if err != nil {
		return a.HTTP.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"status":  "success",
		"results": len(records),
		"data":    map[string]any{"users": records},
	})
}

func (a *Controller) GetUser(ctx router.Context) error {
	user, err := a.findUser(ctx.Context(), ctx.Param("id"))
	if err != nil {
		return a.HTTP.ErrorHandler(ctx, err)
	}
	return sendUser(ctx, http.StatusOK, user)
}

func (a *Controller) UpdateUser(ctx router.Context) error {
	payload := new(UpdateUserPayload)
	if err := a.bind(ctx, payload); err != nil {
		return a.HTTP.ErrorHandler(ctx, err)
	}

	if verr := payload.Validate(); verr != nil {
		return a.HTTP.ErrorHandler(ctx, verr)
	}

	user, err := a.findUser(ctx.Context(), ctx.Param("id"))
	if err != nil {
		return a.HTTP.ErrorHandler(ctx, err)
	}

	payload.Apply(user)

	if err := a.Repo.Users().UpdateProfile(ctx.Context(), user); err != nil {
		return a.HTTP.ErrorHandler(ctx, err)
	}

	return sendUser(ctx, http.StatusOK, user)
}

func (a *Controller) DeleteUser(ctx router.Context) error {
	id, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		return a.HTTP.ErrorHandler(ctx, ErrNoUserWithID.Clone())
	}

	if err := a.Repo.Users().Remove(ctx.Context(), id); err != nil {
		if errors.IsNotFound(err) {
			err = ErrNoUserWithID.Clone()
		}
		return a.HTTP.ErrorHandler(ctx, err)
	}

	return ctx.NoContent(http.StatusNoContent)
}

func (a *Controller) findUser(ctx context.Context, id string) (*User, error) {
	user, err := a.Repo.Users().GetActiveByID(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrNoUserWithID.Clone()
		}
		return nil, err
	}
	return user, nil
}

func (a *Controller) bind(ctx router.Context, payload any) error {
	if err := ctx.Bind(payload); err != nil {
		a.Logger.Debug("failed to parse request body", "error", err)
		return errors.Wrap(err, errors.CategoryBadInput, "Invalid request body").
			WithCode(errors.CodeBadRequest).
			WithTextCode(TextCodeValidationFailed)
	}

	if a.Debug {
		a.Logger.Debug("request payload", "path", ctx.OriginalURL(), "payload", print.MaybePrettyJSON(redact(payload)))
	}

	return nil
}

// sendSession sets the cookie and writes the token with the user
func (a *Controller) sendSession(ctx router.Context, status int, session *SessionResponse) error {
	if session == nil {
		return a.HTTP.ErrorHandler(ctx, errors.New("missing session", errors.CategoryInternal))
	}

	a.HTTP.SetSessionCookie(ctx, session.Token)

	return ctx.JSON(status, map[string]any{
		"status": "success",
		"token":  session.Token,
		"data":   map[string]any{"user": session.User},
	})
}

func sendUser(ctx router.Context, status int, user *User) error {
	return ctx.JSON(status, map[string]any{
		"status": "success",
		"data":   map[string]any{"user": user},
	})
}

func redact(payload any) any {
	switch p := payload.(type) {
	case *SignupPayload:
		return map[string]any{"name": p.Name, "email": p.Email}
	case *LoginPayload:
		return map[string]any{"email": p.Email}
	case *ForgotPasswordPayload:
		return p
	case *UpdateMePayload:
		return map[string]any{"name": p.Name, "email": p.Email, "photo": p.Photo}
	case *UpdateUserPayload:
		return p
	default:
		return "[redacted]"
	}
}
