package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// SessionResponse is returned by every command that logs the user in
type SessionResponse struct {
	User  *User
	Token string
}

type RegisterUserMessage struct {
	Payload    SignupPayload
	OnResponse func(resp *SessionResponse)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// RegisterUserHandler creates a user, signs a session token and sends
// the welcome email.
type RegisterUserHandler struct {
	repo     RepositoryManager
	tokens   *TokenService
	notifier Notifier
	baseURL  string
	now      Clock
	logger   Logger
	activity ActivitySink
}

func NewRegisterUserHandler(repo RepositoryManager, tokens *TokenService, notifier Notifier, baseURL string) *RegisterUserHandler {
	return &RegisterUserHandler{
		repo:     repo,
		tokens:   tokens,
		notifier: notifier,
		baseURL:  strings.TrimRight(baseURL, "/"),
		now:      time.Now,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
}

func (h *RegisterUserHandler) WithLogger(logger Logger) *RegisterUserHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *RegisterUserHandler) WithActivitySink(sink ActivitySink) *RegisterUserHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *RegisterUserHandler) WithClock(now Clock) *RegisterUserHandler {
	h.now = normalizeClock(now)
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during user registration")
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	if verr := event.Payload.Validate(); verr != nil {
		return verr
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user := &User{
		Name:  strings.TrimSpace(event.Payload.Name),
		Email: event.Payload.Email,
		Role:  RoleUser,
	}

	if err := PrepareForSave(user, event.Payload.Password, h.now()); err != nil {
		return err
	}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().RegisterTx(ctx, tx, user)
		return err
	})
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to register user")
	}

	token, err := h.tokens.Issue(user.ID.String())
	if err != nil {
		return err
	}

	// The account exists at this point, a failed welcome email only gets logged.
	if err := h.notifier.SendWelcome(ctx, user, h.baseURL+"/me"); err != nil {
		h.logger.Error("failed to send welcome email", "user_id", user.ID.String(), "error", err)
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType:  ActivityEventSignup,
		UserID:     user.ID.String(),
		OccurredAt: h.now(),
	})

	if event.OnResponse != nil {
		event.OnResponse(&SessionResponse{User: user, Token: token})
	}

	return nil
}
