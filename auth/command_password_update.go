package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type UpdatePasswordMessage struct {
	UserID     string
	Payload    UpdatePasswordPayload
	OnResponse func(resp *SessionResponse)
}

func (e UpdatePasswordMessage) Type() string { return "user.password.update" }

// UpdatePasswordHandler changes the password of a logged in user after
// checking the current one. Tokens signed before the change stop working.
type UpdatePasswordHandler struct {
	repo     RepositoryManager
	tokens   *TokenService
	now      Clock
	logger   Logger
	activity ActivitySink
}

func NewUpdatePasswordHandler(repo RepositoryManager, tokens *TokenService) *UpdatePasswordHandler {
	return &UpdatePasswordHandler{
		repo:     repo,
		tokens:   tokens,
		now:      time.Now,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
}

func (h *UpdatePasswordHandler) WithLogger(logger Logger) *UpdatePasswordHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *UpdatePasswordHandler) WithActivitySink(sink ActivitySink) *UpdatePasswordHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *UpdatePasswordHandler) WithClock(now Clock) *UpdatePasswordHandler {
	h.now = normalizeClock(now)
	return h
}

func (h *UpdatePasswordHandler) Execute(ctx context.Context, event UpdatePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during password update")
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdatePasswordHandler) execute(ctx context.Context, event UpdatePasswordMessage) error {
	if verr := event.Payload.Validate(); verr != nil {
		return verr
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	now := h.now()

	var user *User
	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		// the session copy does not carry the hash we need to compare against
		user, err = h.repo.Users().GetActiveByIDTx(ctx, tx, event.UserID)
		if err != nil {
			if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
				return ErrUserGone.Clone()
			}
			return err
		}

		if !user.CorrectPassword(event.Payload.PasswordCurrent) {
			return ErrIncorrectPassword.Clone()
		}

		if err := PrepareForSave(user, event.Payload.Password, now); err != nil {
			return err
		}

		return h.repo.Users().SavePasswordTx(ctx, tx, user)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password")
	}

	token, err := h.tokens.Issue(user.ID.String())
	if err != nil {
		return err
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType:  ActivityEventPasswordChanged,
		UserID:     user.ID.String(),
		OccurredAt: now,
	})

	if event.OnResponse != nil {
		event.OnResponse(&SessionResponse{User: user, Token: token})
	}

	return nil
}
