package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	Token      string `json:"token" doc:"Plaintext token from the reset email"`
	Payload    ResetPasswordPayload
	OnResponse func(resp *SessionResponse)
}

func (p FinalizePasswordResetMessage) Type() string { return "user.password_reset.finalize" }

// FinalizePasswordResetHandler exchanges a valid reset token for a new
// password and logs the user in. A token can be redeemed once.
type FinalizePasswordResetHandler struct {
	repo     RepositoryManager
	tokens   *TokenService
	now      Clock
	logger   Logger
	activity ActivitySink
}

func NewFinalizePasswordResetHandler(repo RepositoryManager, tokens *TokenService) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:     repo,
		tokens:   tokens,
		now:      time.Now,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
}

func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *FinalizePasswordResetHandler) WithClock(now Clock) *FinalizePasswordResetHandler {
	h.now = normalizeClock(now)
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	if event.Token == "" {
		return ErrInvalidOrExpired.Clone()
	}

	if verr := event.Payload.Validate(); verr != nil {
		return verr
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	digest := HashResetToken(event.Token)
	now := h.now()

	var user *User
	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = h.repo.Users().GetActiveByResetTokenTx(ctx, tx, digest, now)
		if err != nil {
			if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
				return ErrInvalidOrExpired.Clone()
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
		}

		if !user.ResetTokenValid(digest, now) {
			return ErrInvalidOrExpired.Clone()
		}

		if err := PrepareForSave(user, event.Payload.Password, now); err != nil {
			return err
		}
		user.ClearResetToken()

		return h.repo.Users().SavePasswordTx(ctx, tx, user)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	token, err := h.tokens.Issue(user.ID.String())
	if err != nil {
		return err
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType:  ActivityEventPasswordResetSuccess,
		UserID:     user.ID.String(),
		OccurredAt: now,
	})

	if event.OnResponse != nil {
		event.OnResponse(&SessionResponse{User: user, Token: token})
	}

	return nil
}
