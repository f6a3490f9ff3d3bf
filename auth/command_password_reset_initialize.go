package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// ResetPasswordPath is the route prefix embedded in reset emails
const ResetPasswordPath = "/api/v1/users/resetPassword/"

type InitializePasswordResetMessage struct {
	Email string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset.request" }

// InitializePasswordResetHandler stores a reset token digest for the
// account and mails the plaintext token. Unknown emails succeed silently
// so the endpoint does not reveal which accounts exist.
type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	notifier Notifier
	baseURL  string
	ttl      time.Duration
	now      Clock
	logger   Logger
	activity ActivitySink
}

func NewInitializePasswordResetHandler(repo RepositoryManager, notifier Notifier, cfg Config) *InitializePasswordResetHandler {
	ttl := cfg.GetResetTokenTTL()
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}

	return &InitializePasswordResetHandler{
		repo:     repo,
		notifier: notifier,
		baseURL:  strings.TrimRight(cfg.GetBaseURL(), "/"),
		ttl:      ttl,
		now:      time.Now,
		logger:   defLogger{},
		activity: noopActivitySink{},
	}
}

func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *InitializePasswordResetHandler) WithClock(now Clock) *InitializePasswordResetHandler {
	h.now = normalizeClock(now)
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	if verr := (ForgotPasswordPayload{Email: event.Email}).Validate(); verr != nil {
		return verr
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetActiveByEmail(ctx, event.Email)
	if err != nil {
		if repository.IsRecordNotFound(err) || goerrors.IsNotFound(err) {
			h.logger.Debug("password reset requested for unknown email")
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
	}

	plain, digest, err := NewResetToken()
	if err != nil {
		return err
	}

	// a newer request overwrites any pending token
	user.SetResetToken(digest, h.now(), h.ttl)
	if err := h.repo.Users().SaveResetToken(ctx, user); err != nil {
		return err
	}

	resetURL := h.baseURL + ResetPasswordPath + plain

	if err := h.notifier.SendPasswordReset(ctx, user, resetURL); err != nil {
		h.logger.Error("failed to send password reset email", "user_id", user.ID.String(), "error", err)

		user.ClearResetToken()
		if rerr := h.repo.Users().SaveResetToken(ctx, user); rerr != nil {
			h.logger.Error("failed to roll back password reset token", "user_id", user.ID.String(), "error", rerr)
		}

		return goerrors.Wrap(err, ErrDeliveryFailed.Category, ErrDeliveryFailed.Message).
			WithCode(ErrDeliveryFailed.Code).
			WithTextCode(ErrDeliveryFailed.TextCode)
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType:  ActivityEventPasswordResetRequested,
		UserID:     user.ID.String(),
		OccurredAt: h.now(),
		Metadata: map[string]any{
			"expires_at": user.PasswordResetExpires,
		},
	})

	return nil
}
