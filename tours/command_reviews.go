package tours

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-tours/auth"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type CreateReviewMessage struct {
	// TourID comes from /tours/:tourId/reviews, Input.Tour is used otherwise
	TourID     string
	Author     *auth.User
	Input      ReviewInput
	OnResponse func(*Review)
}

func (e CreateReviewMessage) Type() string { return "review.create" }

type UpdateReviewMessage struct {
	ID         string
	Actor      *auth.User
	Patch      ReviewPatch
	OnResponse func(*Review)
}

func (e UpdateReviewMessage) Type() string { return "review.update" }

type DeleteReviewMessage struct {
	ID    string
	Actor *auth.User
}

func (e DeleteReviewMessage) Type() string { return "review.delete" }

// ReviewsHandler writes reviews and keeps the ratings of the reviewed
// tour in sync within the same transaction.
type ReviewsHandler struct {
	repo   RepositoryManager
	logger Logger
}

func NewReviewsHandler(repo RepositoryManager) *ReviewsHandler {
	return &ReviewsHandler{
		repo:   repo,
		logger: defLogger{},
	}
}

func (h *ReviewsHandler) WithLogger(logger Logger) *ReviewsHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *ReviewsHandler) Create(ctx context.Context, event CreateReviewMessage) error {
	if event.Author == nil {
		return auth.ErrUnauthenticated.Clone()
	}

	tourRef := event.TourID
	if tourRef == "" {
		tourRef = event.Input.Tour
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var created *Review
	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		tour, err := h.repo.Tours().FindByIDTx(ctx, tx, tourRef)
		if err != nil {
			return err
		}

		created, err = h.repo.Reviews().AddTx(ctx, tx, &Review{
			Review: event.Input.Review,
			Rating: event.Input.Rating,
			TourID: tour.ID,
			// the author is always the session user
			UserID: event.Author.ID,
		})
		if err != nil {
			return err
		}

		return CalcAverageRatings(ctx, h.repo, tx, tour.ID)
	})
	if err != nil {
		return h.fail(err, "failed to create review")
	}

	h.logger.Debug("review created", "review_id", created.ID.String(), "tour_id", created.TourID.String())

	if event.OnResponse != nil {
		event.OnResponse(created)
	}
	return nil
}

func (h *ReviewsHandler) Update(ctx context.Context, event UpdateReviewMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var updated *Review
	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := h.authorize(ctx, tx, event.ID, event.Actor); err != nil {
			return err
		}

		var err error
		updated, err = h.repo.Reviews().ModifyTx(ctx, tx, event.ID, event.Patch)
		if err != nil {
			return err
		}

		return CalcAverageRatings(ctx, h.repo, tx, updated.TourID)
	})
	if err != nil {
		return h.fail(err, "failed to update review")
	}

	if event.OnResponse != nil {
		event.OnResponse(updated)
	}
	return nil
}

func (h *ReviewsHandler) Delete(ctx context.Context, event DeleteReviewMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := h.authorize(ctx, tx, event.ID, event.Actor); err != nil {
			return err
		}

		removed, err := h.repo.Reviews().RemoveByIDTx(ctx, tx, event.ID)
		if err != nil {
			return err
		}

		return CalcAverageRatings(ctx, h.repo, tx, removed.TourID)
	})
	if err != nil {
		return h.fail(err, "failed to delete review")
	}
	return nil
}

// authorize lets admins edit any review and users only their own
func (h *ReviewsHandler) authorize(ctx context.Context, tx bun.IDB, id string, actor *auth.User) error {
	if actor == nil {
		return auth.ErrUnauthenticated.Clone()
	}

	if actor.Role == auth.RoleAdmin {
		return nil
	}

	review, err := h.repo.Reviews().FindByIDTx(ctx, tx, id)
	if err != nil {
		return err
	}

	if review.UserID != actor.ID {
		return auth.ErrForbidden.Clone().WithMetadata(map[string]any{"review_id": id})
	}
	return nil
}

func (h *ReviewsHandler) fail(err error, msg string) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	h.logger.Error(msg, "error", err)
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}

// tourIDFromRef parses a tour reference, used by the nested routes
func tourIDFromRef(ref string) (*uuid.UUID, error) {
	if ref == "" {
		return nil, nil
	}
	id, err := uuid.Parse(ref)
	if err != nil {
		return nil, ErrNotFound.Clone().WithMetadata(map[string]any{"id": ref})
	}
	return &id, nil
}
