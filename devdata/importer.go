package devdata

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-tours/auth"
	"github.com/goliatone/go-tours/tours"
	"github.com/google/uuid"
)

// Importer loads a Dataset into the database or wipes it
type Importer struct {
	users   auth.RepositoryManager
	repo    tours.RepositoryManager
	reviews *tours.ReviewsHandler
	logger  auth.Logger
	now     auth.Clock
}

func NewImporter(users auth.RepositoryManager, repo tours.RepositoryManager) *Importer {
	return &Importer{
		users:   users,
		repo:    repo,
		reviews: tours.NewReviewsHandler(repo),
		logger:  defLogger{},
		now:     time.Now,
	}
}

func (i *Importer) WithLogger(logger auth.Logger) *Importer {
	if logger == nil {
		logger = defLogger{}
	}
	i.logger = logger
	i.reviews.WithLogger(logger)
	return i
}

// Import stores tours first, then users and finally reviews. Each review
// recomputes the ratings of its tour.
func (i *Importer) Import(ctx context.Context, data *Dataset) error {
	if data == nil {
		return errors.New("missing dataset", errors.CategoryBadInput)
	}

	for _, tour := range data.Tours {
		if _, err := i.repo.Tours().Add(ctx, tour); err != nil {
			return errors.Wrap(err, errors.CategoryOperation, "failed to import tour").
				WithMetadata(map[string]any{"name": tour.Name})
		}
	}
	i.logger.Info("tours imported", "count", len(data.Tours))

	authors := make(map[uuid.UUID]*auth.User, len(data.Users))
	for _, fixture := range data.Users {
		user, err := i.importUser(ctx, fixture)
		if err != nil {
			return err
		}
		authors[user.ID] = user
	}
	i.logger.Info("users imported", "count", len(data.Users))

	for idx, fixture := range data.Reviews {
		author, ok := authors[fixture.User]
		if !ok {
			return errors.New("review references an unknown user", errors.CategoryBadInput).
				WithMetadata(map[string]any{"index": idx, "user": fixture.User.String()})
		}

		err := i.reviews.Create(ctx, tours.CreateReviewMessage{
			TourID: fixture.Tour.String(),
			Author: author,
			Input: tours.ReviewInput{
				Review: fixture.Review,
				Rating: fixture.Rating,
			},
		})
		if err != nil {
			return errors.Wrap(err, errors.CategoryOperation, "failed to import review").
				WithMetadata(map[string]any{"index": idx})
		}
	}
	i.logger.Info("reviews imported", "count", len(data.Reviews))

	return nil
}

func (i *Importer) importUser(ctx context.Context, fixture User) (*auth.User, error) {
	user := &auth.User{
		Name:  fixture.Name,
		Email: fixture.Email,
		Role:  fixture.Role,
		Photo: fixture.Photo,
	}

	// hash while the record is still new so no password change is recorded
	if err := auth.PrepareForSave(user, fixture.Password, i.now()); err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to hash fixture password").
			WithMetadata(map[string]any{"email": fixture.Email})
	}
	user.ID = fixture.ID

	created, err := i.users.Users().Register(ctx, user)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to import user").
			WithMetadata(map[string]any{"email": fixture.Email})
	}
	return created, nil
}

// Delete removes every review, tour and user, in that order
func (i *Importer) Delete(ctx context.Context) error {
	if err := i.repo.Reviews().RemoveAll(ctx); err != nil {
		return err
	}

	if err := i.repo.Tours().RemoveAll(ctx); err != nil {
		return err
	}

	if err := i.users.Users().RemoveAll(ctx); err != nil {
		return err
	}

	i.logger.Info("dev data deleted")
	return nil
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) { d.print("ERR", msg, args) }
func (d defLogger) Warn(msg string, args ...any)  { d.print("WRN", msg, args) }
func (d defLogger) Info(msg string, args ...any)  { d.print("INF", msg, args) }
func (d defLogger) Debug(msg string, args ...any) { d.print("DBG", msg, args) }

func (defLogger) print(level, msg string, args []any) {
	fmt.Println(append([]any{"[" + level + "] DEVDATA", msg}, args...)...)
}
