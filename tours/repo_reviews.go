package tours

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Reviews interface {
	Find(ctx context.Context, tourID *uuid.UUID) ([]*Review, error)
	FindByID(ctx context.Context, id string) (*Review, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id string) (*Review, error)
	AddTx(ctx context.Context, tx bun.IDB, review *Review) (*Review, error)
	ModifyTx(ctx context.Context, tx bun.IDB, id string, patch ReviewPatch) (*Review, error)
	RemoveByIDTx(ctx context.Context, tx bun.IDB, id string) (*Review, error)
	RemoveAll(ctx context.Context) error
	RatingsTx(ctx context.Context, tx bun.IDB, tourID uuid.UUID) (quantity int, average float64, err error)
}

type reviews struct {
	store repository.Repository[*Review]
	db    *bun.DB
}

func NewReviewsRepository(db *bun.DB) Reviews {
	store := repository.NewRepository[*Review](db, repository.ModelHandlers[*Review]{
		NewRecord: func() *Review { return &Review{} },
		GetID: func(r *Review) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *Review, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
	})

	return &reviews{store: store, db: db}
}

func withAuthor(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Relation("Author")
}

func (r *reviews) Find(ctx context.Context, tourID *uuid.UUID) ([]*Review, error) {
	records := []*Review{}
	q := withAuthor(r.db.NewSelect().Model(&records))
	if tourID != nil {
		q = q.Where("?TableAlias.tour_id = ?", *tourID)
	}

	if err := q.OrderExpr("?TableAlias.created_at ASC").Scan(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to list reviews")
	}
	return records, nil
}

func (r *reviews) FindByID(ctx context.Context, id string) (*Review, error) {
	return r.FindByIDTx(ctx, r.db, id)
}

func (r *reviews) FindByIDTx(ctx context.Context, tx bun.IDB, id string) (*Review, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, ErrNotFound.Clone().WithMetadata(map[string]any{"id": id})
	}

	record := &Review{}
	err = withAuthor(tx.NewSelect().Model(record)).
		Where("?TableAlias.id = ?", uid).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
			return nil, ErrNotFound.Clone().WithMetadata(map[string]any{"id": id})
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to get review")
	}
	return record, nil
}

// AddTx inserts a review. A user reviews a tour only once.
func (r *reviews) AddTx(ctx context.Context, tx bun.IDB, review *Review) (*Review, error) {
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}

	if verr := review.Validate(); verr != nil {
		return nil, verr
	}

	exists, err := tx.NewSelect().
		Model((*Review)(nil)).
		Where("?TableAlias.tour_id = ?", review.TourID).
		Where("?TableAlias.user_id = ?", review.UserID).
		Exists(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to check existing review")
	}
	if exists {
		return nil, ErrDuplicateReview.Clone().WithMetadata(map[string]any{
			"tour": review.TourID.String(),
			"user": review.UserID.String(),
		})
	}

	now := time.Now()
	review.CreatedAt = &now

	created, err := r.store.CreateTx(ctx, tx, review)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create review")
	}
	return created, nil
}

func (r *reviews) ModifyTx(ctx context.Context, tx bun.IDB, id string, patch ReviewPatch) (*Review, error) {
	review, err := r.FindByIDTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	patch.Apply(review)
	if verr := review.Validate(); verr != nil {
		return nil, verr
	}

	_, err = tx.NewUpdate().
		Model(review).
		Column("review", "rating").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to update review")
	}
	return review, nil
}

// RemoveByIDTx deletes the review and returns it so the caller can
// refresh the ratings of its tour.
func (r *reviews) RemoveByIDTx(ctx context.Context, tx bun.IDB, id string) (*Review, error) {
	review, err := r.FindByIDTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if _, err := tx.NewDelete().Model(review).WherePK().Exec(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to delete review")
	}
	return review, nil
}

func (r *reviews) RemoveAll(ctx context.Context) error {
	if _, err := r.db.NewDelete().Model((*Review)(nil)).Where("1 = 1").Exec(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to delete reviews")
	}
	return nil
}

func (r *reviews) RatingsTx(ctx context.Context, tx bun.IDB, tourID uuid.UUID) (int, float64, error) {
	var row struct {
		Quantity int             `bun:"quantity"`
		Average  sql.NullFloat64 `bun:"average"`
	}

	err := tx.NewSelect().
		Model((*Review)(nil)).
		ColumnExpr("COUNT(*) AS quantity").
		ColumnExpr("AVG(?TableAlias.rating) AS average").
		Where("?TableAlias.tour_id = ?", tourID).
		Scan(ctx, &row)
	if err != nil {
		return 0, 0, errors.Wrap(err, errors.CategoryInternal, "failed to aggregate ratings")
	}

	if row.Quantity == 0 || !row.Average.Valid {
		return 0, DefaultRatingsAverage, nil
	}
	return row.Quantity, row.Average.Float64, nil
}
