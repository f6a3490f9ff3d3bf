package tours

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-tours/auth"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes the tour and review stores
type RepositoryManager interface {
	auth.Validator
	auth.TransactionManager
	Tours() Tours
	Reviews() Reviews
}

type mngr struct {
	db      *bun.DB
	tours   Tours
	reviews Reviews
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:      db,
		tours:   NewToursRepository(db),
		reviews: NewReviewsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("database should be initialized")
	}

	if m.tours == nil || m.reviews == nil {
		return errors.New("repositories tours and reviews should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Tours() Tours {
	return m.tours
}

func (m mngr) Reviews() Reviews {
	return m.reviews
}

// CalcAverageRatings recomputes the ratings quantity and average of a
// tour from its reviews. A tour without reviews goes back to 4.5.
func CalcAverageRatings(ctx context.Context, repo RepositoryManager, tx bun.IDB, tourID uuid.UUID) error {
	quantity, average, err := repo.Reviews().RatingsTx(ctx, tx, tourID)
	if err != nil {
		return err
	}
	return repo.Tours().SetRatingsTx(ctx, tx, tourID, quantity, average)
}
