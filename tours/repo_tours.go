package tours

import (
	"context"
	"database/sql"
	stderrors "errors"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Tours stores tours. Secret tours are invisible to every finder.
type Tours interface {
	Search(ctx context.Context, features Features) ([]*Tour, error)
	FindByID(ctx context.Context, id string) (*Tour, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id string) (*Tour, error)
	Add(ctx context.Context, tour *Tour) (*Tour, error)
	Modify(ctx context.Context, id string, patch TourPatch) (*Tour, error)
	RemoveByID(ctx context.Context, id string) error
	RemoveAll(ctx context.Context) error

	Stats(ctx context.Context) ([]DifficultyStats, error)
	MonthlyPlan(ctx context.Context, year int) ([]MonthPlan, error)
	Within(ctx context.Context, centre Point, distance float64, unit Unit) ([]*Tour, error)
	Distances(ctx context.Context, from Point, unit Unit) ([]TourDistance, error)

	SetRatingsTx(ctx context.Context, tx bun.IDB, id uuid.UUID, quantity int, average float64) error
}

// DifficultyStats aggregates well rated tours by difficulty
type DifficultyStats struct {
	Difficulty string  `bun:"difficulty" json:"_id"`
	NumTours   int     `bun:"num_tours" json:"numTours"`
	NumRatings int     `bun:"num_ratings" json:"numRatings"`
	AvgRating  float64 `bun:"avg_rating" json:"avgRating"`
	AvgPrice   float64 `bun:"avg_price" json:"avgPrice"`
	MinPrice   float64 `bun:"min_price" json:"minPrice"`
	MaxPrice   float64 `bun:"max_price" json:"maxPrice"`
}

// MonthPlan lists the tours starting in a month
type MonthPlan struct {
	Month         int      `json:"month"`
	NumTourStarts int      `json:"numTourStarts"`
	Tours         []string `json:"tours"`
}

type TourDistance struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Distance float64   `json:"distance"`
}

const (
	// StatsMinRating tours below it are left out of Stats
	StatsMinRating = 4.5
	maxPlanMonths  = 12
)

type tours struct {
	store repository.Repository[*Tour]
	db    *bun.DB
}

func NewToursRepository(db *bun.DB) Tours {
	store := repository.NewRepository[*Tour](db, repository.ModelHandlers[*Tour]{
		NewRecord: func() *Tour { return &Tour{} },
		GetID: func(t *Tour) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *Tour, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "slug"
		},
	})

	return &tours{store: store, db: db}
}

func visible(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Where("?TableAlias.secret_tour = ?", false)
}

func (r *tours) Search(ctx context.Context, features Features) ([]*Tour, error) {
	records := []*Tour{}
	q := visible(r.db.NewSelect().Model(&records))
	if err := features.Apply(q).Scan(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to list tours")
	}
	return records, nil
}

func (r *tours) FindByID(ctx context.Context, id string) (*Tour, error) {
	return r.FindByIDTx(ctx, r.db, id)
}

func (r *tours) FindByIDTx(ctx context.Context, tx bun.IDB, id string) (*Tour, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, ErrNotFound.Clone().WithMetadata(map[string]any{"id": id})
	}

	record := &Tour{}
	err = visible(tx.NewSelect().Model(record)).
		Where("?TableAlias.id = ?", uid).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
			return nil, ErrNotFound.Clone().WithMetadata(map[string]any{"id": id})
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to get tour")
	}
	return record, nil
}

// Add validates and inserts a tour. Names are unique.
func (r *tours) Add(ctx context.Context, tour *Tour) (*Tour, error) {
	tour.prepareForSave()
	if verr := tour.Validate(); verr != nil {
		return nil, verr
	}

	if err := r.ensureUniqueName(ctx, r.db, tour); err != nil {
		return nil, err
	}

	now := time.Now()
	tour.CreatedAt = &now

	created, err := r.store.Create(ctx, tour)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create tour")
	}
	return created, nil
}

func (r *tours) Modify(ctx context.Context, id string, patch TourPatch) (*Tour, error) {
	var updated *Tour
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		tour, err := r.FindByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}

		patch.Apply(tour)
		tour.prepareForSave()
		if verr := tour.Validate(); verr != nil {
			return verr
		}

		if err := r.ensureUniqueName(ctx, tx, tour); err != nil {
			return err
		}

		if _, err := tx.NewUpdate().Model(tour).ExcludeColumn("created_at").WherePK().Exec(ctx); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to update tour")
		}

		updated = tour
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *tours) ensureUniqueName(ctx context.Context, tx bun.IDB, tour *Tour) error {
	taken, err := tx.NewSelect().
		Model((*Tour)(nil)).
		Where("?TableAlias.name = ?", tour.Name).
		Where("?TableAlias.id != ?", tour.ID).
		Exists(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to check tour name")
	}
	if taken {
		return ErrDuplicateTour.Clone().WithMetadata(map[string]any{"name": tour.Name})
	}
	return nil
}

func (r *tours) RemoveByID(ctx context.Context, id string) error {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return ErrNotFound.Clone().WithMetadata(map[string]any{"id": id})
	}

	res, err := r.db.NewDelete().
		Model((*Tour)(nil)).
		Where("id = ?", uid).
		Where("secret_tour = ?", false).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to delete tour")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound.Clone().WithMetadata(map[string]any{"id": id})
	}
	return nil
}

func (r *tours) RemoveAll(ctx context.Context) error {
	if _, err := r.db.NewDelete().Model((*Tour)(nil)).Where("1 = 1").Exec(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to delete tours")
	}
	return nil
}

func (r *tours) Stats(ctx context.Context) ([]DifficultyStats, error) {
	stats := []DifficultyStats{}
	err := visible(r.db.NewSelect().Model((*Tour)(nil))).
		ColumnExpr("UPPER(?TableAlias.difficulty) AS difficulty").
		ColumnExpr("COUNT(*) AS num_tours").
		ColumnExpr("SUM(?TableAlias.ratings_quantity) AS num_ratings").
		ColumnExpr("AVG(?TableAlias.ratings_average) AS avg_rating").
		ColumnExpr("AVG(?TableAlias.price) AS avg_price").
		ColumnExpr("MIN(?TableAlias.price) AS min_price").
		ColumnExpr("MAX(?TableAlias.price) AS max_price").
		Where("?TableAlias.ratings_average >= ?", StatsMinRating).
		GroupExpr("UPPER(?TableAlias.difficulty)").
		OrderExpr("avg_price ASC").
		Scan(ctx, &stats)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to aggregate tour stats")
	}
	return stats, nil
}

// MonthlyPlan groups the start dates falling in year by month. Start
// dates live in a JSON column so the grouping happens here rather than
// in SQL, keeping it portable across dialects.
func (r *tours) MonthlyPlan(ctx context.Context, year int) ([]MonthPlan, error) {
	records := []*Tour{}
	err := visible(r.db.NewSelect().Model(&records)).
		Column("id", "name", "start_dates").
		OrderExpr("?TableAlias.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load tour start dates")
	}

	byMonth := map[int]*MonthPlan{}
	for _, t := range records {
		for _, start := range t.StartDates {
			start = start.UTC()
			if start.Year() != year {
				continue
			}
			m := int(start.Month())
			plan, ok := byMonth[m]
			if !ok {
				plan = &MonthPlan{Month: m, Tours: []string{}}
				byMonth[m] = plan
			}
			plan.NumTourStarts++
			plan.Tours = append(plan.Tours, t.Name)
		}
	}

	plans := make([]MonthPlan, 0, len(byMonth))
	for _, p := range byMonth {
		plans = append(plans, *p)
	}

	sort.Slice(plans, func(i, j int) bool {
		if plans[i].NumTourStarts != plans[j].NumTourStarts {
			return plans[i].NumTourStarts > plans[j].NumTourStarts
		}
		return plans[i].Month < plans[j].Month
	})

	if len(plans) > maxPlanMonths {
		plans = plans[:maxPlanMonths]
	}
	return plans, nil
}

// Within returns the tours whose start location lies within distance,
// measured in unit, of centre.
func (r *tours) Within(ctx context.Context, centre Point, distance float64, unit Unit) ([]*Tour, error) {
	candidates, err := r.located(ctx)
	if err != nil {
		return nil, err
	}

	angle := distance / unit.EarthRadius()
	out := []*Tour{}
	for _, t := range candidates {
		if WithinRadius(centre, *t.StartLocation, angle) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Distances from the point to every tour start, nearest first
func (r *tours) Distances(ctx context.Context, from Point, unit Unit) ([]TourDistance, error) {
	candidates, err := r.located(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]TourDistance, 0, len(candidates))
	for _, t := range candidates {
		out = append(out, TourDistance{
			ID:       t.ID,
			Name:     t.Name,
			Distance: DistanceMetres(from, *t.StartLocation) * unit.Multiplier(),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Distance < out[j].Distance
	})
	return out, nil
}

func (r *tours) located(ctx context.Context) ([]*Tour, error) {
	records := []*Tour{}
	err := visible(r.db.NewSelect().Model(&records)).
		Where("?TableAlias.start_location IS NOT NULL").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load tour locations")
	}

	out := records[:0]
	for _, t := range records {
		if t.StartLocation != nil {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *tours) SetRatingsTx(ctx context.Context, tx bun.IDB, id uuid.UUID, quantity int, average float64) error {
	_, err := tx.NewUpdate().
		Model((*Tour)(nil)).
		Set("ratings_quantity = ?", quantity).
		Set("ratings_average = ?", RoundRating(average)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to update tour ratings")
	}
	return nil
}
