package tours_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/goliatone/go-tours/auth"
	"github.com/goliatone/go-tours/migrations"
	"github.com/goliatone/go-tours/tours"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type quietLogger struct{}

func (quietLogger) Debug(string, ...any) {}
func (quietLogger) Info(string, ...any)  {}
func (quietLogger) Warn(string, ...any)  {}
func (quietLogger) Error(string, ...any) {}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	_, err = migrations.Migrate(context.Background(), db)
	require.NoError(t, err)

	return db
}

type fixture struct {
	db    *bun.DB
	repo  tours.RepositoryManager
	users auth.RepositoryManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	return &fixture{
		db:    db,
		repo:  tours.NewRepositoryManager(db),
		users: auth.NewRepositoryManager(db),
	}
}

// addUser stores a user directly, the password hash is irrelevant here
func (f *fixture) addUser(t *testing.T, name string, role auth.Role) *auth.User {
	t.Helper()
	user, err := f.users.Users().Register(context.Background(), &auth.User{
		Name:         name,
		Email:        fmt.Sprintf("%s@natours.io", name),
		Role:         role,
		PasswordHash: "not-a-real-hash",
		Active:       true,
	})
	require.NoError(t, err)
	return user
}

type tourOpt func(*tours.Tour)

func withRating(avg float64) tourOpt {
	return func(t *tours.Tour) { t.RatingsAverage = avg }
}

func withDifficulty(d tours.Difficulty) tourOpt {
	return func(t *tours.Tour) { t.Difficulty = d }
}

func withStart(lat, lng float64) tourOpt {
	return func(t *tours.Tour) {
		p := tours.NewPoint(lat, lng)
		t.StartLocation = &p
	}
}

func withDates(dates ...string) tourOpt {
	return func(t *tours.Tour) {
		for _, d := range dates {
			parsed, err := time.Parse("2006-01-02", d)
			if err != nil {
				panic(err)
			}
			t.StartDates = append(t.StartDates, parsed)
		}
	}
}

func secret() tourOpt {
	return func(t *tours.Tour) { t.SecretTour = true }
}

func (f *fixture) addTour(t *testing.T, name string, price float64, opts ...tourOpt) *tours.Tour {
	t.Helper()

	tour := &tours.Tour{
		Name:         name,
		Duration:     7,
		MaxGroupSize: 10,
		Difficulty:   tours.DifficultyEasy,
		Price:        price,
		Summary:      "A tour used in tests",
		ImageCover:   "tour-cover.jpg",
	}
	for _, opt := range opts {
		opt(tour)
	}

	created, err := f.repo.Tours().Add(context.Background(), tour)
	require.NoError(t, err)
	return created
}
