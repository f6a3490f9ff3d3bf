package devdata_test

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	"github.com/goliatone/go-tours/auth"
	"github.com/goliatone/go-tours/devdata"
	"github.com/goliatone/go-tours/migrations"
	"github.com/goliatone/go-tours/tours"
	"github.com/stretchr/testify/assert"
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

func TestLoad_EmbeddedFixtures(t *testing.T) {
	data, err := devdata.Load()
	require.NoError(t, err)

	assert.Len(t, data.Tours, 5)
	assert.Len(t, data.Users, 7)
	assert.Len(t, data.Reviews, 8)

	for _, tour := range data.Tours {
		assert.Nil(t, tour.Validate(), tour.Name)
	}
}

func TestLoadFS_BadJSON(t *testing.T) {
	fsys := fstest.MapFS{
		"tours.json":   {Data: []byte(`[{"name": 12}]`)},
		"users.json":   {Data: []byte(`[]`)},
		"reviews.json": {Data: []byte(`[]`)},
	}

	_, err := devdata.LoadFS(fsys)
	require.Error(t, err)

	_, err = devdata.LoadFS(fstest.MapFS{})
	require.Error(t, err)
}

func TestImporter_ImportAndDelete(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := auth.NewRepositoryManager(db)
	repo := tours.NewRepositoryManager(db)

	data, err := devdata.Load()
	require.NoError(t, err)

	importer := devdata.NewImporter(users, repo).WithLogger(quietLogger{})
	require.NoError(t, importer.Import(ctx, data))

	forest, err := repo.Tours().FindByID(ctx, "5c88fa8c-f4af-4da3-9709-c29550000001")
	require.NoError(t, err)
	assert.Equal(t, 3, forest.RatingsQty)
	assert.Equal(t, 4.7, forest.RatingsAverage)

	admin, err := users.Users().GetActiveByEmail(ctx, "admin@natours.io")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, admin.Role)
	assert.True(t, admin.CorrectPassword("test1234"))
	assert.Nil(t, admin.PasswordChangedAt)

	require.NoError(t, importer.Delete(ctx))

	found, err := repo.Tours().Search(ctx, tours.Features{Page: 1, Limit: 100})
	require.NoError(t, err)
	assert.Empty(t, found)

	reviews, err := repo.Reviews().Find(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, reviews)

	remaining, err := users.Users().ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestImporter_UnknownReviewAuthor(t *testing.T) {
	db := newTestDB(t)
	importer := devdata.NewImporter(auth.NewRepositoryManager(db), tours.NewRepositoryManager(db)).
		WithLogger(quietLogger{})

	data, err := devdata.Load()
	require.NoError(t, err)
	data.Tours = data.Tours[:1]
	data.Users = nil
	data.Reviews = data.Reviews[:1]

	err = importer.Import(context.Background(), data)
	require.Error(t, err)
}
