package migrations_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/goliatone/go-tours/migrations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func TestMigrateCreatesSchema(t *testing.T) {
	ctx := context.Background()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	defer db.Close()

	group, err := migrations.Migrate(ctx, db)
	require.NoError(t, err)
	assert.False(t, group.IsZero())

	for _, table := range []string{"users", "tours", "reviews"} {
		var count int
		err := db.NewRaw("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(ctx, &count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, table)
	}

	group, err = migrations.Migrate(ctx, db)
	require.NoError(t, err)
	assert.True(t, group.IsZero())

	_, err = migrations.Rollback(ctx, db)
	require.NoError(t, err)
}
