// Package persistence opens the bun database for the configured driver.
package persistence

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-tours/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	pingTimeout = 8 * time.Second
)

// Logger is satisfied by glog.Logger
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

// Open connects to the database and pings it. An unreachable database
// is an error, the caller decides whether to exit.
func Open(ctx context.Context, cfg config.Database, logger Logger) (*bun.DB, error) {
	var (
		db  *bun.DB
		err error
	)

	switch strings.ToLower(cfg.Driver) {
	case DriverSQLite, "":
		db, err = openSQLite(cfg.DSN)
	case DriverPostgres, "postgresql", "pgx":
		db, err = openPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported database driver", errors.CategoryValidation).
			WithMetadata(map[string]any{"driver": cfg.Driver})
	}
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.CategoryOperation, "database is unreachable").
			WithMetadata(map[string]any{"driver": cfg.Driver})
	}

	if cfg.Debug && logger != nil {
		db.AddQueryHook(queryLogger{logger: logger})
	}

	if logger != nil {
		logger.Info("database connected", "driver", cfg.Driver)
	}

	return db, nil
}

func openSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to open sqlite database")
	}
	// sqlite allows one writer
	sqldb.SetMaxOpenConns(1)

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

func openPostgres(dsn string) (*bun.DB, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid postgres DSN")
	}

	sqldb := stdlib.OpenDB(*cfg)
	sqldb.SetMaxOpenConns(10)
	sqldb.SetMaxIdleConns(10)
	sqldb.SetConnMaxLifetime(30 * time.Minute)

	return bun.NewDB(sqldb, pgdialect.New()), nil
}

type queryLogger struct {
	logger Logger
}

func (h queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h queryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	args := []any{"query", event.Query, "duration", time.Since(event.StartTime).String()}
	if event.Err != nil && event.Err != sql.ErrNoRows {
		args = append(args, "error", event.Err)
	}
	h.logger.Debug("sql", args...)
}
