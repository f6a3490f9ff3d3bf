// Command import loads the development fixtures into the configured
// database, or removes every tour, review and user.
//
//	go run ./cmd/import --import
//	go run ./cmd/import --delete
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-tours/auth"
	"github.com/goliatone/go-tours/config"
	"github.com/goliatone/go-tours/devdata"
	"github.com/goliatone/go-tours/migrations"
	"github.com/goliatone/go-tours/persistence"
	"github.com/goliatone/go-tours/tours"
)

func main() {
	doImport := flag.Bool("import", false, "load the development data")
	doDelete := flag.Bool("delete", false, "delete all tours, reviews and users")
	envFile := flag.String("env", ".env", "env file to read before the environment")
	flag.Parse()

	if *doImport == *doDelete {
		fmt.Fprintln(os.Stderr, "usage: import --import | --delete")
		os.Exit(2)
	}

	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("import"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)

	if err := run(*doImport, *envFile, lgr); err != nil {
		lgr.GetLogger("import").Error("dev data task failed", "error", err)
		os.Exit(1)
	}
}

func run(load bool, envFile string, lgr *glog.BaseLogger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cfg, err := config.Load(ctx, lgr.GetLogger("config"), envFile)
	if err != nil {
		return err
	}

	db, err := persistence.Open(ctx, cfg.Database, lgr.GetLogger("persistence"))
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := migrations.Migrate(ctx, db); err != nil {
		return err
	}

	importer := devdata.NewImporter(auth.NewRepositoryManager(db), tours.NewRepositoryManager(db)).
		WithLogger(lgr.GetLogger("devdata"))

	if !load {
		if err := importer.Delete(ctx); err != nil {
			return err
		}
		lgr.GetLogger("import").Info("Data successfully deleted!")
		return nil
	}

	data, err := devdata.Load()
	if err != nil {
		return err
	}

	if err := importer.Import(ctx, data); err != nil {
		return err
	}

	lgr.GetLogger("import").Info("Data successfully loaded!")
	return nil
}
