package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-tours/auth"
	"github.com/goliatone/go-tours/config"
	"github.com/goliatone/go-tours/migrations"
	"github.com/goliatone/go-tours/notifier"
	"github.com/goliatone/go-tours/persistence"
	"github.com/goliatone/go-tours/tours"
	"github.com/uptrace/bun"
)

type App struct {
	config   *config.Config
	bunDB    *bun.DB
	users    auth.RepositoryManager
	tours    tours.RepositoryManager
	notifier auth.Notifier
	httpAuth *auth.RouteAuthenticator
	srv      router.Server[*fiber.App]
	logger   *glog.BaseLogger
}

func (a *App) GetLogger(name string) glog.Logger {
	return a.logger.GetLogger(name)
}

func main() {
	lgr := glog.NewLogger(
		glog.WithLoggerTypePretty(),
		glog.WithLevel(glog.Trace),
		glog.WithName("natours"),
		glog.WithAddSource(false),
		glog.WithRichErrorHandler(errors.ToSlogAttributes),
	)
	log := lgr.GetLogger("app")
	ctx := context.Background()

	cfg, err := config.Load(ctx, lgr.GetLogger("config"))
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if !cfg.IsProduction() {
		fmt.Println("============")
		fmt.Println(cfg.Dump())
		fmt.Println("============")
	}

	app := &App{
		config: cfg,
		logger: lgr,
	}

	if err := WithPersistence(ctx, app); err != nil {
		// let the supervisor restart us
		log.Error("database setup failed", "error", err)
		os.Exit(1)
	}
	defer app.bunDB.Close()

	if err := WithNotifier(app); err != nil {
		log.Error("email setup failed", "error", err)
		os.Exit(1)
	}

	WithHTTPServer(app)
	WithRoutes(app)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", addr, "env", cfg.Env)
		errCh <- app.srv.Serve(addr)
	}()

	select {
	case sig := <-exitSignal():
		log.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			log.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := app.srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

func WithPersistence(ctx context.Context, app *App) error {
	db, err := persistence.Open(ctx, app.config.Database, app.GetLogger("persistence"))
	if err != nil {
		return err
	}

	group, err := migrations.Migrate(ctx, db)
	if err != nil {
		_ = db.Close()
		return err
	}

	if group != nil && !group.IsZero() {
		app.GetLogger("persistence").Info("migrations applied", "group", group.String())
	}

	app.bunDB = db
	app.users = auth.NewRepositoryManager(db)
	app.tours = tours.NewRepositoryManager(db)

	if err := app.users.Validate(); err != nil {
		return err
	}
	return app.tours.Validate()
}

func WithNotifier(app *App) error {
	email := app.config.Email
	mailer, err := notifier.New(notifier.Options{
		Driver: email.Driver,
		From:   email.From,
		SMTP: notifier.SMTPConfig{
			Host:     email.Host,
			Port:     email.Port,
			Username: email.Username,
			Password: email.Password,
		},
		ResendAPIKey: email.ResendAPIKey,
	}, app.GetLogger("email"))
	if err != nil {
		return err
	}

	app.notifier = mailer
	return nil
}

func exitSignal() <-chan os.Signal {
	ch := make(chan os.Signal, 3)
	signal.Notify(ch,
		syscall.SIGINT,
		syscall.SIGQUIT,
		syscall.SIGTERM,
	)
	return ch
}
