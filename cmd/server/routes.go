package main

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-tours/auth"
	"github.com/goliatone/go-tours/tours"
)

// bodyLimit caps JSON request bodies
const bodyLimit = 100 * 1024

func WithHTTPServer(app *App) {
	cfg := app.config

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		f := router.DefaultFiberOptions(fiber.New(fiber.Config{
			AppName:       "natours",
			BodyLimit:     bodyLimit,
			StrictRouting: false,
		}))

		f.Use(recover.New())
		f.Use(helmet.New())

		if !cfg.IsProduction() {
			f.Use(logger.New())
		}

		f.Use("/api", limiter.New(limiter.Config{
			Max:          cfg.RateLimit.Max,
			Expiration:   cfg.RateLimit.Window,
			LimitReached: rateLimited,
		}))

		return f
	})

	app.SetHTTPServer(srv)
}

func (a *App) SetHTTPServer(srv router.Server[*fiber.App]) {
	a.srv = srv
}

func WithRoutes(app *App) {
	cfg := app.config.Auth

	tokens := auth.NewTokenService(cfg).WithLogger(app.GetLogger("auth:tokens"))
	resolver := auth.NewSessionResolver(tokens, app.users.Users(), cfg).
		WithLogger(app.GetLogger("auth:session"))

	app.httpAuth = auth.NewHTTPAuthenticator(resolver, cfg).
		WithLogger(app.GetLogger("auth:http"))

	audit := auditSink(app.GetLogger("audit"))

	auther := auth.NewAuthenticator(app.users.Users(), tokens).
		WithLogger(app.GetLogger("auth:login")).
		WithActivitySink(audit)

	users := auth.NewController(app.users, auther, app.httpAuth, app.notifier, cfg,
		auth.WithControllerLogger(app.GetLogger("auth:ctrl")),
		auth.WithControllerActivitySink(audit),
		auth.WithControllerDebug(!app.config.IsProduction()),
	)

	catalog := tours.NewController(app.tours, app.httpAuth,
		tours.WithControllerLogger(app.GetLogger("tours")),
	)

	r := app.srv.Router()
	users.RegisterRoutes(r.Group("/api/v1/users"))
	catalog.RegisterTourRoutes(r.Group("/api/v1/tours"))
	catalog.RegisterReviewRoutes(r.Group("/api/v1/reviews"))

	// registered last so every known route wins
	r.Get("/*", notFound)
	r.Post("/*", notFound)
	r.Patch("/*", notFound)
	r.Delete("/*", notFound)
}

// auditSink writes account activity to the log
func auditSink(log auth.Logger) auth.ActivitySink {
	return auth.ActivitySinkFunc(func(_ context.Context, event auth.ActivityEvent) error {
		log.Info(string(event.EventType),
			"user_id", event.UserID,
			"at", event.OccurredAt,
			"meta", event.Metadata,
		)
		return nil
	})
}

func notFound(ctx router.Context) error {
	err := errors.New(fmt.Sprintf("Can't find %s on this server!", ctx.OriginalURL()), errors.CategoryNotFound).
		WithCode(errors.CodeNotFound).
		WithTextCode(auth.TextCodeNotFound)
	return auth.WriteError(ctx, err)
}

func rateLimited(c *fiber.Ctx) error {
	err := auth.ErrRateLimited
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"status":  "fail",
		"message": err.Message,
		"code":    err.TextCode,
	})
}
