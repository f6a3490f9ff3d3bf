package tours

import (
	"net/http"
	"strconv"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-tours/auth"
)

// Controller serves /tours and /reviews
type Controller struct {
	Logger  Logger
	Repo    RepositoryManager
	HTTP    *auth.RouteAuthenticator
	Reviews *ReviewsHandler
}

type ControllerOption func(*Controller) *Controller

func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) *Controller {
		c.Logger = normalizeLogger(logger)
		c.Reviews.WithLogger(c.Logger)
		return c
	}
}

func NewController(repo RepositoryManager, httpAuth *auth.RouteAuthenticator, opts ...ControllerOption) *Controller {
	if repo == nil {
		panic("Missing RepositoryManager in tours controller...")
	}

	if httpAuth == nil {
		panic("Missing authenticator in tours controller...")
	}

	c := &Controller{
		Logger:  defLogger{},
		Repo:    repo,
		HTTP:    httpAuth,
		Reviews: NewReviewsHandler(repo),
	}

	for _, opt := range opts {
		c = opt(c)
	}

	return c
}

// RegisterTourRoutes mounts the handlers, group is expected at /api/v1/tours
func (c *Controller) RegisterTourRoutes(group auth.RouteRegistrar) {
	protect := c.HTTP.Protect()
	staff := c.HTTP.RestrictTo(auth.RoleAdmin, auth.RoleLeadGuide)
	guides := c.HTTP.RestrictTo(auth.RoleAdmin, auth.RoleLeadGuide, auth.RoleGuide)

	group.Get("/top-5-cheap", c.TopCheap)
	group.Get("/tour-stats", c.TourStats)
	group.Get("/monthly-plan/:year", c.MonthlyPlan, protect, guides)
	group.Get("/tours-within/:distance/centre/:latlng/unit/:unit", c.ToursWithin)
	group.Get("/distances/:latlng/unit/:unit", c.Distances)

	group.Get("/", c.ListTours)
	group.Post("/", c.CreateTour, protect, staff)
	group.Get("/:id", c.GetTour)
	group.Patch("/:id", c.UpdateTour, protect, staff)
	group.Delete("/:id", c.DeleteTour, protect, staff)

	group.Get("/:tourId/reviews", c.ListReviews, protect)
	group.Post("/:tourId/reviews", c.CreateReview, protect, c.HTTP.RestrictTo(auth.RoleUser))
}

// RegisterReviewRoutes mounts the handlers, group is expected at /api/v1/reviews
func (c *Controller) RegisterReviewRoutes(group auth.RouteRegistrar) {
	protect := c.HTTP.Protect()

	group.Get("/", c.ListReviews, protect)
	group.Post("/", c.CreateReview, protect, c.HTTP.RestrictTo(auth.RoleUser))
	group.Get("/:id", c.GetReview, protect)
	group.Patch("/:id", c.UpdateReview, protect, c.HTTP.RestrictTo(auth.RoleUser, auth.RoleAdmin))
	group.Delete("/:id", c.DeleteReview, protect, c.HTTP.RestrictTo(auth.RoleUser, auth.RoleAdmin))
}

func (c *Controller) ListTours(ctx router.Context) error {
	features, err := ParseFeatures(ctx.Queries())
	if err != nil {
		return c.HTTP.ErrorHandler(ctx, err)
	}
	return c.sendTours(ctx, features)
}

func (c *Controller) TopCheap(ctx router.Context) error {
	return c.sendTours(ctx, TopCheapFeatures())
}

func (c *Controller) sendTours(ctx router.Context, features Features) error {
	records, err := c.Repo.Tours().Search(ctx.Context(), features)
	if err != nil {
		return c.HTTP.ErrorHandler(ctx, err)
	}

	docs, err := features.Project(records)
	if err != nil {
		return c.HTTP.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"status":  "success",
		"results": len(records),
		"data":    map[string]any{"data": docs},
	})
}

func (c *Controller) GetTour(ctx router.Context) error {
	tour, err := c.Repo.Tours().FindByID(ctx.Context(), ctx.Param("id"))
	if err != nil {
		return c.HTTP.ErrorHandler(ctx, err)
	}

	reviews, err := c.Repo.Reviews().Find(ctx.Context(), &tour.ID)
	if err != nil {
		return c.HTTP.ErrorHandler(ctx, err)
	}
	tour.Reviews = reviews

	return sendDoc(ctx, http.StatusOK, tour)
}

func (c *Controller) CreateTour(ctx router.Context) error {
	payload := new(TourInput)
	if err := c.bind(ctx, payload); err != nil {
		return c.HTTP.ErrorHandler(ctx, err)
	}

	tour, err := c.Repo.Tours().Add(ctx.Context(), payload.Tour())
	if err != nil {
		return c.HTTP.ErrorHandler(ctx, err)
	}

	return sendDoc(ctx, http.StatusCreated, tour)
}

func (c *Controller) UpdateTour(ctx router.Context) error {
	patch := new(TourPatch)
	if err := c.bind(ctx, patch); err != nil {
		return c.HTTP.ErrorHandler(ctx, err)
	}

	tour, err := c.Repo.Tours().Modify(ctx.Context(), ctx.Param("id"), *patch)
	if err != nil {
		return c.HTTP.ErrorHandler(ctx, err)
	}

	return sendDoc(ctx, http.StatusOK, tour)
}

func (c *Controller) DeleteTour(ctx router.Context) error {
	if err := c.Repo.Tours().RemoveByID(ctx.Context(), ctx.Param("id")); err != nil {
		return c.HTTP.ErrorHandler(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (c *Controller) TourStats(ctx router.Context) error {
	stats, err := c.Repo.Tours().Stats(ctx.Context())
	if err != nil {
		return c.HTTP.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"status": "success",
		"data":   map[string]any{"stats": stats},
	})
}

func (c *Controller) MonthlyPlan(ctx router.Context) error {
	year, err := strconv.Atoi(ctx.Param("year"))
	if err != nil || year < 1 {
		return c.HTTP.ErrorHandler(ctx, ErrInvalidYear.Clone())
	}

	plan, err := c.Repo.Tours().MonthlyPlan(ctx.Context(), year)
	if err != nil {
		return c.HTTP.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"status": "success",
		"data":   map[string]any{"plan": plan},
	})
}

// ToursWithin serves /tours-within/233/centre/34.111745,-118.113491/unit/mi
func (c *Controller) ToursWithin(ctx router.Context) error {
	centre, err := ParseLatLng(ctx.Param("latlng"))
	if err != nil {
		return c.HTTP.ErrorHandler(ctx, err)
	}

	distance, err := strconv.ParseFloat(ctx.Param("distance"), 64)
	if err != nil || distance < 0 {
		return c.HTTP.ErrorHandler(ctx, invalidQuery("distance must be a positive number", ctx.Param("distance")))
	}

	records, err := c.Repo.Tours().Within(ctx.Context(), centre, distance, ParseUnit(ctx.Param("unit")))
	if err != nil {
		return c.HTTP.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"status":  "success",
		"results": len(records),
		"data":    map[string]any{"data": records},
	})
}

func (c *Controller) Distances(ctx router.Context) error {
	from, err := ParseLatLng(ctx.Param("latlng"))
	if err != nil {
		return c.HTTP.ErrorHandler(ctx, err)
	}

	distances, err := c.Repo.Tours().Distances(ctx.Context(), from, ParseUnit(ctx.Param("unit")))
	if err != nil {
		return c.HTTP.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"status": "success",
		"data":   map[string]any{"data": distances},
	})
}

// ListReviews lists every review, or those of one tour on the nested route
func (c *Controller) ListReviews(ctx router.Context) error {
	tourID, err := tourIDFromRef(ctx.Param("tourId"))
	if err != nil {
		return c.HTTP.ErrorHandler(ctx, err)
	}

	records, err := c.Repo.Reviews().Find(ctx.Context(), tourID)
	if err != nil {
		return c.HTTP.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"status":  "success",
		"results": len(records),
		"data":    map[string]any{"data": records},
	})
}

func (c *Controller) GetReview(ctx router.Context) error {
	review, err := c.Repo.Reviews().FindByID(ctx.Context(), ctx.Param("id"))
	if err != nil {
		return c.HTTP.ErrorHandler(ctx, err)
	}
	return sendDoc(ctx, http.StatusOK, review)
}

func (c *Controller) CreateReview(ctx router.Context) error {
	user, ok := auth.CurrentUser(ctx)
	if !ok {
		return c.HTTP.ErrorHandler(ctx, auth.ErrUnauthenticated.Clone())
	}

	payload := new(ReviewInput)
	if err := c.bind(ctx, payload); err != nil {
		return c.HTTP.ErrorHandler(ctx, err)
	}

	var created *Review
	err := c.Reviews.Create(ctx.Context(), CreateReviewMessage{
		TourID: ctx.Param("tourId"),
		Author: user,
		Input:  *payload,
		OnResponse: func(r *Review) {
			created = r
		},
	})
	if err != nil {
		return c.HTTP.ErrorHandler(ctx, err)
	}

	return sendDoc(ctx, http.StatusCreated, created)
}

func (c *Controller) UpdateReview(ctx router.Context) error {
	user, ok := auth.CurrentUser(ctx)
	if !ok {
		return c.HTTP.ErrorHandler(ctx, auth.ErrUnauthenticated.Clone())
	}

	patch := new(ReviewPatch)
	if err := c.bind(ctx, patch); err != nil {
		return c.HTTP.ErrorHandler(ctx, err)
	}

	var updated *Review
	err := c.Reviews.Update(ctx.Context(), UpdateReviewMessage{
		ID:    ctx.Param("id"),
		Actor: user,
		Patch: *patch,
		OnResponse: func(r *Review) {
			updated = r
		},
	})
	if err != nil {
		return c.HTTP.ErrorHandler(ctx, err)
	}

	return sendDoc(ctx, http.StatusOK, updated)
}

func (c *Controller) DeleteReview(ctx router.Context) error {
	user, ok := auth.CurrentUser(ctx)
	if !ok {
		return c.HTTP.ErrorHandler(ctx, auth.ErrUnauthenticated.Clone())
	}

	err := c.Reviews.Delete(ctx.Context(), DeleteReviewMessage{
		ID:    ctx.Param("id"),
		Actor: user,
	})
	if err != nil {
		return c.HTTP.ErrorHandler(ctx, err)
	}

	return ctx.NoContent(http.StatusNoContent)
}

func (c *Controller) bind(ctx router.Context, payload any) error {
	if err := ctx.Bind(payload); err != nil {
		c.Logger.Debug("failed to parse request body", "error", err)
		return errors.Wrap(err, errors.CategoryBadInput, "Invalid request body").
			WithCode(errors.CodeBadRequest).
			WithTextCode(auth.TextCodeValidationFailed)
	}
	return nil
}

func sendDoc(ctx router.Context, status int, doc any) error {
	return ctx.JSON(status, map[string]any{
		"status": "success",
		"data":   map[string]any{"data": doc},
	})
}
