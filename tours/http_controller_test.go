package tours_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-tours/auth"
	"github.com/goliatone/go-tours/internal/routertest"
	"github.com/goliatone/go-tours/tours"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testAuthConfig struct{}

func (testAuthConfig) GetSigningKey() string              { return "tours-test-signing-key" }
func (testAuthConfig) GetIssuer() string                  { return "go-tours-test" }
func (testAuthConfig) GetTokenExpiration() time.Duration  { return time.Hour }
func (testAuthConfig) GetCookieExpiration() time.Duration { return time.Hour }
func (testAuthConfig) GetContextKey() string              { return "jwt" }
func (testAuthConfig) GetTokenLookup() string             { return "" }
func (testAuthConfig) GetAuthScheme() string              { return "Bearer" }
func (testAuthConfig) GetSecureCookies() bool             { return false }
func (testAuthConfig) GetResetTokenTTL() time.Duration    { return 10 * time.Minute }
func (testAuthConfig) GetBaseURL() string                 { return "" }

func newTestController(f *fixture) *tours.Controller {
	cfg := testAuthConfig{}
	tokens := auth.NewTokenService(cfg).WithLogger(quietLogger{})
	resolver := auth.NewSessionResolver(tokens, f.users.Users(), cfg).WithLogger(quietLogger{})
	httpAuth := auth.NewHTTPAuthenticator(resolver, cfg).WithLogger(quietLogger{})

	return tours.NewController(f.repo, httpAuth, tours.WithControllerLogger(quietLogger{}))
}

func captureJSON(ctx *routertest.MockContext, status int) *map[string]any {
	body := map[string]any{}
	ctx.On("JSON", status, mock.Anything).Run(func(args mock.Arguments) {
		body = args.Get(1).(map[string]any)
	}).Return(nil)
	return &body
}

func TestController_ListToursWithQuery(t *testing.T) {
	f := newFixture(t)
	f.addTour(t, "The Forest Hiker", 397)
	f.addTour(t, "The Sea Explorer", 497)
	f.addTour(t, "The Snow Adventurer", 997)
	controller := newTestController(f)

	ctx := routertest.NewMockContext()
	ctx.QueriesM["price[lte]"] = "500"
	ctx.QueriesM["fields"] = "name,price"
	ctx.QueriesM["sort"] = "price"
	ctx.On("Context").Return(context.Background())
	body := captureJSON(ctx, 200)

	require.NoError(t, controller.ListTours(ctx))
	assert.Equal(t, "success", (*body)["status"])
	assert.Equal(t, 2, (*body)["results"])

	docs := (*body)["data"].(map[string]any)["data"].([]map[string]any)
	assert.Equal(t, "The Forest Hiker", docs[0]["name"])
	assert.NotContains(t, docs[0], "summary")
}

func TestController_ListToursBadQuery(t *testing.T) {
	f := newFixture(t)
	controller := newTestController(f)

	ctx := routertest.NewMockContext()
	ctx.QueriesM["sort"] = "passwordHash"
	ctx.On("Context").Return(context.Background())
	body := captureJSON(ctx, 400)

	require.NoError(t, controller.ListTours(ctx))
	assert.Equal(t, "fail", (*body)["status"])
	assert.Equal(t, tours.TextCodeInvalidQuery, (*body)["code"])
}

func TestController_ToursWithinBadLatLng(t *testing.T) {
	f := newFixture(t)
	controller := newTestController(f)

	ctx := routertest.NewMockContext()
	ctx.ParamsM["distance"] = "200"
	ctx.ParamsM["latlng"] = "34.1"
	ctx.ParamsM["unit"] = "mi"
	ctx.On("Context").Return(context.Background())
	body := captureJSON(ctx, 400)

	require.NoError(t, controller.ToursWithin(ctx))
	assert.Equal(t, "Please provide latitude and longitude in the format lat,lng.", (*body)["message"])
}

func TestController_GetTourIncludesReviews(t *testing.T) {
	f := newFixture(t)
	tour := f.addTour(t, "The Forest Hiker", 397)
	alice := f.addUser(t, "alice", auth.RoleUser)
	createReview(t, tours.NewReviewsHandler(f.repo).WithLogger(quietLogger{}), tour, alice, 4)
	controller := newTestController(f)

	ctx := routertest.NewMockContext()
	ctx.ParamsM["id"] = tour.ID.String()
	ctx.On("Context").Return(context.Background())
	body := captureJSON(ctx, 200)

	require.NoError(t, controller.GetTour(ctx))
	doc := (*body)["data"].(map[string]any)["data"].(*tours.Tour)
	require.Len(t, doc.Reviews, 1)
	assert.Equal(t, 4.0, doc.RatingsAverage)
}

func TestController_GetTourNotFound(t *testing.T) {
	f := newFixture(t)
	controller := newTestController(f)

	ctx := routertest.NewMockContext()
	ctx.ParamsM["id"] = "5c88fa8cf4afda39709c2955"
	ctx.On("Context").Return(context.Background())
	body := captureJSON(ctx, 404)

	require.NoError(t, controller.GetTour(ctx))
	assert.Equal(t, "No document found with that ID", (*body)["message"])
}

func TestController_CreateReviewOnNestedRoute(t *testing.T) {
	f := newFixture(t)
	tour := f.addTour(t, "The Forest Hiker", 397)
	alice := f.addUser(t, "alice", auth.RoleUser)
	controller := newTestController(f)

	ctx := routertest.NewMockContext()
	ctx.ParamsM["tourId"] = tour.ID.String()
	ctx.On("Context").Return(auth.WithContext(context.Background(), alice))
	ctx.On("Bind", mock.Anything).Run(func(args mock.Arguments) {
		*(args.Get(0).(*tours.ReviewInput)) = tours.ReviewInput{Review: "Amazing", Rating: 5}
	}).Return(nil)
	body := captureJSON(ctx, 201)

	require.NoError(t, controller.CreateReview(ctx))
	review := (*body)["data"].(map[string]any)["data"].(*tours.Review)
	assert.Equal(t, tour.ID, review.TourID)
	assert.Equal(t, alice.ID, review.UserID)
}

func TestController_MonthlyPlanBadYear(t *testing.T) {
	f := newFixture(t)
	controller := newTestController(f)

	ctx := routertest.NewMockContext()
	ctx.ParamsM["year"] = "next"
	ctx.On("Context").Return(context.Background())
	body := captureJSON(ctx, 400)

	require.NoError(t, controller.MonthlyPlan(ctx))
	assert.Equal(t, tours.TextCodeInvalidQuery, (*body)["code"])
}
