package tours_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-tours/auth"
	"github.com/goliatone/go-tours/tours"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFeatures_Defaults(t *testing.T) {
	f, err := tours.ParseFeatures(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 100, f.Limit)
	assert.Empty(t, f.Filters)
	assert.Equal(t, []tours.SortField{{Column: "created_at", Desc: true}}, f.Sort)
}

func TestParseFeatures_Filters(t *testing.T) {
	f, err := tours.ParseFeatures(map[string]string{
		"duration[gte]": "5",
		"difficulty":    "easy",
		"price[lt]":     "1500",
		"page":          "2",
		"unknown":       "ignored",
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []tours.Filter{
		{Column: "difficulty", Op: tours.OpEq, Value: "easy"},
		{Column: "duration", Op: tours.OpGte, Value: 5.0},
		{Column: "price", Op: tours.OpLt, Value: 1500.0},
	}, f.Filters)
	assert.Equal(t, 2, f.Page)
}

func TestParseFeatures_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"operator":   {"price[ne]": "5"},
		"number":     {"price[gte]": "cheap"},
		"sort field": {"sort": "password"},
		"page":       {"page": "0"},
		"limit":      {"limit": "many"},
	}

	for name, query := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tours.ParseFeatures(query)
			require.Error(t, err)
			assert.True(t, auth.HasTextCode(err, tours.TextCodeInvalidQuery))
		})
	}
}

func TestFeatures_Project(t *testing.T) {
	f, err := tours.ParseFeatures(map[string]string{"fields": "name,price"})
	require.NoError(t, err)

	out, err := f.Project([]*tours.Tour{validTour()})
	require.NoError(t, err)

	docs := out.([]map[string]any)
	require.Len(t, docs, 1)
	assert.Len(t, docs[0], 3)
	assert.Equal(t, "The Forest Hiker", docs[0]["name"])
	assert.Equal(t, 397.0, docs[0]["price"])
	assert.Contains(t, docs[0], "id")

	f, err = tours.ParseFeatures(map[string]string{"fields": "-summary,-images"})
	require.NoError(t, err)

	out, err = f.Project([]*tours.Tour{validTour()})
	require.NoError(t, err)
	doc := out.([]map[string]any)[0]
	assert.NotContains(t, doc, "summary")
	assert.NotContains(t, doc, "images")
	assert.Contains(t, doc, "durationWeeks")
}

func TestSearch_FilterSortPaginate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addTour(t, "The Forest Hiker", 397)
	f.addTour(t, "The Sea Explorer", 497, withDifficulty(tours.DifficultyMedium))
	f.addTour(t, "The Snow Adventurer", 997, withDifficulty(tours.DifficultyDifficult))
	f.addTour(t, "The City Wanderer", 1197)
	f.addTour(t, "The Hidden Valley", 10, secret())

	features, err := tours.ParseFeatures(map[string]string{
		"price[gte]": "400",
		"sort":       "price",
	})
	require.NoError(t, err)

	found, err := f.repo.Tours().Search(ctx, features)
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.Equal(t, "The Sea Explorer", found[0].Name)
	assert.Equal(t, "The City Wanderer", found[2].Name)

	features, err = tours.ParseFeatures(map[string]string{"sort": "-price", "limit": "2", "page": "2"})
	require.NoError(t, err)

	found, err = f.repo.Tours().Search(ctx, features)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "The Sea Explorer", found[0].Name)
	assert.Equal(t, "The Forest Hiker", found[1].Name, "secret tours never show up")
}

func TestSearch_TopCheap(t *testing.T) {
	f := newFixture(t)

	for i, name := range []string{"The Forest Hiker", "The Sea Explorer", "The Snow Adventurer", "The City Wanderer", "The Park Camper", "The Star Gazer"} {
		f.addTour(t, name, float64(100*(i+1)), withRating(4.5+float64(i%3)/10))
	}

	features := tours.TopCheapFeatures()
	found, err := f.repo.Tours().Search(context.Background(), features)
	require.NoError(t, err)
	require.Len(t, found, 5)

	// highest rating first, cheapest first among equals
	assert.Equal(t, 4.7, found[0].RatingsAverage)
	assert.Equal(t, "The Snow Adventurer", found[0].Name)
	assert.Equal(t, "The Star Gazer", found[1].Name)
}
