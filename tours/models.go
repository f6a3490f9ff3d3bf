package tours

import (
	"encoding/json"
	stderrors "errors"
	"math"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/uptrace/bun"
)

const (
	DefaultRatingsAverage = 4.5
	MinTourNameLength     = 10
	MaxTourNameLength     = 40
)

type Difficulty string

const (
	DifficultyEasy      Difficulty = "easy"
	DifficultyMedium    Difficulty = "medium"
	DifficultyDifficult Difficulty = "difficult"
)

func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyDifficult:
		return true
	}
	return false
}

// Point is a GeoJSON point. Coordinates are [lng, lat].
type Point struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
	Address     string     `json:"address,omitempty"`
	Description string     `json:"description,omitempty"`
}

func NewPoint(lat, lng float64) Point {
	return Point{Type: "Point", Coordinates: [2]float64{lng, lat}}
}

func (p Point) Lng() float64 { return p.Coordinates[0] }
func (p Point) Lat() float64 { return p.Coordinates[1] }

// Location is a stop on the tour itinerary
type Location struct {
	Point
	Day int `json:"day,omitempty"`
}

type Tour struct {
	bun.BaseModel  `bun:"table:tours,alias:tour"`
	ID             uuid.UUID   `bun:"id,pk,type:uuid" json:"id"`
	Name           string      `bun:"name,notnull,unique" json:"name"`
	Slug           string      `bun:"slug,notnull" json:"slug"`
	Duration       int         `bun:"duration,notnull" json:"duration"`
	MaxGroupSize   int         `bun:"max_group_size,notnull" json:"maxGroupSize"`
	Difficulty     Difficulty  `bun:"difficulty,notnull" json:"difficulty"`
	RatingsAverage float64     `bun:"ratings_average,notnull" json:"ratingsAverage"`
	RatingsQty     int         `bun:"ratings_quantity,notnull" json:"ratingsQuantity"`
	Price          float64     `bun:"price,notnull" json:"price"`
	PriceDiscount  *float64    `bun:"price_discount,nullzero" json:"priceDiscount,omitempty"`
	Summary        string      `bun:"summary,notnull" json:"summary"`
	Description    string      `bun:"description" json:"description,omitempty"`
	ImageCover     string      `bun:"image_cover,notnull" json:"imageCover"`
	Images         []string    `bun:"images" json:"images"`
	StartDates     []time.Time `bun:"start_dates" json:"startDates"`
	SecretTour     bool        `bun:"secret_tour,notnull" json:"-"`
	StartLocation  *Point      `bun:"start_location" json:"startLocation,omitempty"`
	Locations      []Location  `bun:"locations" json:"locations"`
	Guides         []uuid.UUID `bun:"guides" json:"guides"`
	CreatedAt      *time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"-"`

	Reviews []*Review `bun:"-" json:"reviews,omitempty"`
}

// DurationWeeks is derived from Duration, never stored
func (t *Tour) DurationWeeks() float64 {
	return float64(t.Duration) / 7
}

func (t *Tour) MarshalJSON() ([]byte, error) {
	type alias Tour
	return json.Marshal(struct {
		*alias
		DurationWeeks float64 `json:"durationWeeks"`
	}{
		alias:         (*alias)(t),
		DurationWeeks: t.DurationWeeks(),
	})
}

// Validate checks the rules a tour must satisfy before it is stored
func (t *Tour) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(t,
			validation.Field(&t.Name,
				validation.Required.Error("A tour must have a name"),
				validation.Length(MinTourNameLength, MaxTourNameLength).Error("A tour name must have between 10 and 40 characters"),
			),
			validation.Field(&t.Duration, validation.Required.Error("A tour must have a duration"), validation.Min(1)),
			validation.Field(&t.MaxGroupSize, validation.Required.Error("A tour must have a group size"), validation.Min(1)),
			validation.Field(&t.Difficulty,
				validation.Required.Error("A tour must have a difficulty"),
				validation.In(DifficultyEasy, DifficultyMedium, DifficultyDifficult).Error("Difficulty is either: easy, medium, difficult"),
			),
			validation.Field(&t.RatingsAverage,
				validation.Min(1.0).Error("Rating must be above 1.0"),
				validation.Max(5.0).Error("Rating must be below 5.0"),
			),
			validation.Field(&t.Price, validation.Required.Error("A tour must have a price"), validation.Min(0.0)),
			validation.Field(&t.PriceDiscount, validation.By(discountBelow(t.Price))),
			validation.Field(&t.Summary, validation.Required.Error("A tour must have a summary")),
			validation.Field(&t.ImageCover, validation.Required.Error("A tour must have a cover image")),
		)
	}, "Invalid input data")
}

func discountBelow(price float64) validation.RuleFunc {
	return func(value any) error {
		var discount float64
		switch v := value.(type) {
		case *float64:
			if v == nil {
				return nil
			}
			discount = *v
		case float64:
			discount = v
		default:
			return nil
		}
		if discount >= price {
			return stderrors.New("Discount price should be below regular price")
		}
		return nil
	}
}

// prepareForSave fills defaults and derived fields
func (t *Tour) prepareForSave() {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.Name = strings.TrimSpace(t.Name)
	t.Slug = slug.Make(t.Name)

	if t.RatingsAverage == 0 {
		t.RatingsAverage = DefaultRatingsAverage
	}
	t.RatingsAverage = RoundRating(t.RatingsAverage)

	if t.StartLocation != nil && t.StartLocation.Type == "" {
		t.StartLocation.Type = "Point"
	}
	for i := range t.Locations {
		if t.Locations[i].Type == "" {
			t.Locations[i].Type = "Point"
		}
	}
}

// RoundRating keeps one decimal, 4.666 becomes 4.7
func RoundRating(v float64) float64 {
	return math.Round(v*10) / 10
}

// TourPatch carries the fields of a partial update. Nil means unchanged.
type TourPatch struct {
	Name          *string     `json:"name"`
	Duration      *int        `json:"duration"`
	MaxGroupSize  *int        `json:"maxGroupSize"`
	Difficulty    *Difficulty `json:"difficulty"`
	Price         *float64    `json:"price"`
	PriceDiscount *float64    `json:"priceDiscount"`
	Summary       *string     `json:"summary"`
	Description   *string     `json:"description"`
	ImageCover    *string     `json:"imageCover"`
	Images        []string    `json:"images"`
	StartDates    []time.Time `json:"startDates"`
	SecretTour    *bool       `json:"secretTour"`
	StartLocation *Point      `json:"startLocation"`
	Locations     []Location  `json:"locations"`
	Guides        []uuid.UUID `json:"guides"`
}

func (p TourPatch) Apply(t *Tour) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Duration != nil {
		t.Duration = *p.Duration
	}
	if p.MaxGroupSize != nil {
		t.MaxGroupSize = *p.MaxGroupSize
	}
	if p.Difficulty != nil {
		t.Difficulty = *p.Difficulty
	}
	if p.Price != nil {
		t.Price = *p.Price
	}
	if p.PriceDiscount != nil {
		t.PriceDiscount = p.PriceDiscount
	}
	if p.Summary != nil {
		t.Summary = *p.Summary
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.ImageCover != nil {
		t.ImageCover = *p.ImageCover
	}
	if p.Images != nil {
		t.Images = p.Images
	}
	if p.StartDates != nil {
		t.StartDates = p.StartDates
	}
	if p.SecretTour != nil {
		t.SecretTour = *p.SecretTour
	}
	if p.StartLocation != nil {
		t.StartLocation = p.StartLocation
	}
	if p.Locations != nil {
		t.Locations = p.Locations
	}
	if p.Guides != nil {
		t.Guides = p.Guides
	}
}

// TourInput is the create payload. Secret tours can be created, they
// just never show up in reads.
type TourInput struct {
	Name           string      `json:"name"`
	Duration       int         `json:"duration"`
	MaxGroupSize   int         `json:"maxGroupSize"`
	Difficulty     Difficulty  `json:"difficulty"`
	RatingsAverage float64     `json:"ratingsAverage"`
	RatingsQty     int         `json:"ratingsQuantity"`
	Price          float64     `json:"price"`
	PriceDiscount  *float64    `json:"priceDiscount"`
	Summary        string      `json:"summary"`
	Description    string      `json:"description"`
	ImageCover     string      `json:"imageCover"`
	Images         []string    `json:"images"`
	StartDates     []time.Time `json:"startDates"`
	SecretTour     bool        `json:"secretTour"`
	StartLocation  *Point      `json:"startLocation"`
	Locations      []Location  `json:"locations"`
	Guides         []uuid.UUID `json:"guides"`
}

func (in TourInput) Tour() *Tour {
	return &Tour{
		Name:           in.Name,
		Duration:       in.Duration,
		MaxGroupSize:   in.MaxGroupSize,
		Difficulty:     in.Difficulty,
		RatingsAverage: in.RatingsAverage,
		RatingsQty:     in.RatingsQty,
		Price:          in.Price,
		PriceDiscount:  in.PriceDiscount,
		Summary:        in.Summary,
		Description:    in.Description,
		ImageCover:     in.ImageCover,
		Images:         in.Images,
		StartDates:     in.StartDates,
		SecretTour:     in.SecretTour,
		StartLocation:  in.StartLocation,
		Locations:      in.Locations,
		Guides:         in.Guides,
	}
}

// Review is a rating left by a user for a tour. A user reviews a tour
// at most once.
type Review struct {
	bun.BaseModel `bun:"table:reviews,alias:rev"`
	ID            uuid.UUID     `bun:"id,pk,type:uuid" json:"id"`
	Review        string        `bun:"review,notnull" json:"review"`
	Rating        int           `bun:"rating,notnull" json:"rating"`
	TourID        uuid.UUID     `bun:"tour_id,notnull,type:uuid" json:"tour"`
	UserID        uuid.UUID     `bun:"user_id,notnull,type:uuid" json:"userId"`
	CreatedAt     *time.Time    `bun:"created_at,nullzero,default:current_timestamp" json:"createdAt,omitempty"`
	Author        *ReviewAuthor `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
}

// ReviewAuthor is the public slice of the user shown next to a review
type ReviewAuthor struct {
	bun.BaseModel `bun:"table:users,alias:author"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Name          string    `bun:"name" json:"name"`
	Photo         string    `bun:"photo" json:"photo,omitempty"`
}

func (r *Review) Validate() *errors.Error {
	return errors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(r,
			validation.Field(&r.Review, validation.Required.Error("Review can not be empty!")),
			validation.Field(&r.Rating,
				validation.Required.Error("A review must have a rating"),
				validation.Min(1).Error("Rating must be between 1 and 5"),
				validation.Max(5).Error("Rating must be between 1 and 5"),
			),
			validation.Field(&r.TourID, validation.By(notNilUUID("Review must belong to a tour."))),
			validation.Field(&r.UserID, validation.By(notNilUUID("Review must belong to a user"))),
		)
	}, "Invalid input data")
}

func notNilUUID(msg string) validation.RuleFunc {
	return func(value any) error {
		id, _ := value.(uuid.UUID)
		if id == uuid.Nil {
			return stderrors.New(msg)
		}
		return nil
	}
}

// ReviewInput is the create payload. Tour and user may come from the
// route and the session instead.
type ReviewInput struct {
	Review string `json:"review"`
	Rating int    `json:"rating"`
	Tour   string `json:"tour"`
	User   string `json:"user"`
}

type ReviewPatch struct {
	Review *string `json:"review"`
	Rating *int    `json:"rating"`
}

func (p ReviewPatch) Apply(r *Review) {
	if p.Review != nil {
		r.Review = *p.Review
	}
	if p.Rating != nil {
		r.Rating = *p.Rating
	}
}
