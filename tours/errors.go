package tours

import (
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-tours/auth"
)

const (
	TextCodeInvalidQuery  = "INVALID_QUERY"
	TextCodeInvalidLatLng = "INVALID_LATLNG"
)

var (
	ErrNotFound = errors.New("No document found with that ID", errors.CategoryNotFound).
			WithCode(errors.CodeNotFound).
			WithTextCode(auth.TextCodeNotFound)

	ErrDuplicateTour = errors.New("Duplicate field value. Please use another value!", errors.CategoryConflict).
				WithCode(errors.CodeConflict).
				WithTextCode(auth.TextCodeDuplicate)

	ErrDuplicateReview = errors.New("You have already reviewed this tour", errors.CategoryConflict).
				WithCode(errors.CodeConflict).
				WithTextCode(auth.TextCodeDuplicate)

	ErrInvalidLatLng = errors.New("Please provide latitude and longitude in the format lat,lng.", errors.CategoryBadInput).
				WithCode(errors.CodeBadRequest).
				WithTextCode(TextCodeInvalidLatLng)

	ErrInvalidYear = errors.New("Please provide a valid year", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest).
			WithTextCode(TextCodeInvalidQuery)
)
