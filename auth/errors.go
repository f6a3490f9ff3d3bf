package auth

import (
	"net/http"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeUnauthenticated      = "UNAUTHENTICATED"
	TextCodeTokenExpired         = "TOKEN_EXPIRED"
	TextCodeTokenMalformed       = "TOKEN_MALFORMED"
	TextCodeUserGone             = "USER_NO_LONGER_EXISTS"
	TextCodePasswordChanged      = "PASSWORD_CHANGED"
	TextCodeIncorrectCredentials = "INCORRECT_CREDENTIALS"
	TextCodeIncorrectPassword    = "INCORRECT_PASSWORD"
	TextCodeForbidden            = "FORBIDDEN"
	TextCodeNotFound             = "NOT_FOUND"
	TextCodeInvalidOrExpired     = "TOKEN_INVALID_OR_EXPIRED"
	TextCodeValidationFailed     = "VALIDATION_FAILED"
	TextCodeMissingCredentials   = "MISSING_CREDENTIALS"
	TextCodeDeliveryFailed       = "DELIVERY_FAILED"
	TextCodeDuplicate            = "DUPLICATE"
	TextCodeRateLimited          = "RATE_LIMITED"
	TextCodeInternal             = "INTERNAL"
)

// Sentinels are shared; call Clone before attaching metadata.
var (
	// ErrUnauthenticated no token was found on the request
	ErrUnauthenticated = errors.New("You are not logged in! Please log in to get access.", errors.CategoryAuth).
				WithCode(errors.CodeUnauthorized).
				WithTextCode(TextCodeUnauthenticated)

	// ErrTokenExpired the token signature is fine but exp is in the past
	ErrTokenExpired = errors.New("Your token has expired! Please log in again.", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized).
			WithTextCode(TextCodeTokenExpired)

	// ErrTokenMalformed the token could not be parsed or its signature does not match
	ErrTokenMalformed = errors.New("Invalid token. Please log in again!", errors.CategoryAuth).
				WithCode(errors.CodeUnauthorized).
				WithTextCode(TextCodeTokenMalformed)

	// ErrUserGone the token subject is deleted or deactivated
	ErrUserGone = errors.New("The user belonging to this token does no longer exist.", errors.CategoryAuth).
			WithCode(errors.CodeUnauthorized).
			WithTextCode(TextCodeUserGone)

	// ErrPasswordChanged the token was issued before the last password change
	ErrPasswordChanged = errors.New("User recently changed password! Please log in again.", errors.CategoryAuth).
				WithCode(errors.CodeUnauthorized).
				WithTextCode(TextCodePasswordChanged)

	ErrIncorrectCredentials = errors.New("Incorrect Credentials", errors.CategoryAuth).
				WithCode(errors.CodeUnauthorized).
				WithTextCode(TextCodeIncorrectCredentials)

	ErrIncorrectPassword = errors.New("Your current password is wrong.", errors.CategoryAuth).
				WithCode(errors.CodeUnauthorized).
				WithTextCode(TextCodeIncorrectPassword)

	ErrForbidden = errors.New("You do not have permission to perform this action", errors.CategoryAuthz).
			WithCode(errors.CodeForbidden).
			WithTextCode(TextCodeForbidden)

	ErrUserNotFound = errors.New("There is no user with that email address.", errors.CategoryNotFound).
			WithCode(errors.CodeNotFound).
			WithTextCode(TextCodeNotFound)

	ErrNoUserWithID = errors.New("No user found with that ID", errors.CategoryNotFound).
			WithCode(errors.CodeNotFound).
			WithTextCode(TextCodeNotFound)

	ErrInvalidOrExpired = errors.New("Token is invalid or has expired", errors.CategoryBadInput).
				WithCode(errors.CodeBadRequest).
				WithTextCode(TextCodeInvalidOrExpired)

	ErrMissingCredentials = errors.New("Please provide email and password!", errors.CategoryValidation).
				WithCode(errors.CodeBadRequest).
				WithTextCode(TextCodeMissingCredentials)

	ErrDeliveryFailed = errors.New("There was an error sending the email. Try again later!", errors.CategoryOperation).
				WithCode(errors.CodeInternal).
				WithTextCode(TextCodeDeliveryFailed)

	ErrEmailTaken = errors.New("Email address already in use", errors.CategoryConflict).
			WithCode(errors.CodeConflict).
			WithTextCode(TextCodeDuplicate)

	ErrRateLimited = errors.New("Too many requests from this IP, please try again in an hour!", errors.CategoryRateLimit).
			WithCode(http.StatusTooManyRequests).
			WithTextCode(TextCodeRateLimited)

	// ErrNoEmptyString password hashing input was empty
	ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
				WithCode(errors.CodeBadRequest).
				WithTextCode(TextCodeValidationFailed)

	// ErrMismatchedHashAndPassword bcrypt comparison failed
	ErrMismatchedHashAndPassword = errors.New("password does not match hash", errors.CategoryAuth).
					WithCode(errors.CodeUnauthorized).
					WithTextCode(TextCodeIncorrectCredentials)
)

// HasTextCode reports whether err is a rich error carrying code.
func HasTextCode(err error, code string) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// IsUnauthenticated reports errors that should surface as 401.
func IsUnauthenticated(err error) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.Category == errors.CategoryAuth
}

// ToRichError normalizes err so the HTTP layer always has a category,
// status code and text code to work with.
func ToRichError(err error) *errors.Error {
	if err == nil {
		return nil
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		if richErr.Code == 0 {
			richErr.Code = statusForCategory(richErr.Category)
		}
		if richErr.TextCode == "" {
			richErr.TextCode = textCodeForCategory(richErr.Category)
		}
		return richErr
	}

	return errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
		WithCode(errors.CodeInternal).
		WithTextCode(TextCodeInternal)
}

func statusForCategory(category errors.Category) int {
	switch category {
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryAuthz:
		return http.StatusForbidden
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryValidation, errors.CategoryBadInput:
		return http.StatusBadRequest
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func textCodeForCategory(category errors.Category) string {
	switch category {
	case errors.CategoryAuth:
		return TextCodeUnauthenticated
	case errors.CategoryAuthz:
		return TextCodeForbidden
	case errors.CategoryNotFound:
		return TextCodeNotFound
	case errors.CategoryValidation, errors.CategoryBadInput:
		return TextCodeValidationFailed
	case errors.CategoryConflict:
		return TextCodeDuplicate
	case errors.CategoryRateLimit:
		return TextCodeRateLimited
	default:
		return TextCodeInternal
	}
}
