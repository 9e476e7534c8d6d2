package accounts

import (
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

// Text codes exposed on the API error envelope. Clients branch on
// these, never on the message.
const (
	TextCodeValidationFailure  = "VALIDATION_FAILURE"
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeEmailNotValidated  = "EMAIL_NOT_VALIDATED"
	TextCodeAccountNotActive   = "ACCOUNT_NOT_ACTIVE"
	TextCodeAccountNotValid    = "ACCOUNT_NOT_VALIDATED"
	TextCodeTooMuchRequest     = "TOO_MUCH_REQUEST"
	TextCodeInvalidToken       = "INVALID_TOKEN"
	TextCodeUserNotFound       = "USER_NOT_FOUND"
	TextCodeNotAllowed         = "RESOURCE_NOT_ALLOWED"
	TextCodeInvalidAPIToken    = "INVALID_API_TOKEN"
)

// ErrInvalidCredentials is returned for any username/password mismatch,
// identical whether the username exists or not.
var ErrInvalidCredentials = errors.New("invalid user credentials", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrEmailNotValidated is returned when a sign in identifier matches a
// pending email whose confirmation is still outstanding.
var ErrEmailNotValidated = errors.New("email address not validated", errors.CategoryAuth).
	WithTextCode(TextCodeEmailNotValidated).
	WithCode(errors.CodeUnauthorized)

// ErrAccountNotActive is returned when credentials check out but the
// account status forbids signing in.
var ErrAccountNotActive = errors.New("account is not active", errors.CategoryAuth).
	WithTextCode(TextCodeAccountNotActive).
	WithCode(errors.CodeUnauthorized)

// ErrAccountNotValidated is returned when a recovery token sign in hits
// an account that is not active.
var ErrAccountNotValidated = errors.New("account is not validated", errors.CategoryAuth).
	WithTextCode(TextCodeAccountNotValid).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidToken is returned when a presented email, recovery, or
// thread token matches no outstanding record.
var ErrInvalidToken = errors.New("invalid token", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidAPIToken is returned by the auth middleware when the bearer
// token is missing, unknown, or revoked.
var ErrInvalidAPIToken = errors.New("invalid api token", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidAPIToken).
	WithCode(errors.CodeUnauthorized)

// ErrUserNotFound is returned by admin reads for an unknown user id.
var ErrUserNotFound = errors.New("user not found", errors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(errors.CodeNotFound)

// ErrResourceNotAllowed is returned when the caller lacks the role or
// ownership the resource requires.
var ErrResourceNotAllowed = errors.New("resource not allowed", errors.CategoryAuthz).
	WithTextCode(TextCodeNotAllowed).
	WithCode(errors.CodeForbidden)

// ErrNoEmptyString rejects blank values where a password or token is
// required.
var ErrNoEmptyString = errors.New("value cannot be empty", errors.CategoryValidation).
	WithTextCode(TextCodeValidationFailure).
	WithCode(errors.CodeBadRequest)

// ErrMismatchedHashAndPassword mirrors the bcrypt mismatch without
// leaking the library error to callers.
var ErrMismatchedHashAndPassword = errors.New("hashed password mismatch", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ValidationFailure builds the structured validation error the API
// reports per offending field.
func ValidationFailure(field, rule string) *errors.Error {
	return errors.New("validation failure", errors.CategoryValidation).
		WithTextCode(TextCodeValidationFailure).
		WithCode(errors.CodeBadRequest).
		WithMetadata(map[string]any{
			"field": field,
			"rule":  rule,
		})
}

// TooMuchRequest signals the recovery request cooldown, carrying the
// next instant a request will be accepted.
func TooMuchRequest(next time.Time) *errors.Error {
	return errors.New("too many requests", errors.CategoryRateLimit).
		WithTextCode(TextCodeTooMuchRequest).
		WithCode(429).
		WithMetadata(map[string]any{
			"nextRequest": next.UTC().Format(time.RFC3339),
		})
}

// IsUniqueViolation checks whether a driver error reports a unique
// constraint breach. Matches sqlite and postgres phrasing.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}

// TranslateUniqueViolation maps a constraint breach on a known column
// to the field level validation error; other errors pass through.
func TranslateUniqueViolation(err error) error {
	if !IsUniqueViolation(err) {
		return err
	}
	msg := err.Error()
	field := "username"
	if strings.Contains(msg, "email") {
		field = "email"
	}
	return ValidationFailure(field, "unique")
}
