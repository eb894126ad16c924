package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Is and As re-export the stdlib helpers so callers importing this package
// as their errors package do not need a second import.
func Is(err, target error) bool { return stderrors.Is(err, target) }
func As(err error, target any) bool { return stderrors.As(err, target) }

// Code is a stable machine-readable error code. Codes are part of the API
// contract: clients branch on them, the edge layer maps them to HTTP statuses.
type Code string

const (
	CodeValidation Code = "VALIDATION"

	// Challenge errors from nonce consumption.
	CodeNonceNotFound        Code = "NONCE_NOT_FOUND"
	CodeNonceExpired         Code = "NONCE_EXPIRED"
	CodeNonceMismatch        Code = "NONCE_MISMATCH"
	CodeNonceTooManyAttempts Code = "NONCE_TOO_MANY_ATTEMPTS"

	// Authentication failures.
	CodeNoAccessToken       Code = "NO_ACCESS_TOKEN"
	CodeInvalidToken        Code = "INVALID_TOKEN"
	CodeTokenExpired        Code = "TOKEN_EXPIRED"
	CodeTokenRevoked        Code = "TOKEN_REVOKED"
	CodeFingerprintMismatch Code = "FINGERPRINT_MISMATCH"
	CodeSessionExpired      Code = "SESSION_EXPIRED"
	CodeInvalidSignature    Code = "INVALID_SIGNATURE"

	// Refresh flow errors.
	CodeNoRefreshToken      Code = "NO_REFRESH_TOKEN"
	CodeMissingNonce        Code = "MISSING_NONCE"
	CodeInvalidRefreshToken Code = "INVALID_REFRESH_TOKEN"

	// Authorization failure (CSRF).
	CodeCSRFInvalid Code = "CSRF_INVALID"

	// Throttling. Denylisted is kept distinct internally but must be
	// indistinguishable from RateLimited in responses.
	CodeRateLimited Code = "RATE_LIMITED"
	CodeDenylisted  Code = "DENYLISTED"

	// Dependency failures (store/cache unreachable on a fail-closed path).
	CodeDependency Code = "DEPENDENCY"
)

// statusByCode maps error codes to HTTP statuses. Every failure path
// constructs a typed error carrying a code; the edge never inspects
// error message text to choose a status.
var statusByCode = map[Code]int{
	CodeValidation:           http.StatusBadRequest,
	CodeNonceNotFound:        http.StatusUnauthorized,
	CodeNonceExpired:         http.StatusUnauthorized,
	CodeNonceMismatch:        http.StatusUnauthorized,
	CodeNonceTooManyAttempts: http.StatusForbidden,
	CodeNoAccessToken:        http.StatusUnauthorized,
	CodeInvalidToken:         http.StatusUnauthorized,
	CodeTokenExpired:         http.StatusUnauthorized,
	CodeTokenRevoked:         http.StatusUnauthorized,
	CodeFingerprintMismatch:  http.StatusUnauthorized,
	CodeSessionExpired:       http.StatusUnauthorized,
	CodeInvalidSignature:     http.StatusUnauthorized,
	CodeNoRefreshToken:       http.StatusUnauthorized,
	CodeMissingNonce:         http.StatusUnauthorized,
	CodeInvalidRefreshToken:  http.StatusUnauthorized,
	CodeCSRFInvalid:          http.StatusForbidden,
	CodeRateLimited:          http.StatusTooManyRequests,
	CodeDenylisted:           http.StatusTooManyRequests,
	CodeDependency:           http.StatusInternalServerError,
}

// HTTPStatus returns the HTTP status for a code, defaulting to 500 for
// codes the table does not know about.
func HTTPStatus(code Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// AuthError is a typed error value carrying a stable code. The message is
// for server-side logs; responses expose only the code.
type AuthError struct {
	Code    Code
	Message string
	cause   error
}

func (e *AuthError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AuthError) Unwrap() error { return e.cause }

// Is matches any AuthError with the same code, so sentinel values declared
// with New work with errors.Is across wrapping.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Code == e.Code
}

// New creates a typed error with a stable code.
func New(code Code, message string) *AuthError {
	return &AuthError{Code: code, Message: message}
}

// Wrap attaches a code to an underlying cause.
func Wrap(code Code, message string, cause error) *AuthError {
	return &AuthError{Code: code, Message: message, cause: cause}
}

// CodeOf extracts the code from an error chain, or CodeDependency when the
// error is not a typed AuthError (unknown failures are treated as 500s).
func CodeOf(err error) Code {
	var authErr *AuthError
	if As(err, &authErr) {
		return authErr.Code
	}
	return CodeDependency
}
