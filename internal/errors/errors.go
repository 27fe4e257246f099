package errors

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

var (
	// ErrValidation is returned when a required field is missing or malformed.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateEmail is returned when the email is already registered for the principal kind.
	ErrDuplicateEmail = errors.New("email already in use")
	// ErrInvalidCredentials is returned when email or password is incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAuthenticationFailed is returned when a bearer token cannot be resolved to a principal.
	ErrAuthenticationFailed = errors.New("please authenticate")
	// ErrAuthorizationDenied is returned when the principal's role does not satisfy the route.
	ErrAuthorizationDenied = errors.New("access denied")
	// ErrNotFound is returned when a principal is not found.
	ErrNotFound = errors.New("user not found")
	// ErrInvalidOrExpiredOTP covers wrong, expired and missing one-time codes alike.
	ErrInvalidOrExpiredOTP = errors.New("Invalid or expired OTP")
	// ErrAlreadyVerified is returned when an OTP is requested for a verified principal.
	ErrAlreadyVerified = errors.New("email already verified")
	// ErrTooManyRequests is returned when an OTP is re-requested inside the cooldown window.
	ErrTooManyRequests = errors.New("too many requests")
	// ErrDependencyUnavailable is returned when mail or storage cannot be reached.
	ErrDependencyUnavailable = errors.New("service temporarily unavailable")
)

// AppError attaches a user-safe message to one of the sentinel kinds above.
type AppError struct {
	Kind    error
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.Error()
}

// Unwrap lets errors.Is match both the kind and the underlying cause.
func (e *AppError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Validation builds a 400-class error with a field specific message.
func Validation(message string) error {
	return &AppError{Kind: ErrValidation, Message: message}
}

// Unavailable marks err as a dependency failure without exposing it to clients.
func Unavailable(err error) error {
	return &AppError{Kind: ErrDependencyUnavailable, Err: err}
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

var mappings = []struct {
	kind   error
	status int
	code   string
}{
	{ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
	{ErrDuplicateEmail, http.StatusBadRequest, "DUPLICATE_EMAIL"},
	{ErrInvalidOrExpiredOTP, http.StatusBadRequest, "INVALID_OTP"},
	{ErrAlreadyVerified, http.StatusBadRequest, "ALREADY_VERIFIED"},
	{ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
	{ErrAuthenticationFailed, http.StatusUnauthorized, "AUTHENTICATION_FAILED"},
	{ErrAuthorizationDenied, http.StatusForbidden, "ACCESS_DENIED"},
	{ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{ErrTooManyRequests, http.StatusTooManyRequests, "TOO_MANY_REQUESTS"},
	{ErrDependencyUnavailable, http.StatusInternalServerError, "DEPENDENCY_UNAVAILABLE"},
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	for _, m := range mappings {
		if !errors.Is(err, m.kind) {
			continue
		}
		message := m.kind.Error()
		var appErr *AppError
		if errors.As(err, &appErr) && appErr.Message != "" {
			message = appErr.Message
		}
		return NewHTTPError(m.status, message, m.code)
	}
	return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
}

// ToEcho maps err and wraps the result for echo's error handler.
func ToEcho(err error) *echo.HTTPError {
	httpErr := MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse()).SetInternal(err)
}
