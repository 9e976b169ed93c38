package errors

import (
	"errors"
	"net/http"
)

// Kind classifies a failure independently of the transport.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// HTTPStatus maps a Kind to its response status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is the single error shape shared by services and handlers.
// Two *Error values are considered the same error when their codes match,
// so errors.Is(Banned("spam"), ErrBanned) holds.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

// New creates an error of the given kind.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap attaches a kind and code to an underlying cause.
func Wrap(err error, kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	// ErrValidation is returned for malformed or missing request fields.
	ErrValidation = New(KindValidation, "VALIDATION_ERROR", "invalid request")
	// ErrNoFile is returned when an upload carries no file part.
	ErrNoFile = New(KindValidation, "NO_FILE", "no file uploaded")
	// ErrTooManyFiles is returned when an upload exceeds the file count limit.
	ErrTooManyFiles = New(KindValidation, "TOO_MANY_FILES", "too many files")
	// ErrFileTooLarge is returned when a file exceeds the per-file byte ceiling.
	ErrFileTooLarge = New(KindValidation, "FILE_TOO_LARGE", "file too large")
	// ErrFileType is returned for a disallowed extension or declared MIME type.
	ErrFileType = New(KindValidation, "INVALID_FILE_TYPE", "file type not allowed")
	// ErrInvalidImage is returned when uploaded bytes do not decode as a supported image.
	ErrInvalidImage = New(KindValidation, "INVALID_IMAGE", "invalid image file")
	// ErrAvatarMedia is returned when the generic media endpoint is asked to delete an avatar.
	ErrAvatarMedia = New(KindValidation, "AVATAR_MEDIA", "avatar files must be deleted through the avatar endpoint")
	// ErrSelfRevoke is returned when an admin tries to revoke the session they are using.
	ErrSelfRevoke = New(KindValidation, "SELF_REVOKE", "cannot revoke your current session")
	// ErrSelfAction is returned when an admin tries to ban or remove themselves.
	ErrSelfAction = New(KindValidation, "SELF_ACTION", "cannot perform this action on yourself")
	// ErrPasswordTooShort is returned for passwords under the minimum length.
	ErrPasswordTooShort = New(KindValidation, "PASSWORD_TOO_SHORT", "password too short")
	// ErrPasswordTooLong is returned for passwords over the maximum length.
	ErrPasswordTooLong = New(KindValidation, "PASSWORD_TOO_LONG", "password too long")
	// ErrInvalidToken is returned for unknown or expired verification and reset tokens.
	ErrInvalidToken = New(KindValidation, "INVALID_TOKEN", "invalid or expired token")
	// ErrUnverifiedProviderEmail is returned when a social profile would be
	// linked to an existing user by an email the provider has not verified.
	ErrUnverifiedProviderEmail = New(KindValidation, "UNVERIFIED_PROVIDER_EMAIL", "provider email is not verified")
	// ErrInvalidRole is returned for roles outside user/admin.
	ErrInvalidRole = New(KindValidation, "INVALID_ROLE", "invalid role")

	// ErrUnauthenticated is returned when a request carries no session token.
	ErrUnauthenticated = New(KindUnauthenticated, "UNAUTHENTICATED", "authentication required")
	// ErrInvalidSession is returned for unknown or expired sessions.
	ErrInvalidSession = New(KindUnauthenticated, "INVALID_SESSION", "invalid or expired session")
	// ErrInvalidCredentials is returned when email or password is incorrect.
	ErrInvalidCredentials = New(KindUnauthenticated, "INVALID_EMAIL_OR_PASSWORD", "invalid email or password")
	// ErrInvalidPassword is returned when the current password does not match.
	ErrInvalidPassword = New(KindValidation, "INVALID_PASSWORD", "invalid password")

	// ErrForbidden is returned when the caller lacks the admin role.
	ErrForbidden = New(KindForbidden, "FORBIDDEN", "admin access required")
	// ErrBanned is the sentinel matched by every Banned error.
	ErrBanned = New(KindForbidden, "BANNED_USER", "user is banned")
	// ErrEmailNotVerified is returned on sign-in when verification is required.
	ErrEmailNotVerified = New(KindForbidden, "EMAIL_NOT_VERIFIED", "email not verified")

	// ErrUserNotFound is returned for unknown user ids or emails.
	ErrUserNotFound = New(KindNotFound, "USER_NOT_FOUND", "user not found")
	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = New(KindNotFound, "SESSION_NOT_FOUND", "session not found")
	// ErrMediaNotFound is returned for unknown media ids.
	ErrMediaNotFound = New(KindNotFound, "MEDIA_NOT_FOUND", "file not found")
	// ErrNoAvatar is returned when deleting an avatar that does not exist.
	ErrNoAvatar = New(KindNotFound, "NO_AVATAR", "no avatar to delete")

	// ErrUserAlreadyExists is returned on sign-up with a taken email.
	ErrUserAlreadyExists = New(KindConflict, "USER_ALREADY_EXISTS", "user already exists")

	// ErrRateLimited is returned when a client exceeds the request budget.
	ErrRateLimited = New(KindRateLimited, "TOO_MANY_REQUESTS", "too many requests")
)

// Banned builds a forbidden error that carries the stored ban reason.
func Banned(reason string) *Error {
	msg := ErrBanned.Message
	if reason != "" {
		msg = msg + ": " + reason
	}
	return New(KindForbidden, ErrBanned.Code, msg)
}

// Validation builds a validation error with a custom message.
func Validation(message string) *Error {
	return New(KindValidation, ErrValidation.Code, message)
}

// Internal wraps an unexpected failure.
func Internal(err error, message string) *Error {
	return Wrap(err, KindInternal, "INTERNAL_ERROR", message)
}

// KindOf reports the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
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

// MapErrorToHTTP maps domain errors to HTTP errors. Details of internal
// failures are only exposed outside production.
func MapErrorToHTTP(err error, production bool) *HTTPError {
	var e *Error
	if !errors.As(err, &e) {
		msg := "internal server error"
		if !production && err != nil {
			msg = err.Error()
		}
		return NewHTTPError(http.StatusInternalServerError, msg, "INTERNAL_ERROR")
	}

	msg := e.Message
	if e.Kind == KindInternal {
		if production {
			msg = "internal server error"
		} else {
			msg = e.Error()
		}
	}
	return NewHTTPError(e.Kind.HTTPStatus(), msg, e.Code)
}
