package domain

import "errors"

// Error kinds. Match them with errors.Is.
var (
	ErrValidation      = errors.New("validation failed")
	ErrAuthentication  = errors.New("authentication failed")
	ErrAuthorization   = errors.New("not authorized")
	ErrRateLimited     = errors.New("rate limited")
	ErrAccountLocked   = errors.New("account locked")
	ErrConflict        = errors.New("conflict")
	ErrIntegrity       = errors.New("integrity check failed")
	ErrExternalService = errors.New("external service unavailable")
	ErrNotFound        = errors.New("not found")

	// ErrInvalidToken is returned for any bearer token that fails verification.
	ErrInvalidToken = &Error{Kind: ErrAuthentication, Message: "Invalid token"}
)

// Error carries a caller-safe message alongside its kind and optional cause.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// PublicMessage returns the caller-safe message of the first *Error in the chain.
func PublicMessage(err error) (string, bool) {
	var de *Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message, true
	}
	return "", false
}

func newError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

func NewValidationError(message string) *Error {
	return newError(ErrValidation, message, nil)
}

func NewAuthenticationError(message string) *Error {
	return newError(ErrAuthentication, message, nil)
}

func NewAuthorizationError(message string) *Error {
	return newError(ErrAuthorization, message, nil)
}

func NewRateLimitedError(message string) *Error {
	return newError(ErrRateLimited, message, nil)
}

func NewAccountLockedError(message string) *Error {
	return newError(ErrAccountLocked, message, nil)
}

func NewConflictError(message string) *Error {
	return newError(ErrConflict, message, nil)
}

func NewNotFoundError(message string) *Error {
	return newError(ErrNotFound, message, nil)
}

// NewIntegrityError wraps a verification failure. The cause is logged, never returned to callers.
func NewIntegrityError(message string, cause error) *Error {
	return newError(ErrIntegrity, message, cause)
}

// NewExternalServiceError marks a recoverable failure of a remote dependency.
func NewExternalServiceError(message string, cause error) *Error {
	return newError(ErrExternalService, message, cause)
}
