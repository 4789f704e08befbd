package identity

import (
	"errors"
	"net/http"

	"github.com/cartstack/identity/token"
)

var (
	// ErrEmailTaken is returned by Register when the email is already in
	// use. The message is part of the public API contract.
	ErrEmailTaken = errors.New("Email is already registered")
	// ErrInvalidCredentials is the uniform login/change-password failure.
	// It never distinguishes unknown email from wrong password; doing so
	// would let callers enumerate registered accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidRefresh is the uniform refresh failure: bad decode, wrong
	// token type, expired, unknown to the store, or user mismatch all
	// surface identically.
	ErrInvalidRefresh = errors.New("invalid refresh token")
	// ErrPasswordUnchanged rejects a password change to the current value.
	ErrPasswordUnchanged = errors.New("new password must be different from old password")
	// ErrUserNotFound is returned by read-only lookups of absent users.
	ErrUserNotFound = errors.New("user not found")
	// ErrForbidden marks an authenticated caller acting outside its
	// authorization.
	ErrForbidden = errors.New("forbidden")
	// ErrDuplicateEmail surfaces a uniqueness violation at the store layer
	// (the unique index tripping after the pre-check).
	ErrDuplicateEmail = errors.New("email already exists")
	// ErrStoreUnavailable wraps backing-store faults. Operations are never
	// retried here; retrying is a caller concern.
	ErrStoreUnavailable = errors.New("backing store unavailable")
	// ErrEngineNotReady is returned when the engine is used before Build
	// wired its dependencies.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// HTTPStatus maps the error taxonomy onto response codes for transport
// layers. Unknown errors map to 500 and must not leak detail to callers.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrPasswordUnchanged):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidRefresh),
		errors.Is(err, token.ErrTokenInvalid),
		errors.Is(err, token.ErrClaimInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateEmail):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
