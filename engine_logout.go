package identity

import (
	"context"
	"errors"
)

// Logout revokes the refresh session for the presented token. It is
// idempotent: logging out with an absent, expired, or already-consumed
// token succeeds silently.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	sess, err := e.sessions.Delete(ctx, refreshToken)
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}

	// Attribute the event to the session owner when a row was removed.
	// The email comes from the token claims, best effort: an expired or
	// undecodable token still logs out, just with less attribution.
	var userID int64
	var email string
	if sess != nil {
		userID = sess.UserID
	}
	if claims, decodeErr := e.codec.Decode(refreshToken); decodeErr == nil {
		email = claims.Subject
	}

	e.emitAudit(ctx, auditEventLogout, true, userID, email, nil, nil)
	return nil
}
