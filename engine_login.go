package identity

import (
	"context"
	"errors"
)

// Login verifies credentials and mints a fresh token pair. Every prior
// refresh session for the user is invalidated first: one login means one
// active refresh session.
//
// All verification failures surface as ErrInvalidCredentials with no
// further detail.
func (e *Engine) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	if e == nil || e.creds == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}

	cred, err := e.creds.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditEventLogin, false, 0, email, ErrInvalidCredentials, nil)
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	ok, err := e.hasher.Verify(password, cred.PasswordHash)
	if err != nil || !ok {
		e.emitAudit(ctx, auditEventLogin, false, cred.ID, email, ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	// Single-active-session policy: a new login revokes every refresh
	// session the user still holds, on this or any other device.
	if err := e.sessions.DeleteAllForUser(ctx, cred.ID); err != nil {
		e.emitAudit(ctx, auditEventLogin, false, cred.ID, email, ErrStoreUnavailable, func() map[string]string {
			return map[string]string{"reason": "session_revoke_failed"}
		})
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	pair, err := e.issueTokens(ctx, cred)
	if err != nil {
		e.emitAudit(ctx, auditEventLogin, false, cred.ID, email, err, func() map[string]string {
			return map[string]string{"reason": "session_write_failed"}
		})
		return nil, err
	}

	e.emitAudit(ctx, auditEventLogin, true, cred.ID, email, nil, nil)
	return pair, nil
}
