package identity

import (
	"context"
	"errors"
)

// ChangePassword replaces the caller's password hash and revokes every
// refresh session the user holds, forcing a re-login everywhere.
//
// A wrong old password fails ErrInvalidCredentials; changing the password
// to its current value fails ErrPasswordUnchanged and leaves both the hash
// and the sessions untouched.
func (e *Engine) ChangePassword(ctx context.Context, email, oldPassword, newPassword string) error {
	if e == nil || e.creds == nil || e.hasher == nil {
		return ErrEngineNotReady
	}

	cred, err := e.creds.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return errors.Join(ErrStoreUnavailable, err)
	}

	ok, err := e.hasher.Verify(oldPassword, cred.PasswordHash)
	if err != nil || !ok {
		e.emitAudit(ctx, auditEventPasswordChange, false, cred.ID, email, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	same, err := e.hasher.Verify(newPassword, cred.PasswordHash)
	if err == nil && same {
		e.emitAudit(ctx, auditEventPasswordChange, false, cred.ID, email, ErrPasswordUnchanged, nil)
		return ErrPasswordUnchanged
	}

	newHash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}

	if err := e.creds.UpdatePasswordHash(ctx, cred.ID, newHash); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}

	if err := e.sessions.DeleteAllForUser(ctx, cred.ID); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}

	e.emitAudit(ctx, auditEventPasswordChange, true, cred.ID, email, nil, nil)
	return nil
}
