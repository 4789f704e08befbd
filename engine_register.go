package identity

import (
	"context"
	"errors"
)

// Register creates a credential with role USER and logs the new account in:
// it returns a freshly minted token pair with its refresh session already
// persisted.
//
// The duplicate check is exact-match at this layer; case-insensitive
// dedup belongs to the profile service that owns the user-facing record.
// The store's unique index still backstops the check, surfacing
// ErrDuplicateEmail if a concurrent registration slips between the lookup
// and the insert.
func (e *Engine) Register(ctx context.Context, email, password string) (*TokenPair, error) {
	if e == nil || e.creds == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}

	if _, err := e.creds.GetByEmail(ctx, email); err == nil {
		e.emitAudit(ctx, auditEventRegister, false, 0, email, ErrEmailTaken, nil)
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	hash, err := e.hasher.Hash(password)
	if err != nil {
		e.emitAudit(ctx, auditEventRegister, false, 0, email, err, func() map[string]string {
			return map[string]string{"reason": "hash_failed"}
		})
		return nil, err
	}

	cred, err := e.creds.Create(ctx, email, hash, RoleUser)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			e.emitAudit(ctx, auditEventRegister, false, 0, email, ErrEmailTaken, func() map[string]string {
				return map[string]string{"reason": "unique_index"}
			})
			return nil, ErrEmailTaken
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	pair, err := e.issueTokens(ctx, cred)
	if err != nil {
		e.emitAudit(ctx, auditEventRegister, false, cred.ID, email, err, func() map[string]string {
			return map[string]string{"reason": "session_write_failed"}
		})
		return nil, err
	}

	e.emitAudit(ctx, auditEventRegister, true, cred.ID, email, nil, nil)
	return pair, nil
}
