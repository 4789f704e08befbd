package identity

import (
	"context"
	"errors"

	"github.com/cartstack/identity/session"
	"github.com/cartstack/identity/token"
)

// Refresh exchanges a refresh token for a new access/refresh pair. The
// presented token is consumed atomically before the new pair is minted, so
// a refresh token is single-use: of any number of concurrent presentations
// of the same token, exactly one succeeds and the rest fail
// ErrInvalidRefresh.
//
// Rejections are uniform. The token failing to decode, carrying the wrong
// tokenType, being expired, missing from the store, the stored row being
// expired, or the stored owner disagreeing with the userId claim all look
// identical to the caller.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil || e.creds == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.codec.Decode(refreshToken)
	if err != nil {
		e.emitAudit(ctx, auditEventRefresh, false, 0, "", ErrInvalidRefresh, func() map[string]string {
			return map[string]string{"reason": "decode_failed"}
		})
		return nil, ErrInvalidRefresh
	}
	if claims.Kind() != token.KindRefresh {
		e.emitAudit(ctx, auditEventRefresh, false, 0, claims.Subject, ErrInvalidRefresh, func() map[string]string {
			return map[string]string{"reason": "wrong_token_type"}
		})
		return nil, ErrInvalidRefresh
	}

	userID, err := claims.UserID()
	if err != nil {
		e.emitAudit(ctx, auditEventRefresh, false, 0, claims.Subject, ErrInvalidRefresh, func() map[string]string {
			return map[string]string{"reason": "claim_invalid"}
		})
		return nil, ErrInvalidRefresh
	}

	sess, err := e.sessions.Consume(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrRedisUnavailable) {
			return nil, errors.Join(ErrStoreUnavailable, err)
		}
		e.emitAudit(ctx, auditEventRefresh, false, userID, claims.Subject, ErrInvalidRefresh, func() map[string]string {
			return map[string]string{"reason": "session_rejected"}
		})
		return nil, ErrInvalidRefresh
	}

	// Store/token desync check: the consumed row must belong to the user
	// named in the token. The row is already gone either way, which is the
	// safe direction for a token this suspicious.
	if sess.UserID != userID {
		e.emitAudit(ctx, auditEventRefresh, false, userID, claims.Subject, ErrInvalidRefresh, func() map[string]string {
			return map[string]string{"reason": "owner_mismatch"}
		})
		return nil, ErrInvalidRefresh
	}

	cred, err := e.creds.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditEventRefresh, false, userID, claims.Subject, ErrInvalidRefresh, func() map[string]string {
				return map[string]string{"reason": "user_gone"}
			})
			return nil, ErrInvalidRefresh
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	pair, err := e.issueTokens(ctx, cred)
	if err != nil {
		e.emitAudit(ctx, auditEventRefresh, false, cred.ID, cred.Email, err, func() map[string]string {
			return map[string]string{"reason": "session_write_failed"}
		})
		return nil, err
	}

	e.emitAudit(ctx, auditEventRefresh, true, cred.ID, cred.Email, nil, nil)
	return pair, nil
}
