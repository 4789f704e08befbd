package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/cartstack/identity/session"
	"github.com/cartstack/identity/token"
)

// Engine is the token issuer: the one component that mints tokens and
// writes refresh sessions. Resource services never hold an Engine; they
// verify statelessly with the verify package.
//
// An Engine is immutable after Build and safe for concurrent use.
type Engine struct {
	config   Config
	creds    CredentialStore
	hasher   Hasher
	sessions *session.Store
	codec    *token.Codec
	audit    *auditDispatcher
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped reports how many audit events were shed because the buffer
// was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// issueTokens mints an access/refresh pair for cred and persists the
// refresh session. Issuance and the session write are one unit: when the
// store write fails no token leaves the engine, even though a pair was
// computed in memory.
func (e *Engine) issueTokens(ctx context.Context, cred *Credential) (*TokenPair, error) {
	accessToken, err := e.codec.Mint(cred.ID, cred.Email, string(cred.Role), token.KindAccess, e.config.AccessTTL)
	if err != nil {
		return nil, err
	}

	refreshToken, err := e.codec.Mint(cred.ID, cred.Email, string(cred.Role), token.KindRefresh, e.config.RefreshTTL)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &session.Session{
		ID:        uuid.NewString(),
		UserID:    cred.ID,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(e.config.RefreshTTL).Unix(),
	}
	if err := e.sessions.Save(ctx, refreshToken, sess, e.config.RefreshTTL); err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    e.config.AccessTTL.Milliseconds() / 1000,
	}, nil
}

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID int64,
	email string,
	failure error,
	metadata func() map[string]string,
) {
	if e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		UserID:    userID,
		Email:     email,
		IP:        clientIPFromContext(ctx),
		Success:   success,
	}
	if failure != nil {
		event.Error = failure.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}

	e.audit.Emit(ctx, event)
}
