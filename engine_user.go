package identity

import (
	"context"
	"errors"
)

// CurrentUser returns the read-only projection of a credential.
func (e *Engine) CurrentUser(ctx context.Context, email string) (*UserInfo, error) {
	if e == nil || e.creds == nil {
		return nil, ErrEngineNotReady
	}

	cred, err := e.creds.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	return &UserInfo{
		ID:        cred.ID,
		Email:     cred.Email,
		Role:      cred.Role,
		CreatedAt: cred.CreatedAt,
		UpdatedAt: cred.UpdatedAt,
	}, nil
}
