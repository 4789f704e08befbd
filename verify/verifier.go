// Package verify validates access tokens inside resource services without
// any call back to the issuer or its session store. A service holds the
// same shared secret (or, during a rotation window, an ordered list of
// secrets) and the expected issuer string, and nothing else.
package verify

import (
	"errors"
	"strings"

	"github.com/cartstack/identity/token"
)

const authorityPrefix = "ROLE_"

// AdminAuthority is the authority string carried by privileged identities.
const AdminAuthority = authorityPrefix + "ADMIN"

// UserAuthority is the authority string carried by regular identities.
const UserAuthority = authorityPrefix + "USER"

// knownAuthorities is the closed set a role claim may map onto. A role
// outside this set yields zero authorities: such a request can still reach
// public endpoints but fails every role-gated check.
var knownAuthorities = map[string]struct{}{
	UserAuthority:  {},
	AdminAuthority: {},
}

// Identity is the request-scoped result of verifying an access token. It
// lives in the request context and is discarded when the request ends.
type Identity struct {
	UserID      int64
	Email       string
	Role        string
	Authorities []string
}

// Config holds a verifying service's immutable settings. Secrets is
// ordered: the first entry is the current key, later entries are
// verify-only keys from a rotation window. A steady-state deployment runs
// a single key; the list is the explicit seam for rotating it.
type Config struct {
	Secrets []string
	Issuer  string
}

// Verifier validates tokens. It is pure and reentrant; one instance serves
// arbitrarily many concurrent requests without locking.
type Verifier struct {
	codec *token.Codec
}

// NewVerifier resolves the secrets and pins the expected issuer.
func NewVerifier(cfg Config) (*Verifier, error) {
	codec, err := token.NewCodec(token.Config{Secrets: cfg.Secrets, Issuer: cfg.Issuer})
	if err != nil {
		return nil, err
	}
	return &Verifier{codec: codec}, nil
}

// Verify validates signature, issuer, and expiry, requires tokenType
// "access", and derives the request identity. Any failure rejects the
// request before business logic runs; there is no partially authenticated
// state.
func (v *Verifier) Verify(tokenStr string) (*Identity, error) {
	claims, err := v.codec.Decode(tokenStr)
	if err != nil {
		return nil, err
	}

	// A refresh token is only currency at the issuer. Presenting one on a
	// resource request is never valid, however fresh its signature.
	if claims.Kind() != token.KindAccess {
		return nil, errors.Join(token.ErrTokenInvalid, errors.New("not an access token"))
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	return &Identity{
		UserID:      userID,
		Email:       claims.Subject,
		Role:        claims.Role,
		Authorities: Authorities(claims.Role),
	}, nil
}

// Authorities maps a role claim onto the known authority set. The value is
// trimmed and upper-cased, prefixed with ROLE_ unless it already carries
// the prefix, then checked against the closed role set. Blank or
// unrecognized roles fail closed with zero authorities.
func Authorities(role string) []string {
	normalized := strings.ToUpper(strings.TrimSpace(role))
	if normalized == "" {
		return nil
	}
	if !strings.HasPrefix(normalized, authorityPrefix) {
		normalized = authorityPrefix + normalized
	}
	if _, ok := knownAuthorities[normalized]; !ok {
		return nil
	}
	return []string{normalized}
}
