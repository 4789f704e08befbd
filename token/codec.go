// Package token mints and decodes the signed tokens shared across the
// platform's services. Tokens are HS256 JWTs carrying the subject (user
// email), the configured issuer, and the userId/role/tokenType claims.
package token

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/cartstack/identity/signing"
)

// Kind distinguishes access tokens from refresh tokens. The two shapes are
// identical on the wire; only the tokenType claim separates them, and every
// consumer must check it rather than inferring the kind from context.
type Kind string

const (
	// KindAccess marks short-lived tokens presented on resource requests.
	KindAccess Kind = "access"
	// KindRefresh marks tokens exchanged at the issuer for a new pair.
	KindRefresh Kind = "refresh"
)

var (
	// ErrTokenInvalid is returned when a token fails signature, structure,
	// issuer, or expiry validation. Decode joins it with the underlying
	// cause so callers can inspect (for example) jwt.ErrTokenExpired while
	// still surfacing a uniform failure at the API boundary.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrClaimInvalid is returned when the userId claim is present but not
	// representable as an integer.
	ErrClaimInvalid = errors.New("invalid userId claim")
)

// Claims is the token payload. User stays untyped because serialization
// libraries across the platform have historically emitted the userId claim
// as a JSON number or a string; UserID narrows it defensively.
type Claims struct {
	User      any    `json:"userId"`
	Role      string `json:"role"`
	TokenType string `json:"tokenType"`
	jwt.RegisteredClaims
}

// UserID decodes the userId claim. Integral JSON numbers and numeric
// strings are accepted; anything else fails with ErrClaimInvalid.
func (c *Claims) UserID() (int64, error) {
	switch v := c.User.(type) {
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v > math.MaxInt64 {
			return 0, ErrClaimInvalid
		}
		return int64(v), nil
	case json.Number:
		id, err := v.Int64()
		if err != nil {
			return 0, ErrClaimInvalid
		}
		return id, nil
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, ErrClaimInvalid
		}
		return id, nil
	case int64:
		return v, nil
	default:
		return 0, ErrClaimInvalid
	}
}

// Kind returns the tokenType claim as a Kind.
func (c *Claims) Kind() Kind {
	return Kind(c.TokenType)
}

// Config holds the immutable codec settings. Secrets is ordered: the first
// entry signs, every entry verifies. Running with more than one secret is
// how a key rotation window is expressed.
type Config struct {
	Secrets []string
	Issuer  string
}

// Codec signs and verifies tokens against the resolved shared keys. It is
// pure and safe for concurrent use.
type Codec struct {
	keys   [][]byte
	issuer string
}

// NewCodec resolves the configured secrets (see the signing package for the
// base64-or-raw rule) and pins the expected issuer.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secrets) == 0 || cfg.Secrets[0] == "" {
		return nil, errors.New("token: at least one non-empty secret is required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("token: issuer is required")
	}
	return &Codec{
		keys:   signing.ResolveAll(cfg.Secrets),
		issuer: cfg.Issuer,
	}, nil
}

// Mint produces a signed token for the given user. iat is now, exp is
// now + ttl, sub is the user's email, iss is the configured issuer.
//
// Every mint carries a fresh jti. The numeric date claims truncate to whole
// seconds, so without it two mints for the same user in the same second
// would produce byte-identical token strings, and a rotation could hand
// back the very token it just consumed.
func (c *Codec) Mint(userID int64, email, role string, kind Kind, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		User:      userID,
		Role:      role,
		TokenType: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   email,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.keys[0])
}

// Decode verifies a token string and returns its claims. The signature is
// checked against every configured key in order; issuer and expiry are
// validated by the parser. All failures are joined with ErrTokenInvalid.
func (c *Codec) Decode(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
	)

	var lastErr error
	for _, key := range c.keys {
		claims := &Claims{}
		tok, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
			return key, nil
		})
		if err == nil && tok.Valid {
			return claims, nil
		}
		lastErr = err
		if !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			break
		}
	}
	if lastErr == nil {
		lastErr = jwt.ErrTokenInvalidClaims
	}

	return nil, errors.Join(ErrTokenInvalid, lastErr)
}
