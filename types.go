package identity

import (
	"context"
	"time"
)

// Role is the credential role enum. Tokens carry the role as a string
// claim; resource services derive authorities from it.
type Role string

const (
	// RoleUser is the default role assigned on registration.
	RoleUser Role = "USER"
	// RoleAdmin marks privileged accounts. Admin accounts are provisioned
	// out of band; Register never creates one.
	RoleAdmin Role = "ADMIN"
)

// Credential is the issuer-owned account record. The password hash is
// opaque to the engine; only the configured Hasher interprets it.
type Credential struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CredentialStore is the persistence contract the engine requires.
// Implementations must enforce email uniqueness and return
// ErrDuplicateEmail when the constraint trips; absent rows are reported
// as ErrUserNotFound.
type CredentialStore interface {
	// Create inserts a credential and returns it with its assigned id and
	// timestamps populated.
	Create(ctx context.Context, email, passwordHash string, role Role) (*Credential, error)

	// GetByEmail looks a credential up by exact-match email.
	GetByEmail(ctx context.Context, email string) (*Credential, error)

	// GetByID looks a credential up by id.
	GetByID(ctx context.Context, id int64) (*Credential, error)

	// UpdatePasswordHash replaces the stored hash and bumps updated-at.
	UpdatePasswordHash(ctx context.Context, id int64, newHash string) error
}

// Hasher is the opaque one-way password capability. The engine never
// inspects hashes; it only asks the Hasher to produce and verify them.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// TokenPair is the result of every issuance operation (register, login,
// refresh). ExpiresIn is the access-token lifetime in whole seconds.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// UserInfo is the read-only credential projection returned by CurrentUser.
type UserInfo struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
