// Package identity issues, rotates, and verifies the identity tokens shared
// across the platform's services.
//
// The root package is the token issuer: it verifies credentials, mints
// HS256 access/refresh token pairs, and owns the refresh-session store.
// Resource services never talk to the issuer at request time; they validate
// tokens locally with the verify package against the same shared secret and
// make per-resource decisions with the guard package.
//
// Subpackages:
//
//   - signing: shared-secret to HMAC key resolution (base64 or raw)
//   - token: token minting and decoding
//   - session: Redis refresh-session store with atomic rotate-on-use
//   - password: argon2id implementation of the Hasher contract
//   - postgres: pgx-backed CredentialStore
//   - verify: stateless verification for resource services
//   - guard: claim-based authorization predicates
//   - middleware: net/http bearer guard
//
// A minimal issuer:
//
//	engine, err := identity.New().
//		WithConfig(cfg).
//		WithRedis(rdb).
//		WithCredentialStore(store).
//		WithHasher(hasher).
//		Build()
package identity
