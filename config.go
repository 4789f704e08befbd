package identity

import (
	"errors"
	"time"
)

// minTokenTTL is the floor for both token lifetimes. Shorter values are a
// misconfiguration: clients cannot complete a request/refresh cycle.
const minTokenTTL = time.Minute

// Config holds the issuer's immutable settings. Each process loads its own
// copy at start; nothing here is read from ambient global state.
type Config struct {
	// Secret signs every token and must be identical across the issuer and
	// all verifying services. Base64 or raw; see the signing package.
	Secret string
	// ExtraVerifySecrets are additional verify-only secrets accepted during
	// a key rotation window. The issuer never signs with them.
	ExtraVerifySecrets []string
	// Issuer is the iss claim, matched exactly on every decode.
	Issuer string

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// SessionPrefix namespaces refresh-session keys in Redis.
	SessionPrefix string

	Audit AuditConfig
}

// AuditConfig controls the async audit pipeline.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events instead of blocking issuance when the sink
	// cannot keep up. Dropped counts are observable via Engine.AuditDropped.
	DropIfFull bool
}

// DefaultConfig returns the baseline configuration. Secret and Issuer have
// no defaults and must be set by the caller.
func DefaultConfig() Config {
	return Config{
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		SessionPrefix: "rs",
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

// Validate reports the first configuration problem found.
func (c Config) Validate() error {
	if c.Secret == "" {
		return errors.New("config: secret is required")
	}
	if c.Issuer == "" {
		return errors.New("config: issuer is required")
	}
	if c.AccessTTL < minTokenTTL {
		return errors.New("config: access TTL must be at least one minute")
	}
	if c.RefreshTTL < minTokenTTL {
		return errors.New("config: refresh TTL must be at least one minute")
	}
	if c.RefreshTTL < c.AccessTTL {
		return errors.New("config: refresh TTL must not be shorter than access TTL")
	}
	return nil
}

// verifySecrets returns the ordered secret list: signing secret first.
func (c Config) verifySecrets() []string {
	return append([]string{c.Secret}, c.ExtraVerifySecrets...)
}
