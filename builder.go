package identity

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/cartstack/identity/session"
	"github.com/cartstack/identity/token"
)

// Builder assembles an Engine. A Builder is single-use: Build validates the
// configuration, wires the token codec and session store, and hands back an
// immutable Engine.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	creds  CredentialStore
	hasher Hasher
	sink   AuditSink

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the builder's configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the Redis client backing the refresh session store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the credential persistence implementation.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.creds = store
	return b
}

// WithHasher sets the opaque password hasher.
func (b *Builder) WithHasher(h Hasher) *Builder {
	b.hasher = h
	return b
}

// WithAuditSink sets the audit destination. Without one, events go to a
// NoOpSink when auditing is enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// Build validates the configuration and returns the assembled Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if b.creds == nil {
		return nil, errors.New("credential store is required")
	}
	if b.hasher == nil {
		return nil, errors.New("password hasher is required")
	}

	codec, err := token.NewCodec(token.Config{
		Secrets: b.config.verifySecrets(),
		Issuer:  b.config.Issuer,
	})
	if err != nil {
		return nil, err
	}

	b.built = true

	return &Engine{
		config:   b.config,
		creds:    b.creds,
		hasher:   b.hasher,
		sessions: session.NewStore(b.redis, b.config.SessionPrefix),
		codec:    codec,
		audit:    newAuditDispatcher(b.config.Audit, b.sink),
	}, nil
}
