// Package session persists refresh-token sessions in Redis and implements
// the rotate-on-use protocol: a refresh token is consumed (deleted) in the
// same atomic step that reads it, so exactly one of any number of
// concurrent presentations of the same token can succeed.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when no session exists for a token.
var ErrSessionNotFound = errors.New("refresh session not found")

// ErrSessionExpired is returned when the stored expiry has passed.
var ErrSessionExpired = errors.New("refresh session expired")

// ErrSessionCorrupt is returned when the stored blob does not decode.
var ErrSessionCorrupt = errors.New("refresh session corrupt")

// ErrRedisUnavailable wraps transport-level Redis failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

const (
	consumeStatusNotFound int64 = 0
	consumeStatusExpired  int64 = 1
	consumeStatusConsumed int64 = 2
	consumeStatusCorrupt  int64 = 3
)

// consumeScript deletes the session row in the same step that reads it.
// Whoever gets the row wins; every other concurrent caller sees not-found.
// Expiry is checked after the delete so an expired row is also cleaned up
// by the attempt that discovers it.
const consumeScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return {0}
end
redis.call("DEL", KEYS[1])
local ok, sess = pcall(cjson.decode, data)
if not ok or type(sess) ~= "table" or not sess.user_id then
  return {3}
end
redis.call("SREM", ARGV[1] .. sess.user_id, ARGV[2])
if tonumber(sess.expires_at or 0) <= tonumber(ARGV[3]) then
  return {1}
end
return {2, data}
`

var consumeLua = redis.NewScript(consumeScript)

const deleteScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return {0}
end
redis.call("DEL", KEYS[1])
local ok, sess = pcall(cjson.decode, data)
if ok and type(sess) == "table" and sess.user_id then
  redis.call("SREM", ARGV[1] .. sess.user_id, ARGV[2])
  return {1, data}
end
return {1}
`

var deleteLua = redis.NewScript(deleteScript)

// Store is the Redis-backed refresh session store. Rows are keyed by the
// token digest; a per-user SET indexes digests for bulk invalidation.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a Store using prefix as the Redis key namespace.
func NewStore(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "rs"
	}
	return &Store{redis: rdb, prefix: prefix}
}

func (s *Store) sessionKey(token string) string {
	return s.prefix + ":" + tokenDigest(token)
}

func (s *Store) userKeyPrefix() string {
	return s.prefix + ":u:"
}

func (s *Store) userKey(userID int64) string {
	return fmt.Sprintf("%s%d", s.userKeyPrefix(), userID)
}

// Save persists a session for the given token string. The Redis TTL mirrors
// the session lifetime as cleanup; correctness never depends on it because
// Consume and Get re-check the stored expiry.
func (s *Store) Save(ctx context.Context, token string, sess *Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}

	digest := tokenDigest(token)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.prefix+":"+digest, data, ttl)
		pipe.SAdd(ctx, s.userKey(sess.UserID), digest)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get returns the session for a token without consuming it.
func (s *Store) Get(ctx context.Context, token string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess := &Session{}
	if err := json.Unmarshal(data, sess); err != nil {
		return nil, ErrSessionCorrupt
	}
	if sess.ExpiresAt <= time.Now().Unix() {
		return nil, ErrSessionExpired
	}

	return sess, nil
}

// Consume atomically removes and returns the session for a token. Of N
// concurrent Consume calls with the same token, exactly one receives the
// session; the rest fail ErrSessionNotFound. An expired row fails
// ErrSessionExpired and is deleted by the same call.
func (s *Store) Consume(ctx context.Context, token string) (*Session, error) {
	digest := tokenDigest(token)
	result, err := consumeLua.Run(
		ctx,
		s.redis,
		[]string{s.prefix + ":" + digest},
		s.userKeyPrefix(),
		digest,
		time.Now().Unix(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) == 0 {
		return nil, fmt.Errorf("%w: invalid consume script response", ErrRedisUnavailable)
	}
	code, ok := parts[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid consume script status", ErrRedisUnavailable)
	}

	switch code {
	case consumeStatusNotFound:
		return nil, ErrSessionNotFound
	case consumeStatusExpired:
		return nil, ErrSessionExpired
	case consumeStatusCorrupt:
		return nil, ErrSessionCorrupt
	case consumeStatusConsumed:
		if len(parts) < 2 {
			return nil, fmt.Errorf("%w: missing consume payload", ErrRedisUnavailable)
		}
		var blob []byte
		switch v := parts[1].(type) {
		case string:
			blob = []byte(v)
		case []byte:
			blob = v
		default:
			return nil, fmt.Errorf("%w: invalid consume payload", ErrRedisUnavailable)
		}

		sess := &Session{}
		if err := json.Unmarshal(blob, sess); err != nil {
			return nil, ErrSessionCorrupt
		}
		return sess, nil
	default:
		return nil, fmt.Errorf("%w: unknown consume script status", ErrRedisUnavailable)
	}
}

// Delete removes the session for a token and returns what was removed so
// the caller can attribute the revocation. Deleting an absent token is not
// an error; logout is idempotent and a nil session marks the no-op (or an
// undecodable row, which is still gone).
func (s *Store) Delete(ctx context.Context, token string) (*Session, error) {
	digest := tokenDigest(token)
	result, err := deleteLua.Run(
		ctx,
		s.redis,
		[]string{s.prefix + ":" + digest},
		s.userKeyPrefix(),
		digest,
	).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) < 2 {
		return nil, nil
	}
	blob, ok := parts[1].(string)
	if !ok {
		return nil, nil
	}

	sess := &Session{}
	if err := json.Unmarshal([]byte(blob), sess); err != nil {
		return nil, nil
	}
	return sess, nil
}

// DeleteAllForUser removes every session owned by a user. A session created
// between the index read and the delete phase is not captured; the caller
// races such a login benignly and the stray session expires on its own TTL.
func (s *Store) DeleteAllForUser(ctx context.Context, userID int64) error {
	userKey := s.userKey(userID)

	digests, err := s.redis.SMembers(ctx, userKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, digest := range digests {
			pipe.Del(ctx, s.prefix+":"+digest)
		}
		pipe.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// ActiveSessionCount reports how many sessions are indexed for a user.
// Diagnostic surface; the count may briefly include rows Redis has already
// expired.
func (s *Store) ActiveSessionCount(ctx context.Context, userID int64) (int, error) {
	count, err := s.redis.SCard(ctx, s.userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}

// Ping reports point-in-time Redis availability and latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
