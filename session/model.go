package session

import (
	"crypto/sha256"
	"encoding/hex"
)

// Session is the stored metadata for one refresh token. The token string
// itself is never persisted; rows are keyed by its SHA-256 digest so a
// Redis snapshot does not contain replayable bearer credentials.
type Session struct {
	ID        string `json:"id"`
	UserID    int64  `json:"user_id"`
	CreatedAt int64  `json:"created_at"`
	ExpiresAt int64  `json:"expires_at"`
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
