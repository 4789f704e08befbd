// Package signing resolves the platform-wide shared secret into HMAC key
// material. Every process that mints or verifies tokens must derive its key
// through this package: the issuer and all resource services have to agree
// byte-for-byte on the key, and a decoding mismatch between them is a silent
// authentication outage rather than a visible error.
package signing

import "encoding/base64"

// Resolve turns a configured secret string into raw key bytes.
//
// The secret is first treated as standard base64; when it does not decode
// (or decodes to nothing), the raw UTF-8 bytes of the string are used
// instead. The fallback is an expected path, not an error: deployments are
// free to configure either form as long as every process configures the
// same string.
func Resolve(secret string) []byte {
	decoded, err := base64.StdEncoding.DecodeString(secret)
	if err == nil && len(decoded) > 0 {
		return decoded
	}
	return []byte(secret)
}

// ResolveAll resolves an ordered list of secrets. Position is meaningful:
// verifiers treat the first entry as the current key and the remainder as
// verify-only predecessors kept alive through a rotation window.
func ResolveAll(secrets []string) [][]byte {
	keys := make([][]byte, 0, len(secrets))
	for _, s := range secrets {
		keys = append(keys, Resolve(s))
	}
	return keys
}
