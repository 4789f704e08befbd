// Package guard makes per-resource authorization decisions from a verified
// identity. Both predicates are total: they never error and never panic,
// so handlers can use them directly as gates.
package guard

import "github.com/cartstack/identity/verify"

// CanAccessResource reports whether the caller may act on a resource owned
// by ownerID: admins may, owners may, everyone else (including a nil
// identity) may not.
func CanAccessResource(id *verify.Identity, ownerID int64) bool {
	if id == nil {
		return false
	}
	return IsPrivileged(id) || id.UserID == ownerID
}

// IsPrivileged reports whether any derived authority is exactly the admin
// authority. Role strings that merely resemble it do not count; the
// verify package already normalized and fail-closed the mapping.
func IsPrivileged(id *verify.Identity) bool {
	if id == nil {
		return false
	}
	for _, authority := range id.Authorities {
		if authority == verify.AdminAuthority {
			return true
		}
	}
	return false
}
