package token

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestCodec(t *testing.T, secrets ...string) *Codec {
	t.Helper()

	if len(secrets) == 0 {
		secrets = []string{"test-shared-secret"}
	}
	codec, err := NewCodec(Config{Secrets: secrets, Issuer: "identity-service"})
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	return codec
}

func TestMintDecodeRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	tok, err := codec.Mint(42, "alice@example.com", "USER", KindAccess, time.Minute)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	claims, err := codec.Decode(tok)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if claims.Subject != "alice@example.com" {
		t.Fatalf("subject = %q", claims.Subject)
	}
	if claims.Issuer != "identity-service" {
		t.Fatalf("issuer = %q", claims.Issuer)
	}
	if claims.Role != "USER" {
		t.Fatalf("role = %q", claims.Role)
	}
	if claims.Kind() != KindAccess {
		t.Fatalf("tokenType = %q", claims.TokenType)
	}
	uid, err := claims.UserID()
	if err != nil || uid != 42 {
		t.Fatalf("userId = %d, err = %v", uid, err)
	}
}

func TestMintIsUniquePerCall(t *testing.T) {
	// The numeric date claims have one-second resolution, so uniqueness
	// must come from the jti. Without it, a rotation performed within the
	// same second would re-issue the token string it just consumed.
	codec := newTestCodec(t)

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		tok, err := codec.Mint(42, "alice@example.com", "USER", KindRefresh, time.Minute)
		if err != nil {
			t.Fatalf("Mint failed: %v", err)
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("mint %d produced a token string already issued", i)
		}
		seen[tok] = struct{}{}
	}

	tok, err := codec.Mint(42, "alice@example.com", "USER", KindRefresh, time.Minute)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	claims, err := codec.Decode(tok)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if claims.ID == "" {
		t.Fatal("minted token carries no jti")
	}
}

func TestDecodeRejectsForgedSignature(t *testing.T) {
	codec := newTestCodec(t)
	other := newTestCodec(t, "a-different-secret")

	tok, err := other.Mint(1, "a@example.com", "USER", KindAccess, time.Minute)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	if _, err := codec.Decode(tok); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestDecodeRejectsWrongIssuer(t *testing.T) {
	codec := newTestCodec(t)
	foreign, err := NewCodec(Config{Secrets: []string{"test-shared-secret"}, Issuer: "someone-else"})
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	tok, err := foreign.Mint(1, "a@example.com", "USER", KindAccess, time.Minute)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	if _, err := codec.Decode(tok); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	codec := newTestCodec(t)

	for _, tok := range []string{"", "garbage", "a.b", "a.b.c.d"} {
		if _, err := codec.Decode(tok); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("token %q: expected ErrTokenInvalid, got %v", tok, err)
		}
	}
}

func TestDecodeExpiredExposesCause(t *testing.T) {
	codec := newTestCodec(t)

	tok, err := codec.Mint(7, "a@example.com", "USER", KindAccess, -time.Second)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	_, err = codec.Decode(tok)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	// Expired-but-well-formed stays distinguishable internally even though
	// the boundary treats it like any other invalid token.
	if !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected jwt.ErrTokenExpired in chain, got %v", err)
	}
}

func TestDecodeAcceptsPreviousKey(t *testing.T) {
	old := newTestCodec(t, "old-secret")
	rotated := newTestCodec(t, "new-secret", "old-secret")

	tok, err := old.Mint(9, "b@example.com", "ADMIN", KindAccess, time.Minute)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	claims, err := rotated.Decode(tok)
	if err != nil {
		t.Fatalf("Decode with verify-only key failed: %v", err)
	}
	if uid, _ := claims.UserID(); uid != 9 {
		t.Fatalf("userId = %d", uid)
	}

	// The rotated codec must sign with its first key only.
	fresh, err := rotated.Mint(9, "b@example.com", "ADMIN", KindAccess, time.Minute)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	if _, err := old.Decode(fresh); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("old codec must not verify tokens signed by the new key")
	}
}

func TestUserIDClaimShapes(t *testing.T) {
	cases := []struct {
		name    string
		value   any
		want    int64
		wantErr bool
	}{
		{name: "json number", value: float64(42), want: 42},
		{name: "numeric string", value: "42", want: 42},
		{name: "json.Number", value: json.Number("42"), want: 42},
		{name: "fractional number", value: 42.5, wantErr: true},
		{name: "non-numeric string", value: "forty-two", wantErr: true},
		{name: "missing", value: nil, wantErr: true},
		{name: "object", value: map[string]any{"id": 42}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			claims := &Claims{User: tc.value}
			got, err := claims.UserID()
			if tc.wantErr {
				if !errors.Is(err, ErrClaimInvalid) {
					t.Fatalf("expected ErrClaimInvalid, got %v", err)
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("got %d, err %v", got, err)
			}
		})
	}
}

func TestMintedUserIDSurvivesJSONTranscoding(t *testing.T) {
	// Tokens minted here are decoded by services using assorted JSON
	// stacks; the claim written out must be a bare integer.
	codec := newTestCodec(t)

	tok, err := codec.Mint(1234567890123, "c@example.com", "USER", KindRefresh, time.Minute)
	if err != nil {
		t.Fatalf("Mint failed: %v", err)
	}

	claims, err := codec.Decode(tok)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	uid, err := claims.UserID()
	if err != nil || uid != 1234567890123 {
		t.Fatalf("userId = %d, err = %v", uid, err)
	}
	if !strings.Contains(tok, ".") {
		t.Fatalf("unexpected token shape")
	}
}

func TestNewCodecValidation(t *testing.T) {
	if _, err := NewCodec(Config{Issuer: "x"}); err == nil {
		t.Fatal("expected error for missing secrets")
	}
	if _, err := NewCodec(Config{Secrets: []string{"s"}}); err == nil {
		t.Fatal("expected error for missing issuer")
	}
}
