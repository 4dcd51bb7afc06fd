package jwt

import (
	"testing"

	"pgregory.net/rapid"
)

// TestProperty_TokenRoundTrip tests that for any identity, a generated token
// parses back to exactly the same claims, so the auth middleware always sees
// the identity the login handler issued.
func TestProperty_TokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("property-secret", 24, 168)

	rapid.Check(t, func(t *rapid.T) {
		userID := rapid.Uint().Draw(t, "userID")
		userName := rapid.StringN(1, 50, -1).Draw(t, "userName")
		userEmail := rapid.StringN(3, 100, -1).Draw(t, "userEmail")

		token, err := tm.GenerateToken(userID, userName, userEmail)
		if err != nil {
			t.Fatalf("GenerateToken failed: %v", err)
		}

		claims, err := tm.ParseToken(token)
		if err != nil {
			t.Fatalf("ParseToken failed: %v", err)
		}

		if claims.UserID != userID {
			t.Fatalf("UserID mismatch: got %d, want %d", claims.UserID, userID)
		}
		if claims.UserName != userName {
			t.Fatalf("UserName mismatch: got %q, want %q", claims.UserName, userName)
		}
		if claims.UserEmail != userEmail {
			t.Fatalf("UserEmail mismatch: got %q, want %q", claims.UserEmail, userEmail)
		}
	})
}

// TestProperty_TokenSecretIsolation tests that tokens issued under one secret
// never parse under a different secret.
func TestProperty_TokenSecretIsolation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		secretA := rapid.StringN(8, 64, -1).Draw(t, "secretA")
		secretB := rapid.StringN(8, 64, -1).Draw(t, "secretB")
		if secretA == secretB {
			t.Skip("identical secrets")
		}

		tmA := NewTokenManager(secretA, 24, 168)
		tmB := NewTokenManager(secretB, 24, 168)

		token, err := tmA.GenerateToken(1, "user", "user@example.com")
		if err != nil {
			t.Fatalf("GenerateToken failed: %v", err)
		}

		if _, err := tmB.ParseToken(token); err == nil {
			t.Fatalf("token signed with %q parsed under %q", secretA, secretB)
		}
	})
}
