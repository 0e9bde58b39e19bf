package realtime

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func signedToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestVerifyTokenValid(t *testing.T) {
	t.Parallel()
	tok := signedToken(t, testSecret, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	claims, err := VerifyToken(tok, testSecret)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if got := claimString(claims, "sub"); got != "user-1" {
		t.Errorf("sub claim: got %q, want user-1", got)
	}
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	t.Parallel()
	tok := signedToken(t, "other-secret", jwt.MapClaims{"sub": "user-1"})

	if _, err := VerifyToken(tok, testSecret); err == nil {
		t.Error("token signed with wrong secret accepted")
	}
}

func TestVerifyTokenExpired(t *testing.T) {
	t.Parallel()
	tok := signedToken(t, testSecret, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	if _, err := VerifyToken(tok, testSecret); err == nil {
		t.Error("expired token accepted")
	}
}

func TestVerifyTokenGarbage(t *testing.T) {
	t.Parallel()
	if _, err := VerifyToken("not.a.token", testSecret); err == nil {
		t.Error("garbage token accepted")
	}
}

func TestVerifyTokenNoSecretConfigured(t *testing.T) {
	t.Parallel()
	tok := signedToken(t, testSecret, jwt.MapClaims{"sub": "user-1"})
	if _, err := VerifyToken(tok, ""); err == nil {
		t.Error("verification without a configured secret accepted")
	}
}

func TestClaimStringMissing(t *testing.T) {
	t.Parallel()
	if got := claimString(jwt.MapClaims{"n": 42}, "n"); got != "" {
		t.Errorf("non-string claim: got %q, want empty", got)
	}
}
