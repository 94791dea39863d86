package auth

import (
	"errors"
	"testing"
	"time"

	kwakerrors "kwak/pkg/errors"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)

	token, err := m.Issue(42, "alice")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	identity, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if identity.UserID != 42 {
		t.Errorf("Expected userId 42, got %d", identity.UserID)
	}
	if identity.Username != "alice" {
		t.Errorf("Expected username alice, got %s", identity.Username)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)

	for _, credential := range []string{"", "not-a-token", "a.b.c"} {
		_, err := m.Verify(credential)
		if !errors.Is(err, kwakerrors.ErrAuthenticationFailed) {
			t.Errorf("Verify(%q) = %v, want ErrAuthenticationFailed", credential, err)
		}
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m := NewTokenManager("test-secret", -time.Minute)

	token, err := m.Issue(1, "alice")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	_, err = m.Verify(token)
	if !errors.Is(err, kwakerrors.ErrAuthenticationFailed) {
		t.Errorf("Expected ErrAuthenticationFailed for expired token, got %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenManager("secret-a", time.Hour)
	verifier := NewTokenManager("secret-b", time.Hour)

	token, err := issuer.Issue(1, "alice")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	_, err = verifier.Verify(token)
	if !errors.Is(err, kwakerrors.ErrAuthenticationFailed) {
		t.Errorf("Expected ErrAuthenticationFailed for wrong secret, got %v", err)
	}
}

func TestPasswordHashVerify(t *testing.T) {
	h := NewPasswordHasher()

	hash, err := h.Hash("hunter2")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if !h.Verify("hunter2", hash) {
		t.Error("Verify should accept the correct password")
	}
	if h.Verify("hunter3", hash) {
		t.Error("Verify should reject a wrong password")
	}
}

func TestRateLimiterWindow(t *testing.T) {
	rl := NewRateLimiter(3, time.Hour)

	for i := 0; i < 3; i++ {
		if !rl.AllowRequest("10.0.0.1") {
			t.Fatalf("Attempt %d should be allowed", i+1)
		}
	}

	if rl.AllowRequest("10.0.0.1") {
		t.Error("Fourth attempt should be blocked")
	}

	if !rl.AllowRequest("10.0.0.2") {
		t.Error("Different identifier should not be affected")
	}

	if rl.GetAttempts("10.0.0.1") != 4 {
		t.Errorf("Expected 4 recorded attempts, got %d", rl.GetAttempts("10.0.0.1"))
	}
}

func TestNormalizeUsername(t *testing.T) {
	// "é" composed vs decomposed should normalize to the same string
	composed := "rené"
	decomposed := "rené"

	if NormalizeUsername(composed) != NormalizeUsername(decomposed) {
		t.Error("NFC normalization should unify composed and decomposed forms")
	}

	if NormalizeUsername("  bob  ") != "bob" {
		t.Error("NormalizeUsername should trim whitespace")
	}
}

func TestNormalizeEmail(t *testing.T) {
	if NormalizeEmail(" Alice@Example.COM ") != "alice@example.com" {
		t.Error("NormalizeEmail should lowercase and trim")
	}
}
