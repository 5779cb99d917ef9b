package auth

import (
	"testing"
	"time"

	"github.com/spec-kit/ticketbox/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", 30)

	token, expiresAt, err := tm.GenerateToken("user-1", domain.DashboardRoleAdmin)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if until := time.Until(expiresAt); until < 29*time.Minute || until > 31*time.Minute {
		t.Errorf("expiry %v not ~30m out", until)
	}

	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("user id = %q", claims.UserID)
	}
	if claims.Role != domain.DashboardRoleAdmin {
		t.Errorf("role = %q", claims.Role)
	}
}

func TestTokenRejectedWithWrongSecret(t *testing.T) {
	issuer := NewTokenManager("secret-a", 30)
	verifier := NewTokenManager("secret-b", 30)

	token, _, err := issuer.GenerateToken("user-1", domain.DashboardRoleViewer)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := verifier.ParseToken(token); err == nil {
		t.Fatal("token verified under the wrong secret")
	}
}

func TestGarbageTokenRejected(t *testing.T) {
	tm := NewTokenManager("test-secret", 30)
	if _, err := tm.ParseToken("not.a.jwt"); err == nil {
		t.Fatal("garbage token accepted")
	}
}

func TestTTLDefaultsWhenNonPositive(t *testing.T) {
	tm := NewTokenManager("test-secret", 0)
	_, expiresAt, err := tm.GenerateToken("user-1", domain.DashboardRoleViewer)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if until := time.Until(expiresAt); until < 59*time.Minute || until > 61*time.Minute {
		t.Errorf("expiry %v, want default 60m", until)
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hashed, err := HashPassword("hunter2", 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := ComparePassword(hashed, "hunter2"); err != nil {
		t.Errorf("correct password rejected: %v", err)
	}
	if err := ComparePassword(hashed, "hunter3"); err == nil {
		t.Error("wrong password accepted")
	}
}
