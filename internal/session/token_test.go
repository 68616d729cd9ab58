package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTokenIssuer_roundTrip(t *testing.T) {
	issuer := NewTokenIssuer([]byte("secret"), "https://tapfol.io", time.Hour)
	a := &Account{ID: uuid.New(), Email: "bob@example.com", EmailVerified: true}

	token, err := issuer.Issue(a)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != a.ID.String() {
		t.Fatalf("subject mismatch: %q", claims.UserID)
	}
	if !claims.EmailVerified {
		t.Fatal("email_verified claim lost")
	}
}

func TestTokenIssuer_rejectsForeignSecret(t *testing.T) {
	a := &Account{ID: uuid.New(), Email: "bob@example.com"}
	token, err := NewTokenIssuer([]byte("one"), "https://tapfol.io", time.Hour).Issue(a)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewTokenIssuer([]byte("two"), "https://tapfol.io", time.Hour).Verify(token); err == nil {
		t.Fatal("token signed with another secret must not verify")
	}
}

func TestTokenIssuer_rejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer([]byte("secret"), "https://tapfol.io", -time.Minute)
	a := &Account{ID: uuid.New(), Email: "bob@example.com"}

	token, err := issuer.Issue(a)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.Verify(token); err == nil {
		t.Fatal("expired token must not verify")
	}
}

func TestTokenIssuer_rejectsWrongIssuer(t *testing.T) {
	a := &Account{ID: uuid.New(), Email: "bob@example.com"}
	token, err := NewTokenIssuer([]byte("secret"), "https://other.example", time.Hour).Issue(a)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := NewTokenIssuer([]byte("secret"), "https://tapfol.io", time.Hour).Verify(token); err == nil {
		t.Fatal("token from another issuer must not verify")
	}
}
