package auth

import (
	"testing"
	"time"

	"github.com/lazycook/chat-platform/internal/plan"
)

func TestSignAndParseJWT(t *testing.T) {
	tok, err := SignJWT(42, plan.Pro, "secret", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	claims, err := ParseJWT(tok, "secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	uid, err := claims.UserID()
	if err != nil || uid != 42 {
		t.Fatalf("unexpected user id: %d err=%v", uid, err)
	}
	if claims.Plan != plan.Pro {
		t.Fatalf("unexpected plan: %s", claims.Plan)
	}
}

func TestParseJWT_WrongSecret(t *testing.T) {
	tok, _ := SignJWT(1, plan.Go, "secret", time.Hour)
	if _, err := ParseJWT(tok, "other"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseJWT_Expired(t *testing.T) {
	tok, _ := SignJWT(1, plan.Go, "secret", -time.Minute)
	if _, err := ParseJWT(tok, "secret"); err != ErrExpiredToken {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestParseJWT_Garbage(t *testing.T) {
	if _, err := ParseJWT("you@example.com", "secret"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestPassword(t *testing.T) {
	h, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(h, "hunter2") {
		t.Fatalf("expected password to match")
	}
	if CheckPassword(h, "hunter3") {
		t.Fatalf("expected mismatch")
	}
}
