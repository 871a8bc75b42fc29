package auth

import (
	"testing"
	"time"
)

func TestSignAndParse(t *testing.T) {
	token, err := SignJWT(42, "secret", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	uid, err := ParseJWT(token, "secret")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if uid != 42 {
		t.Fatalf("expected uid 42, got %d", uid)
	}

	if _, err := ParseJWT(token, "wrong-secret"); err == nil {
		t.Fatalf("expected failure with wrong secret")
	}
	if _, err := ParseJWT("garbage", "secret"); err == nil {
		t.Fatalf("expected failure for garbage token")
	}
}

func TestExpiredToken(t *testing.T) {
	token, err := SignJWT(7, "secret", -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseJWT(token, "secret"); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}
