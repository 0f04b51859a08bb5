package auth

import (
	"context"
	"errors"
	"testing"
)

func TestDevTokens(t *testing.T) {
	v, err := New(context.Background(), Options{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	p, err := v.Verify(context.Background(), "acme:Planner")
	if err != nil || p.Tenant != "acme" || p.Role != "planner" {
		t.Fatalf("p=%+v err=%v", p, err)
	}
	if _, err := v.Verify(context.Background(), "nope"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestHMACTokens(t *testing.T) {
	secret := []byte("s3cret")
	v, err := New(context.Background(), Options{Mode: ModeHMAC, HMACSecret: secret})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	tok, _ := SignHS256(secret, map[string]any{"tenant": "acme", "role": "ADMIN", "sub": "u1"})
	p, err := v.Verify(context.Background(), tok)
	if err != nil || p.Tenant != "acme" || p.Role != "admin" || p.Subject != "u1" {
		t.Fatalf("p=%+v err=%v", p, err)
	}
	forged, _ := SignHS256([]byte("other"), map[string]any{"tenant": "acme"})
	if _, err := v.Verify(context.Background(), forged); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("forged token accepted: %v", err)
	}
	noTenant, _ := SignHS256(secret, map[string]any{"role": "admin"})
	if _, err := v.Verify(context.Background(), noTenant); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token without tenant accepted: %v", err)
	}
	def, _ := SignHS256(secret, map[string]any{"tenant": "acme"})
	if p, _ := v.Verify(context.Background(), def); p.Role != "viewer" {
		t.Fatalf("default role=%q", p.Role)
	}
}

func TestNewRejectsBadModes(t *testing.T) {
	if _, err := New(context.Background(), Options{Mode: ModeHMAC}); err == nil {
		t.Fatalf("hmac without secret accepted")
	}
	if _, err := New(context.Background(), Options{Mode: "jwks"}); err == nil {
		t.Fatalf("unknown mode accepted")
	}
}
