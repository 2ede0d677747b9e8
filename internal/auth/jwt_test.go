package auth

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndValidate(t *testing.T) {
	mgr := NewJWTManager("test-secret-key-with-enough-bytes", time.Hour)

	token, err := mgr.Generate("ada")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	claims, err := mgr.Validate(token)
	if err != nil {
		t.Fatalf("failed to validate token: %v", err)
	}
	if claims.UserID != "ada" {
		t.Errorf("expected user id %q, got %q", "ada", claims.UserID)
	}
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	mgr := NewJWTManager("secret-one-secret-one-secret-one", time.Hour)
	other := NewJWTManager("secret-two-secret-two-secret-two", time.Hour)

	token, err := mgr.Generate("ada")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	if _, err := other.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	mgr := NewJWTManager("test-secret-key-with-enough-bytes", -time.Minute)

	token, err := mgr.Generate("ada")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	if _, err := mgr.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	mgr := NewJWTManager("test-secret-key-with-enough-bytes", time.Hour)
	if _, err := mgr.Validate("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
