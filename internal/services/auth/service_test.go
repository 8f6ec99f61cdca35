package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestValidateAccessTokenRoundTrip(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)
	service := NewService(manager)

	token, _, err := manager.GenerateAccessToken(42, "MEMBER")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := service.ValidateAccessToken(context.Background(), token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.MemberID != 42 {
		t.Fatalf("unexpected member id: %d", claims.MemberID)
	}
	if claims.Role != "MEMBER" {
		t.Fatalf("unexpected role: %s", claims.Role)
	}
}

func TestValidateAccessTokenRejectsExpired(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Minute)
	manager.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }

	token, _, err := manager.GenerateAccessToken(42, "MEMBER")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	service := NewService(manager)
	if _, err := service.ValidateAccessToken(context.Background(), token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestValidateAccessTokenRejectsWrongSecret(t *testing.T) {
	token, _, err := NewJWTManager("secret-a", time.Hour).GenerateAccessToken(7, "MEMBER")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	service := NewService(NewJWTManager("secret-b", time.Hour))
	if _, err := service.ValidateAccessToken(context.Background(), token); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
