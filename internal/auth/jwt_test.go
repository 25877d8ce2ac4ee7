package auth

import (
	"context"
	"testing"
	"time"
)

func TestGenerateAndValidateToken(t *testing.T) {
	mgr := NewJWTManager("test-secret-key-123")
	token, err := mgr.GenerateToken("hannibal", "decide")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	claims, err := mgr.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if claims.Subject != "hannibal" {
		t.Errorf("expected subject=hannibal, got %s", claims.Subject)
	}
	if claims.Scope != "decide" {
		t.Errorf("expected scope=decide, got %s", claims.Scope)
	}
	if claims.Issuer != "hannibal" {
		t.Errorf("expected issuer=hannibal, got %s", claims.Issuer)
	}
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, _ := NewJWTManager("secret-a").GenerateToken("x", "")
	if _, err := NewJWTManager("secret-b").ValidateToken(token); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateTokenExpired(t *testing.T) {
	mgr := NewJWTManager("secret").WithExpiry(-time.Minute)
	token, err := mgr.GenerateToken("x", "")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := mgr.ValidateToken(token); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestValidateTokenGarbage(t *testing.T) {
	if _, err := NewJWTManager("secret").ValidateToken("not.a.jwt"); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestSignedCredentialMintsValidTokens(t *testing.T) {
	mgr := NewJWTManager("secret")
	cred := NewSignedCredential(mgr, "loop", "decide")
	tok, err := cred.Token(context.Background())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	claims, err := mgr.ValidateToken(tok)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Subject != "loop" {
		t.Errorf("subject = %q", claims.Subject)
	}
}

func TestStaticCredential(t *testing.T) {
	tok, err := StaticCredential("sk-123").Token(context.Background())
	if err != nil || tok != "sk-123" {
		t.Errorf("Token() = %q, %v", tok, err)
	}
	if _, err := StaticCredential("").Token(context.Background()); err != ErrMissingToken {
		t.Errorf("expected ErrMissingToken, got %v", err)
	}
}
