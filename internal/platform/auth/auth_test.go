package auth

import (
	"strings"
	"testing"
	"time"

	"hookline/internal/platform/config"
)

func TestTokenService_RoundTrip(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "test-secret", Issuer: "hookline", AccessTokenTTL: time.Hour})

	token, err := svc.GenerateAccessToken("scheduler", "service", []string{ScopeWebhooksRetry})
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Subject != "scheduler" || claims.Role != "service" {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if !claims.HasScope(ScopeWebhooksRetry) || claims.HasScope(ScopeDocumentsWrite) {
		t.Errorf("scope check wrong for %v", claims.Scopes)
	}
}

func TestTokenService_RejectsExpiredAndForeignTokens(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "test-secret", Issuer: "hookline", AccessTokenTTL: time.Hour})
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	expired, _ := svc.GenerateAccessToken("ops", "admin", nil)
	if _, err := svc.ValidateToken(expired); err == nil {
		t.Error("expected expired token to be rejected")
	}

	other := NewTokenService(config.JWTConfig{Secret: "other-secret", Issuer: "hookline", AccessTokenTTL: time.Hour})
	foreign, _ := other.GenerateAccessToken("ops", "admin", nil)
	if _, err := NewTokenService(config.JWTConfig{Secret: "test-secret", Issuer: "hookline"}).ValidateToken(foreign); err == nil {
		t.Error("expected token signed with another secret to be rejected")
	}
}

func TestAccessTokens(t *testing.T) {
	raw, hash, err := NewAccessToken()
	if err != nil {
		t.Fatalf("NewAccessToken() error = %v", err)
	}
	if !strings.HasPrefix(raw, "sgn_") {
		t.Errorf("raw token %q missing prefix", raw)
	}
	if !CheckAccessToken(hash, raw) {
		t.Error("CheckAccessToken() rejected the issued token")
	}
	if CheckAccessToken(hash, raw+"x") || CheckAccessToken("", raw) || CheckAccessToken(hash, "") {
		t.Error("CheckAccessToken() accepted a bad token")
	}
}
