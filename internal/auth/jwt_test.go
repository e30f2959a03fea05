package auth

import (
	"testing"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, err := GenerateAccessToken("po@example.com", 7, "Product Owner", 3)
	if err != nil {
		t.Fatalf("generate access token: %v", err)
	}

	claims, err := ParseAccessToken(token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Email() != "po@example.com" {
		t.Fatalf("unexpected email: %q", claims.Email())
	}
	if claims.UserID != 7 || claims.OrgID != 3 {
		t.Fatalf("unexpected ids: user=%d org=%d", claims.UserID, claims.OrgID)
	}
	if claims.Role != "Product Owner" {
		t.Fatalf("unexpected role: %q", claims.Role)
	}
	if claims.TokenType != "" {
		t.Fatalf("access token should not carry a type, got %q", claims.TokenType)
	}
}

func TestRefreshTokenRequiresRefreshType(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	access, err := GenerateAccessToken("dev@example.com", 1, "Developer", 1)
	if err != nil {
		t.Fatalf("generate access token: %v", err)
	}
	if _, err := ParseRefreshToken(access); err == nil {
		t.Fatal("access token accepted as refresh token")
	}

	refresh, err := GenerateRefreshToken("dev@example.com", 1, "Developer", 1)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}
	claims, err := ParseRefreshToken(refresh)
	if err != nil {
		t.Fatalf("parse refresh token: %v", err)
	}
	if claims.TokenType != "refresh" {
		t.Fatalf("unexpected token type: %q", claims.TokenType)
	}
}

func TestRefreshSecretFallsBackToAccessSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "only-secret")
	t.Setenv("JWT_REFRESH_SECRET", "")

	refresh, err := GenerateRefreshToken("po@example.com", 2, "Product Owner", 1)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}
	if _, err := ParseRefreshToken(refresh); err != nil {
		t.Fatalf("parse refresh token with fallback secret: %v", err)
	}
}

func TestTokenHashIsStable(t *testing.T) {
	a := TokenHash("some-token")
	b := TokenHash("some-token")
	if a != b {
		t.Fatalf("hash not stable: %q vs %q", a, b)
	}
	if a == TokenHash("another-token") {
		t.Fatal("distinct tokens produced equal hashes")
	}
	if len(a) != 64 {
		t.Fatalf("unexpected hash length: %d", len(a))
	}
}
