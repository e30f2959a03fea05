package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	accessTokenTTL  = 30 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
)

var (
	errMissingSecret  = errors.New("JWT_SECRET is not set")
	errNotRefreshType = errors.New("token is not a refresh token")
)

func tokenSecret() ([]byte, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, errMissingSecret
	}
	return []byte(secret), nil
}

// refreshSecret falls back to JWT_SECRET when no dedicated refresh secret is set.
func refreshSecret() ([]byte, error) {
	if secret := os.Getenv("JWT_REFRESH_SECRET"); secret != "" {
		return []byte(secret), nil
	}
	return tokenSecret()
}

type Claims struct {
	UserID    int64  `json:"id"`
	Role      string `json:"role"`
	OrgID     int64  `json:"org_id"`
	TokenType string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// Email returns the subject claim, which carries the user's email.
func (c *Claims) Email() string {
	return c.Subject
}

func GenerateAccessToken(email string, userID int64, role string, orgID int64) (string, error) {
	secret, err := tokenSecret()
	if err != nil {
		return "", err
	}
	return signToken(secret, email, userID, role, orgID, "", accessTokenTTL)
}

func GenerateRefreshToken(email string, userID int64, role string, orgID int64) (string, error) {
	secret, err := refreshSecret()
	if err != nil {
		return "", err
	}
	return signToken(secret, email, userID, role, orgID, "refresh", refreshTokenTTL)
}

func signToken(secret []byte, email string, userID int64, role string, orgID int64, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    userID,
		Role:      role,
		OrgID:     orgID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func ParseAccessToken(tokenString string) (*Claims, error) {
	secret, err := tokenSecret()
	if err != nil {
		return nil, err
	}
	return parseToken(tokenString, secret)
}

func ParseRefreshToken(tokenString string) (*Claims, error) {
	secret, err := refreshSecret()
	if err != nil {
		return nil, err
	}
	claims, err := parseToken(tokenString, secret)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != "refresh" {
		return nil, errNotRefreshType
	}
	return claims, nil
}

func parseToken(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}

	return claims, nil
}

// TokenHash is the blacklist key for a raw token.
func TokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
