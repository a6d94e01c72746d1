package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token types carried in the claims; refresh tokens are only accepted
// by the refresh endpoint.
const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

var jwtSecret []byte

var ErrInvalidToken = errors.New("invalid or expired token")

// SetJWTSecret configures the signing key. Must be called before any
// token is generated or parsed.
func SetJWTSecret(secret string) {
	jwtSecret = []byte(secret)
}

// Claims is the JWT payload for both access and refresh tokens.
type Claims struct {
	UserID    string `json:"uid"`
	TenantID  string `json:"tid"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// GenerateToken signs a token for the user scoped to a tenant.
func GenerateToken(userID, tenantID, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    userID,
		TenantID:  tenantID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ParseToken validates the signature and expiry and returns the claims.
func ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
