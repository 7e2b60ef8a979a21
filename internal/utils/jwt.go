package utils

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken  = errors.New("missing or malformed credential")
	ErrInvalidToken  = errors.New("invalid token")
	ErrInvalidClaims = errors.New("invalid token claims")
)

// CredentialFromRequest returns the bearer token from the Authorization header,
// falling back to the "token" query parameter used by browser WebSocket clients.
func CredentialFromRequest(r *http.Request) (string, error) {
	if authz := r.Header.Get("Authorization"); authz != "" {
		if !strings.HasPrefix(authz, "Bearer ") {
			return "", ErrMissingToken
		}
		if tok := strings.TrimPrefix(authz, "Bearer "); tok != "" {
			return tok, nil
		}
		return "", ErrMissingToken
	}
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok, nil
	}
	return "", ErrMissingToken
}

// ParseToken validates an HMAC-signed JWT and returns its claims.
func ParseToken(tokenStr string, secret []byte) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}

// UserKeyFromClaims prefers the "username" claim and falls back to "sub".
func UserKeyFromClaims(claims jwt.MapClaims) (string, error) {
	if name, ok := claims["username"].(string); ok && name != "" {
		return name, nil
	}
	sub, ok := claims["sub"]
	if !ok {
		return "", ErrInvalidClaims
	}
	switch v := sub.(type) {
	case string:
		if v == "" {
			return "", ErrInvalidClaims
		}
		return v, nil
	case float64:
		// JWT numbers get decoded as float64
		return fmt.Sprintf("%d", int64(v)), nil
	default:
		return "", ErrInvalidClaims
	}
}

// GenerateToken signs a short-lived identity token, mainly for tests and local tooling.
func GenerateToken(userKey string, secret []byte, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"username": userKey,
		"sub":      userKey,
		"exp":      time.Now().Add(ttl).Unix(),
		"iat":      time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
