// Package auth issues and validates the session tokens that gate the
// websocket audio transport.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the claims in a sketchbook session token.
type SessionClaims struct {
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// TokenTTL is how long a session token stays valid. A frontend session lives
// no longer than a page load, so a day is generous.
const TokenTTL = 24 * time.Hour

// GenerateSessionToken signs a token for one frontend session.
func GenerateSessionToken(sessionID string, secret []byte) (string, error) {
	claims := &SessionClaims{
		SessionID: sessionID,
		Role:      "session",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken parses and validates a session token.
func ValidateToken(tokenString string, secret []byte) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*SessionClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrInvalidKey
}
