package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	purposeSession = "session"
	purposeReset   = "reset"
)

// Claims is the payload of session and password-reset tokens
type Claims struct {
	Email   string `json:"email"`
	Role    string `json:"role,omitempty"`
	Purpose string `json:"purpose"`
	// Nonce ties a reset token to one reset; it rotates when the password changes
	Nonce string `json:"nonce,omitempty"`
	// Generation is the session generation of the account when the session was issued
	Generation int `json:"gen,omitempty"`
	jwt.RegisteredClaims
}

type tokenIssuer struct {
	secret []byte
	now    func() time.Time
}

func (t tokenIssuer) issue(claims Claims, ttl time.Duration) (string, error) {
	now := t.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (t tokenIssuer) parse(tokenStr, purpose string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Purpose != purpose {
		return nil, fmt.Errorf("token purpose %q, want %q", claims.Purpose, purpose)
	}
	return claims, nil
}

func registered(subject string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{Subject: subject, ID: uuid.NewString()}
}
