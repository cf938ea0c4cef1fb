package util

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionTTL is how long a login token stays valid.
const SessionTTL = time.Hour

// SessionClaims are carried in the signed session token.
type SessionClaims struct {
	Email  string `json:"email"`
	RoleID uint32 `json:"role_id"`
	jwt.RegisteredClaims
}

// IssueSessionToken signs an HS256 token for userID. Each token gets a random jti so
// two logins in the same second never collide on the sessions unique index.
func IssueSessionToken(userID uint, email string, roleID uint32, ttl time.Duration) (string, time.Time, error) {
	secret := GetJWTSecretByte()
	if len(secret) == 0 {
		return "", time.Time{}, errors.New("jwt secret is not configured")
	}
	if ttl <= 0 {
		ttl = SessionTTL
	}
	now := time.Now()
	exp := now.Add(ttl)
	claims := SessionClaims{
		Email:  email,
		RoleID: roleID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   fmt.Sprintf("%d", userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, exp, nil
}

// ParseSessionToken verifies the signature and expiry of a session token.
func ParseSessionToken(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return GetJWTSecretByte(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}
