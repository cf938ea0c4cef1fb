package util

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParseSessionToken(t *testing.T) {
	SetJWTSecret("jwt-test-secret")

	tok, exp, err := IssueSessionToken(42, "agent@example.com", 2, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	claims, err := ParseSessionToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, "agent@example.com", claims.Email)
	assert.Equal(t, uint32(2), claims.RoleID)
	assert.NotEmpty(t, claims.ID)

	other, _, err := IssueSessionToken(42, "agent@example.com", 2, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, tok, other, "jti keeps tokens unique")
}

func TestParseSessionToken_WrongSecret(t *testing.T) {
	SetJWTSecret("first")
	tok, _, err := IssueSessionToken(1, "a@example.com", 1, time.Hour)
	require.NoError(t, err)

	SetJWTSecret("second")
	_, err = ParseSessionToken(tok)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestParseSessionToken_Expired(t *testing.T) {
	SetJWTSecret("exp-secret")
	claims := SessionClaims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("exp-secret"))
	require.NoError(t, err)

	_, err = ParseSessionToken(tok)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestIssueSessionToken_NoSecret(t *testing.T) {
	SetJWTSecret("")
	defer SetJWTSecret("test-secret-123")
	_, _, err := IssueSessionToken(1, "a@example.com", 1, time.Hour)
	assert.Error(t, err)
}
