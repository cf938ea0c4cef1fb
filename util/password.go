package util

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

var (
	jwtSecretValue = getEnv("JWTSECRET", "")
	jwtSecret      = jwtSecretValue
	jwtSecretByte  = []byte(jwtSecretValue)
	jwtMutex       sync.RWMutex
)

const (
	argon2Prefix      = "argon2id$"
	argon2Time        = 1
	argon2Memory      = 64 * 1024
	argon2Parallelism = 4
	argon2KeyLen      = 32
	saltLength        = 16
)

// ErrInvalidHash is returned when a stored argon2 hash cannot be parsed.
var ErrInvalidHash = errors.New("invalid password hash format")

func getEnv(key, fallback string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	return value
}

// HashPassword is the legacy HMAC-SHA256 hash keyed by the JWT secret. It is only
// used to verify accounts created before argon2 hashing; see VerifyPassword.
func HashPassword(password string) (hashedPassword string) {
	secretByte := GetJWTSecretByte()
	h := hmac.New(sha256.New, secretByte)
	h.Write([]byte(password))
	hashedPassword = hex.EncodeToString(h.Sum(nil))
	return
}

// GenerateSalt returns a random base64 salt.
func GenerateSalt() (string, error) {
	b := make([]byte, saltLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return base64.RawStdEncoding.EncodeToString(b), nil
}

// HashPasswordArgon2 hashes password with argon2id and returns
// "argon2id$<time>$<memory>$<threads>$<b64 key>".
func HashPasswordArgon2(password, salt string) (string, error) {
	if salt == "" {
		return "", fmt.Errorf("salt cannot be empty")
	}
	key := argon2.IDKey([]byte(password), []byte(salt), argon2Time, argon2Memory, argon2Parallelism, argon2KeyLen)
	return fmt.Sprintf("%s%d$%d$%d$%s", argon2Prefix, argon2Time, argon2Memory, argon2Parallelism,
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// IsArgon2Hash reports whether stored was produced by HashPasswordArgon2.
func IsArgon2Hash(stored string) bool {
	return strings.HasPrefix(stored, argon2Prefix)
}

// VerifyPassword compares password with stored. Argon2 hashes are recomputed with
// their recorded parameters; anything else is treated as a legacy HMAC hash.
func VerifyPassword(password, stored, salt string) (bool, error) {
	if !IsArgon2Hash(stored) {
		legacy := HashPassword(password)
		return subtle.ConstantTimeCompare([]byte(legacy), []byte(stored)) == 1, nil
	}

	var t, m uint32
	var p uint8
	var encoded string
	parts := strings.Split(strings.TrimPrefix(stored, argon2Prefix), "$")
	if len(parts) != 4 {
		return false, ErrInvalidHash
	}
	if _, err := fmt.Sscanf(strings.Join(parts[:3], " "), "%d %d %d", &t, &m, &p); err != nil {
		return false, ErrInvalidHash
	}
	encoded = parts[3]
	want, err := base64.RawStdEncoding.DecodeString(encoded)
	if err != nil {
		return false, ErrInvalidHash
	}
	got := argon2.IDKey([]byte(password), []byte(salt), t, m, p, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// SetJWTSecret allows tests or runtime code to update the JWT secret used
// for both token signing and password hashing. This function is thread-safe
// and can be called concurrently. Tests using this should avoid parallel execution
// if they need deterministic secret values.
func SetJWTSecret(secret string) {
	jwtMutex.Lock()
	defer jwtMutex.Unlock()
	jwtSecret = secret
	jwtSecretByte = []byte(secret)
}

// GetJWTSecretByte returns a copy of the current JWT secret bytes in a thread-safe manner.
func GetJWTSecretByte() []byte {
	jwtMutex.RLock()
	defer jwtMutex.RUnlock()
	// Return a copy to prevent external modifications using idiomatic Go pattern
	return append([]byte(nil), jwtSecretByte...)
}
