package importer

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	authKeyLength = 32
	// 64 symbols, so a random byte masked with 63 picks one uniformly.
	authKeyAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_-"
)

func newAuthKey() (string, error) {
	buf := make([]byte, authKeyLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth key: %w", err)
	}
	for i, b := range buf {
		buf[i] = authKeyAlphabet[b&63]
	}
	return string(buf), nil
}

// newPasswordHash hashes a random secret nobody knows. Imported users sign in
// through moodle and reset the password on the platform if they need one.
func newPasswordHash(cost int) (string, error) {
	secret := make([]byte, 24)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("password secret: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(base64.RawURLEncoding.EncodeToString(secret)), cost)
	if err != nil {
		return "", fmt.Errorf("password hash: %w", err)
	}
	return string(hash), nil
}
