package utils

import (
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/scrypt"
)

// Parameters of the legacy "salt:hexkey" scrypt hashes.
const (
	legacyScryptN      = 16384
	legacyScryptR      = 8
	legacyScryptP      = 1
	legacyScryptKeyLen = 64
)

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword compares a stored hash with a plain password in constant
// time. Both bcrypt hashes and legacy scrypt hashes are accepted.
func VerifyPassword(hash, plain string) bool {
	if IsLegacyHash(hash) {
		return verifyLegacy(hash, plain)
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// NeedsRehash reports whether a verified hash should be replaced with a
// fresh bcrypt hash at the given cost.
func NeedsRehash(hash string, cost int) bool {
	if IsLegacyHash(hash) {
		return true
	}
	c, err := bcrypt.Cost([]byte(hash))
	return err != nil || c < cost
}

// IsLegacyHash reports whether hash uses the scrypt "salt:hexkey" format.
func IsLegacyHash(hash string) bool {
	salt, key, ok := strings.Cut(hash, ":")
	return ok && salt != "" && key != "" && !strings.HasPrefix(hash, "$2")
}

func verifyLegacy(hash, plain string) bool {
	salt, keyHex, _ := strings.Cut(hash, ":")
	want, err := hex.DecodeString(keyHex)
	if err != nil || len(want) != legacyScryptKeyLen {
		return false
	}
	got, err := scrypt.Key([]byte(plain), []byte(salt), legacyScryptN, legacyScryptR, legacyScryptP, legacyScryptKeyLen)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(got, want) == 1
}
