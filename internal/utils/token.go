package utils // package utils provides helpers for password hashing and session tokens

import (
    "crypto/rand"  // secure random number generation
    "encoding/hex" // hex encoding of the random bytes
)

// SessionTokenBytes is the entropy of a session token (256 bits).
const SessionTokenBytes = 32

// NewSessionToken returns an opaque session token: 32 random bytes, hex
// encoded. The token carries no data; it is only a lookup key.
func NewSessionToken() (string, error) {
    return randomHex(SessionTokenBytes)
}

// randomHex returns a hex‑encoded string generated from n bytes of
// cryptographically secure random data. If the random number generator
// fails, an error is returned.
func randomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}
