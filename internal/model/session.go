package model

import "time"

// Session models a row of the `sessions` table. The token is the opaque
// value stored in the session cookie.
type Session struct {
    ID        uint64
    Token     string
    UserID    uint64
    ExpiresAt time.Time
    CreatedAt time.Time
}

// ActiveAt reports whether the session is still valid at now.
func (s Session) ActiveAt(now time.Time) bool { return s.ExpiresAt.After(now) }
