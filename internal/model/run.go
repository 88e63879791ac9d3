package model

import "time"

// Location is a (city, municipality) pair shared by runs.
type Location struct {
	ID           uint64
	City         string
	Municipality string
	Lat          *float64
	Lng          *float64
}

// Run is a scheduled group run hosted by one user.
type Run struct {
	ID           uint64
	Title        string
	Route        string
	StartsAt     time.Time
	DistanceKm   float64
	PaceMinPerKm float64
	LocationID   uint64
	HostUserID   uint64
	CreatedAt    time.Time
}

// Membership links a user to a run they joined.
type Membership struct {
	ID        uint64
	RunID     uint64
	UserID    uint64
	CreatedAt time.Time
}

// Message is a chat message posted inside a run.
type Message struct {
	ID         uint64
	RunID      uint64
	FromUserID uint64
	ToUserID   uint64
	Content    string
	SentAt     time.Time
}

// Rating is a score left by a participant for the host of a run.
type Rating struct {
	ID         uint64
	RunID      uint64
	FromUserID uint64
	ToUserID   uint64
	Score      int
	Comment    string
	CreatedAt  time.Time
}
