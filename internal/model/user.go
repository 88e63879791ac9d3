package model

import "time"

// Role is the coarse permission class of a user.
type Role string

const (
    RoleAdmin  Role = "admin"
    RoleCoach  Role = "coach"
    RoleRunner Role = "runner"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
    switch r {
    case RoleAdmin, RoleCoach, RoleRunner:
        return true
    }
    return false
}

// Allowed values for the profile enums.
var (
    Genders       = []string{"muski", "zenski", "drugo"}
    FitnessLevels = []string{"pocetni", "srednji", "napredni"}
)

// User represents a row of the `users` table.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique, stored lower case.
//  Username     – unique display name.
//  PasswordHash – bcrypt hash, or a legacy scrypt "salt:key" hash.
//  AvatarURL    – optional avatar reference (nil when unset).
//  Age, Gender, FitnessLevel, PaceMinPerKm – profile attributes.
//  Role         – admin, coach or runner.
type User struct {
    ID           uint64
    Email        string
    Username     string
    PasswordHash string
    AvatarURL    *string
    Age          int
    Gender       string
    FitnessLevel string
    PaceMinPerKm float64
    Role         Role
    CreatedAt    time.Time
    UpdatedAt    time.Time
}

// Identity is the minimal projection of a user needed for authorization.
// It is rebuilt from the store on every request.
type Identity struct {
    UserID   uint64
    Email    string
    Username string
    Role     Role
}

// IsAdmin reports whether the identity holds the admin role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }
