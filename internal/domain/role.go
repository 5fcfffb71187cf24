package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// UserRole is the single authoritative role row for a user. UNIQUE(user_id)
// in storage guarantees at most one row per user; assigning a role replaces
// the previous one.
type UserRole struct {
	ID        uuid.UUID       `json:"id"`
	UserID    int64           `json:"user_id"`
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Role constants define the well-known role names.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// DefaultRole is assigned to every newly registered user.
const DefaultRole = RoleUser

// ValidRoles returns the set of well-known role names.
func ValidRoles() []string {
	return []string{RoleUser, RoleAdmin}
}

// IsValidRole checks whether the given name is a well-known role.
func IsValidRole(name string) bool {
	for _, r := range ValidRoles() {
		if r == name {
			return true
		}
	}
	return false
}
