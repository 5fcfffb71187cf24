package domain

import (
	"strings"
	"time"
)

// User represents a registered user account. Email is always stored
// lower-case; NormalizeEmail is applied before any write or lookup.
type User struct {
	ID            int64      `json:"id"`
	Email         string     `json:"email"`
	EmailVerified bool       `json:"email_verified"`
	Phone         *string    `json:"phone,omitempty"`
	PhoneVerified bool       `json:"phone_verified"`
	IsActive      bool       `json:"is_active"`
	FirstName     *string    `json:"first_name,omitempty"`
	LastName      *string    `json:"last_name,omitempty"`
	MiddleName    *string    `json:"middle_name,omitempty"`
	Gender        *string    `json:"gender,omitempty"`
	Birthdate     *time.Time `json:"birthdate,omitempty"`
	Avatar        *string    `json:"avatar,omitempty"`
	LastLoginAt   time.Time  `json:"last_login_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Gender values accepted by profile validation.
const (
	GenderMale      = "male"
	GenderFemale    = "female"
	GenderUndefined = "undefined"
)

// NormalizeEmail canonicalizes an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
