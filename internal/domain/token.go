package domain

import "time"

// ResetToken is a short-lived one-time token bound to an email address.
// At most one live token exists per (email, token_type); issuing a new one
// supersedes the previous.
type ResetToken struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	TokenType string    `json:"token_type"`
	CreatedAt time.Time `json:"created_at"`
}

// Token types known to the service. The classification is open: storage
// accepts any string, these are merely the callers known today.
const (
	TokenTypePasswordReset = "password"
	TokenTypeEmailVerify   = "email_verify"
)

// Expired reports whether the token is older than the given TTL at the
// given reference time.
func (t *ResetToken) Expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(t.CreatedAt) > ttl
}
