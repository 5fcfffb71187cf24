package domain

// Identity holds the login credential attached to a user. Each user has
// exactly one identity (user_id is the primary key). A nil PasswordHash
// means the account authenticates through an external provider only.
type Identity struct {
	UserID       int64   `json:"user_id"`
	Email        string  `json:"email"`
	PasswordHash *string `json:"-"`
	Provider     string  `json:"provider"`
}

// Known identity providers. The column is free-form varchar, so unknown
// providers pass through storage unchanged.
const (
	ProviderEmail           = "email"
	ProviderUnverifiedEmail = "unverified_email"
	ProviderFacebook        = "facebook"
	ProviderGoogle          = "google"
)

// DefaultProvider is assigned when a provider is not specified.
const DefaultProvider = ProviderEmail
