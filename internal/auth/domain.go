package auth

import "time"

// User is the credential view of an account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	IsActive     bool
}

// SessionRecord is the durable trace of a login.
type SessionRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"userAgent"`
}
