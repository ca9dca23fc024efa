package domain

import "time"

// User represents an account that owns jobs.
type User struct {
	ID        string
	Email     string
	FullName  string
	CreatedAt time.Time
}

// DisplayName prefers the full name and falls back to the email address.
func (u User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}

// AuditEntry records a user-facing action for later review.
type AuditEntry struct {
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	IPAddress    string
	Country      string
	UserAgent    string
	Metadata     map[string]any
	CreatedAt    time.Time
}
