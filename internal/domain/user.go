package domain

import "time"

// UserStatus represents lifecycle states for a submitter account.
type UserStatus string

const (
	UserStatusActive    UserStatus = "ACTIVE"
	UserStatusSuspended UserStatus = "SUSPENDED"
)

// User is the domain model for end-users who submit consultation cases.
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Status       UserStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Suspended reports whether the account is barred from authenticating.
func (u *User) Suspended() bool {
	return u != nil && u.Status == UserStatusSuspended
}
