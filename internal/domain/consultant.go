package domain

import "time"

// ConsultantRole separates working consultants from platform admins.
type ConsultantRole string

const (
	ConsultantRoleConsultant ConsultantRole = "CONSULTANT"
	ConsultantRoleAdmin      ConsultantRole = "ADMIN"
)

// Consultant is a professional account that handles cases.
type Consultant struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Email        string         `json:"email"`
	PasswordHash string         `json:"-"`
	Role         ConsultantRole `json:"role"`
	Specialty    *string        `json:"specialty,omitempty"`
	Active       bool           `json:"active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
