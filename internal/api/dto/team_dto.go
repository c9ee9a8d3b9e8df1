package dto

import (
	"time"

	"github.com/spec-kit/consultation-service/internal/domain"
)

// InviteMemberRequest payload.
type InviteMemberRequest struct {
	ConsultantID string `json:"consultant_id"`
	Notes        string `json:"notes"`
}

// ReferCaseRequest payload.
type ReferCaseRequest struct {
	ConsultantID  string `json:"consultant_id"`
	HandoverNotes string `json:"handover_notes"`
}

// TeamMemberResponse represents one ledger entry.
type TeamMemberResponse struct {
	ID            string          `json:"id"`
	CaseID        string          `json:"case_id"`
	ConsultantID  string          `json:"consultant_id"`
	Role          domain.TeamRole `json:"role"`
	InvitedByID   *string         `json:"invited_by_id,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	Active        bool            `json:"active"`
	InvitedAt     time.Time       `json:"invited_at"`
	ApprovedAt    *time.Time      `json:"approved_at,omitempty"`
	DeactivatedAt *time.Time      `json:"deactivated_at,omitempty"`
}
