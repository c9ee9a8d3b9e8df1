package domain

import "time"

// TeamRole is the position a consultant holds on a case team.
type TeamRole string

const (
	TeamRolePrimary      TeamRole = "primary"
	TeamRoleCollaborator TeamRole = "collaborator"
	TeamRoleReferred     TeamRole = "referred"
)

// CaseTeamMember is one ledger entry tying a consultant to a case. A case
// has at most one active primary or referred entry at a time.
type CaseTeamMember struct {
	ID            string     `json:"id"`
	CaseID        string     `json:"case_id"`
	ConsultantID  string     `json:"consultant_id"`
	Role          TeamRole   `json:"role"`
	InvitedByID   *string    `json:"invited_by_id,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	Active        bool       `json:"active"`
	InvitedAt     time.Time  `json:"invited_at"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
}

// EffectivePrimary reports whether this entry currently carries the case's
// primary authority. Referral hand-offs keep that authority on the new
// referred entry.
func (m *CaseTeamMember) EffectivePrimary() bool {
	if m == nil || !m.Active {
		return false
	}
	return m.Role == TeamRolePrimary || m.Role == TeamRoleReferred
}

// Effective reports whether the entry grants any case access. Collaborators
// stay inert until the submitter approves them.
func (m *CaseTeamMember) Effective() bool {
	if m == nil || !m.Active {
		return false
	}
	if m.Role == TeamRoleCollaborator {
		return m.ApprovedAt != nil
	}
	return true
}
