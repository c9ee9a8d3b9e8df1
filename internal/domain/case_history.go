package domain

import "time"

// ChangeType classifies a case history record.
type ChangeType string

const (
	ChangeTypeRiskAssessment ChangeType = "RISK_ASSESSMENT"
	ChangeTypeStatus         ChangeType = "STATUS_CHANGE"
	ChangeTypeAssignee       ChangeType = "ASSIGNEE_CHANGE"
	ChangeTypeTeam           ChangeType = "TEAM_CHANGE"
	ChangeTypeReferral       ChangeType = "REFERRAL"
)

// CaseHistory is an append-only audit record of a change made to a case.
type CaseHistory struct {
	ID            string         `json:"id"`
	CaseID        string         `json:"case_id"`
	ChangedByType SubjectType    `json:"changed_by_type"`
	ChangedByID   *string        `json:"changed_by_id,omitempty"`
	ChangeType    ChangeType     `json:"change_type"`
	OldValue      map[string]any `json:"old_value,omitempty"`
	NewValue      map[string]any `json:"new_value,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}
