package dto

import (
	"time"

	"github.com/spec-kit/consultation-service/internal/domain"
)

// CreateCaseRequest payload.
type CreateCaseRequest struct {
	Category         string                   `json:"category"`
	Description      string                   `json:"description"`
	ScreeningAnswers []domain.ScreeningAnswer `json:"screening_answers"`
}

// UpdateCaseStatusRequest payload.
type UpdateCaseStatusRequest struct {
	Status domain.CaseStatus `json:"status"`
}

// PanicRequest payload for the manual panic trigger.
type PanicRequest struct {
	CaseID  *string `json:"case_id,omitempty"`
	Context string  `json:"context"`
}

// CaseSummary response.
type CaseSummary struct {
	ID                   string            `json:"id"`
	ExternalKey          string            `json:"external_key"`
	Category             string            `json:"category"`
	RiskLevel            domain.RiskLevel  `json:"risk_level"`
	Urgency              domain.Urgency    `json:"urgency"`
	Status               domain.CaseStatus `json:"status"`
	AssignedConsultantID *string           `json:"assigned_consultant_id,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// CaseDetailResponse provides full case info.
type CaseDetailResponse struct {
	ID                   string                   `json:"id"`
	ExternalKey          string                   `json:"external_key"`
	Category             string                   `json:"category"`
	Description          string                   `json:"description"`
	ScreeningAnswers     []domain.ScreeningAnswer `json:"screening_answers"`
	RiskLevel            domain.RiskLevel         `json:"risk_level"`
	Urgency              domain.Urgency           `json:"urgency"`
	Status               domain.CaseStatus        `json:"status"`
	AssignedConsultantID *string                  `json:"assigned_consultant_id,omitempty"`
	CreatedAt            time.Time                `json:"created_at"`
	UpdatedAt            time.Time                `json:"updated_at"`
	History              []CaseHistoryResponse    `json:"history"`
}

// CaseHistoryResponse represents one audit record.
type CaseHistoryResponse struct {
	ID            string             `json:"id"`
	ChangeType    domain.ChangeType  `json:"change_type"`
	ChangedByType domain.SubjectType `json:"changed_by_type"`
	ChangedByID   *string            `json:"changed_by_id,omitempty"`
	OldValue      map[string]any     `json:"old_value,omitempty"`
	NewValue      map[string]any     `json:"new_value,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}
