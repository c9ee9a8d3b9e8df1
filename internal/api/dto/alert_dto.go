package dto

import (
	"time"

	"github.com/spec-kit/consultation-service/internal/domain"
)

// ResolveAlertRequest payload.
type ResolveAlertRequest struct {
	ResolutionNotes string `json:"resolution_notes"`
}

// AlertResponse represents one crisis alert.
type AlertResponse struct {
	ID                   string             `json:"id"`
	CaseID               *string            `json:"case_id,omitempty"`
	MessageID            *string            `json:"message_id,omitempty"`
	Type                 domain.AlertType   `json:"alert_type"`
	Severity             domain.RiskLevel   `json:"severity"`
	Status               domain.AlertStatus `json:"status"`
	DetectedFlags        []string           `json:"detected_flags,omitempty"`
	Context              string             `json:"context,omitempty"`
	AssignedConsultantID *string            `json:"assigned_consultant_id,omitempty"`
	AcknowledgedAt       *time.Time         `json:"acknowledged_at,omitempty"`
	ResolvedAt           *time.Time         `json:"resolved_at,omitempty"`
	ResolutionNotes      *string            `json:"resolution_notes,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
}
