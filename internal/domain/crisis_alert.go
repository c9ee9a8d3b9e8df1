package domain

import "time"

// AlertType identifies what produced a crisis alert.
type AlertType string

const (
	AlertTypeManualPanic      AlertType = "manual_panic"
	AlertTypeKeywordDetection AlertType = "keyword_detection"
	AlertTypeSystemAssessment AlertType = "system_assessment"
	AlertTypeAutoEscalation   AlertType = "auto_escalation"
)

// AlertStatus tracks an alert through triage.
type AlertStatus string

const (
	AlertStatusPending      AlertStatus = "pending"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

// CrisisAlert records a safety signal raised for a submitter, optionally
// tied to a case or a specific message.
type CrisisAlert struct {
	ID                   string      `json:"id"`
	CaseID               *string     `json:"case_id,omitempty"`
	MessageID            *string     `json:"message_id,omitempty"`
	SubmitterID          string      `json:"submitter_user_id"`
	Type                 AlertType   `json:"alert_type"`
	Severity             RiskLevel   `json:"severity"`
	Status               AlertStatus `json:"status"`
	DetectedFlags        []string    `json:"detected_flags"`
	Context              string      `json:"context"`
	AssignedConsultantID *string     `json:"assigned_consultant_id,omitempty"`
	AcknowledgedAt       *time.Time  `json:"acknowledged_at,omitempty"`
	ResolvedAt           *time.Time  `json:"resolved_at,omitempty"`
	ResolutionNotes      *string     `json:"resolution_notes,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}
