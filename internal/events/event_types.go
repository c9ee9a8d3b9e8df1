package events

import (
	"time"

	"github.com/spec-kit/consultation-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAlertCreated      EventType = "alert_created"
	EventAlertAcknowledged EventType = "alert_acknowledged"
	EventAlertResolved     EventType = "alert_resolved"
	EventCaseReferred      EventType = "case_referred"
	EventTeamMemberInvited EventType = "team_member_invited"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type         domain.SubjectType `json:"type"`
	UserID       *string            `json:"user_id,omitempty"`
	ConsultantID *string            `json:"consultant_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	CaseID    *string     `json:"case_id,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// AlertCreatedPayload payload.
type AlertCreatedPayload struct {
	AlertID       string           `json:"alert_id"`
	AlertType     domain.AlertType `json:"alert_type"`
	Severity      domain.RiskLevel `json:"severity"`
	DetectedFlags []string         `json:"detected_flags,omitempty"`
	Context       string           `json:"context,omitempty"`
}

// AlertAcknowledgedPayload payload.
type AlertAcknowledgedPayload struct {
	AlertID      string `json:"alert_id"`
	ConsultantID string `json:"consultant_id"`
}

// AlertResolvedPayload payload.
type AlertResolvedPayload struct {
	AlertID         string `json:"alert_id"`
	ResolutionNotes string `json:"resolution_notes"`
}

// CaseReferredPayload payload.
type CaseReferredPayload struct {
	FromConsultantID string `json:"from_consultant_id"`
	ToConsultantID   string `json:"to_consultant_id"`
	HandoverNotes    string `json:"handover_notes"`
}

// TeamMemberInvitedPayload payload.
type TeamMemberInvitedPayload struct {
	EntryID      string `json:"entry_id"`
	ConsultantID string `json:"consultant_id"`
	InvitedByID  string `json:"invited_by_id"`
}
