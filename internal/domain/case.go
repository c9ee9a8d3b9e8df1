package domain

import "time"

// RiskLevel grades the assessed severity of a case or alert.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// ValidRiskLevel reports whether the value is one of the known grades.
func ValidRiskLevel(level RiskLevel) bool {
	switch level {
	case RiskLevelLow, RiskLevelMedium, RiskLevelHigh, RiskLevelCritical:
		return true
	}
	return false
}

// Urgency indicates how quickly a case needs attention.
type Urgency string

const (
	UrgencyNormal    Urgency = "normal"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyEmergency Urgency = "emergency"
)

// CaseStatus tracks a case through its lifecycle.
type CaseStatus string

const (
	CaseStatusWaiting    CaseStatus = "waiting"
	CaseStatusInProgress CaseStatus = "in_progress"
	CaseStatusCompleted  CaseStatus = "completed"
	CaseStatusReferred   CaseStatus = "referred"
	CaseStatusRejected   CaseStatus = "rejected"
	CaseStatusCancelled  CaseStatus = "cancelled"
)

// ScreeningAnswer is one structured intake answer with its pre-weighted
// risk contribution.
type ScreeningAnswer struct {
	Answer    string `json:"answer"`
	RiskScore int    `json:"risk_score"`
}

// Case is a submitted consultation request.
type Case struct {
	ID                   string            `json:"id"`
	ExternalKey          string            `json:"external_key"`
	SubmitterID          string            `json:"submitter_user_id"`
	Category             string            `json:"category"`
	Description          string            `json:"description"`
	ScreeningAnswers     []ScreeningAnswer `json:"screening_answers"`
	RiskLevel            RiskLevel         `json:"risk_level"`
	Urgency              Urgency           `json:"urgency"`
	Status               CaseStatus        `json:"status"`
	AssignedConsultantID *string           `json:"assigned_consultant_id,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}
