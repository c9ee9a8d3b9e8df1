package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/consultation-service/internal/config"
	"github.com/spec-kit/consultation-service/internal/domain"
	"github.com/spec-kit/consultation-service/internal/repository"
	"github.com/spec-kit/consultation-service/internal/risk"
	apperrors "github.com/spec-kit/consultation-service/pkg/util"
)

// CaseService coordinates case intake and lifecycle.
type CaseService struct {
	cases   repository.CaseRepository
	members repository.TeamMemberRepository
	history repository.CaseHistoryRepository
	alerts  *AlertService
	risk    config.RiskConfig
}

// CaseDependencies bundles repositories for case service.
type CaseDependencies struct {
	CaseRepo    repository.CaseRepository
	MemberRepo  repository.TeamMemberRepository
	HistoryRepo repository.CaseHistoryRepository
	Alerts      *AlertService
}

// CaseCreateInput describes case submission payload.
type CaseCreateInput struct {
	Category         string
	Description      string
	ScreeningAnswers []domain.ScreeningAnswer
}

// CaseUserFilter describes submitter listing filters.
type CaseUserFilter struct {
	Statuses    []domain.CaseStatus
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// NewCaseService constructs the service.
func NewCaseService(riskCfg config.RiskConfig, deps CaseDependencies) *CaseService {
	return &CaseService{
		cases:   deps.CaseRepo,
		members: deps.MemberRepo,
		history: deps.HistoryRepo,
		alerts:  deps.Alerts,
		risk:    riskCfg,
	}
}

// CreateCase scores the submission, persists the case, and escalates when the
// assessment requires it. Alert creation failure is logged by the alert layer
// but never blocks the submission itself.
func (s *CaseService) CreateCase(ctx context.Context, userID string, input CaseCreateInput) (*domain.Case, error) {
	if strings.TrimSpace(input.Category) == "" || strings.TrimSpace(input.Description) == "" {
		return nil, apperrors.NewValidationError("category and description required", nil)
	}

	assessment := risk.Score(risk.Config{CrisisKeywords: s.risk.CrisisKeywords}, input.Description, input.ScreeningAnswers)

	c := &domain.Case{
		ExternalKey:      generateCaseKey(),
		SubmitterID:      userID,
		Category:         strings.TrimSpace(input.Category),
		Description:      strings.TrimSpace(input.Description),
		ScreeningAnswers: input.ScreeningAnswers,
		RiskLevel:        assessment.RiskLevel,
		Urgency:          assessment.Urgency,
		Status:           domain.CaseStatusWaiting,
	}
	if c.ScreeningAnswers == nil {
		c.ScreeningAnswers = []domain.ScreeningAnswer{}
	}

	if err := s.cases.Create(ctx, c); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.recordRiskAssessment(ctx, userID, c, assessment)

	if assessment.RequiresEscalation && s.alerts != nil {
		_, _ = s.alerts.Create(ctx, AlertCreateInput{
			CaseID:      &c.ID,
			SubmitterID: userID,
			Type:        escalationType(assessment),
			Severity:    assessment.RiskLevel,
			Context:     c.Description,
			Flags:       assessment.Flags,
		})
	}
	return c, nil
}

// TriggerPanic creates a critical manual alert, bypassing the scorer.
func (s *CaseService) TriggerPanic(ctx context.Context, userID string, caseID *string, context_ string) (*domain.CrisisAlert, error) {
	if s.alerts == nil {
		return nil, apperrors.NewInternalError(errors.New("alert service unavailable"))
	}
	if caseID != nil {
		c, err := s.cases.GetByID(ctx, *caseID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("case", map[string]any{"case_id": *caseID})
			}
			return nil, apperrors.MapError(err)
		}
		if c.SubmitterID != userID {
			return nil, apperrors.NewNotFound("case", map[string]any{"case_id": *caseID})
		}
	}
	return s.alerts.Create(ctx, AlertCreateInput{
		CaseID:      caseID,
		SubmitterID: userID,
		Type:        domain.AlertTypeManualPanic,
		Severity:    domain.RiskLevelCritical,
		Context:     context_,
	})
}

// ListUserCases returns paginated cases for a submitter.
func (s *CaseService) ListUserCases(ctx context.Context, userID string, filter CaseUserFilter) ([]domain.Case, error) {
	cases, err := s.cases.ListWithFilter(ctx, repository.CaseFilter{
		SubmitterID: &userID,
		Statuses:    filter.Statuses,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return cases, nil
}

// GetCaseForUser fetches a case ensuring ownership. A case belonging to
// someone else reads as not found.
func (s *CaseService) GetCaseForUser(ctx context.Context, userID, caseID string) (*domain.Case, error) {
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("case", map[string]any{"case_id": caseID})
		}
		return nil, apperrors.MapError(err)
	}
	if c.SubmitterID != userID {
		return nil, apperrors.NewNotFound("case", map[string]any{"case_id": caseID})
	}
	return c, nil
}

// UpdateStatus moves a case through its lifecycle; only the effective primary
// may drive it.
func (s *CaseService) UpdateStatus(ctx context.Context, actor *domain.Consultant, caseID string, newStatus domain.CaseStatus) (*domain.Case, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("consultant required")
	}
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("case", map[string]any{"case_id": caseID})
		}
		return nil, apperrors.MapError(err)
	}
	primary, err := s.members.GetEffectivePrimary(ctx, caseID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}
	if primary == nil || primary.ConsultantID != actor.ID {
		return nil, apperrors.NewForbidden("only the case's primary consultant may change its status")
	}
	if !isValidCaseTransition(c.Status, newStatus) {
		return nil, apperrors.NewConflict("invalid status transition", map[string]any{"status": c.Status})
	}

	oldStatus := c.Status
	c.Status = newStatus
	if err := s.cases.Update(ctx, c); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.recordStatusChange(ctx, actor.ID, c.ID, oldStatus, newStatus)
	return c, nil
}

// ListHistoryForUser returns the audit trail for the submitter's own case.
func (s *CaseService) ListHistoryForUser(ctx context.Context, userID, caseID string) ([]domain.CaseHistory, error) {
	if _, err := s.GetCaseForUser(ctx, userID, caseID); err != nil {
		return nil, err
	}
	history, err := s.history.ListByCase(ctx, caseID, 100, 0)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return history, nil
}

func escalationType(assessment risk.Assessment) domain.AlertType {
	// Critical assessments ride the auto-escalation path; below that the type
	// reflects which signal tripped the threshold.
	switch {
	case assessment.RiskLevel == domain.RiskLevelCritical:
		return domain.AlertTypeAutoEscalation
	case len(assessment.Flags) > 0:
		return domain.AlertTypeKeywordDetection
	default:
		return domain.AlertTypeSystemAssessment
	}
}

var allowedCaseTransitions = map[domain.CaseStatus][]domain.CaseStatus{
	domain.CaseStatusWaiting:    {domain.CaseStatusInProgress, domain.CaseStatusRejected, domain.CaseStatusCancelled},
	domain.CaseStatusInProgress: {domain.CaseStatusCompleted, domain.CaseStatusCancelled},
	domain.CaseStatusReferred:   {domain.CaseStatusInProgress, domain.CaseStatusCompleted, domain.CaseStatusCancelled},
	domain.CaseStatusCompleted:  {},
	domain.CaseStatusRejected:   {},
	domain.CaseStatusCancelled:  {},
}

func isValidCaseTransition(current, next domain.CaseStatus) bool {
	for _, candidate := range allowedCaseTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

func (s *CaseService) recordRiskAssessment(ctx context.Context, userID string, c *domain.Case, assessment risk.Assessment) {
	if s.history == nil {
		return
	}
	_ = s.history.Create(ctx, &domain.CaseHistory{
		CaseID:        c.ID,
		ChangedByType: domain.SubjectTypeUser,
		ChangedByID:   &userID,
		ChangeType:    domain.ChangeTypeRiskAssessment,
		NewValue: map[string]any{
			"risk_level":          c.RiskLevel,
			"urgency":             c.Urgency,
			"flags":               assessment.Flags,
			"requires_escalation": assessment.RequiresEscalation,
		},
	})
}

func (s *CaseService) recordStatusChange(ctx context.Context, actorID, caseID string, oldStatus, newStatus domain.CaseStatus) {
	if s.history == nil {
		return
	}
	_ = s.history.Create(ctx, &domain.CaseHistory{
		CaseID:        caseID,
		ChangedByType: domain.SubjectTypeConsultant,
		ChangedByID:   &actorID,
		ChangeType:    domain.ChangeTypeStatus,
		OldValue:      map[string]any{"status": oldStatus},
		NewValue:      map[string]any{"status": newStatus},
	})
}

func generateCaseKey() string {
	return "CSE-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
