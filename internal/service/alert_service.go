package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/consultation-service/internal/config"
	"github.com/spec-kit/consultation-service/internal/domain"
	"github.com/spec-kit/consultation-service/internal/events"
	"github.com/spec-kit/consultation-service/internal/observability"
	"github.com/spec-kit/consultation-service/internal/repository"
	apperrors "github.com/spec-kit/consultation-service/pkg/util"
)

// AlertService owns the crisis alert state machine:
// pending -> acknowledged -> resolved.
type AlertService struct {
	alerts      repository.AlertRepository
	consultants repository.ConsultantRepository
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	risk        config.RiskConfig
}

// AlertDependencies bundles repositories.
type AlertDependencies struct {
	AlertRepo      repository.AlertRepository
	ConsultantRepo repository.ConsultantRepository
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
}

// AlertCreateInput describes a new alert.
type AlertCreateInput struct {
	CaseID      *string
	MessageID   *string
	SubmitterID string
	Type        domain.AlertType
	Severity    domain.RiskLevel
	Context     string
	Flags       []string
}

// AlertQueueFilter describes admin queue filters.
type AlertQueueFilter struct {
	Statuses   []domain.AlertStatus
	Severities []domain.RiskLevel
	Limit      int
	Offset     int
}

// NewAlertService creates the service.
func NewAlertService(risk config.RiskConfig, deps AlertDependencies) *AlertService {
	return &AlertService{
		alerts:      deps.AlertRepo,
		consultants: deps.ConsultantRepo,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		risk:        risk,
	}
}

// Create opens a new alert in pending state. When the severity is critical
// and auto-escalation is enabled, the first available admin is acknowledged
// immediately; the observable state sequence stays pending -> acknowledged.
func (s *AlertService) Create(ctx context.Context, input AlertCreateInput) (*domain.CrisisAlert, error) {
	if !domain.ValidRiskLevel(input.Severity) {
		return nil, apperrors.NewValidationError("unrecognized severity", map[string]any{"severity": input.Severity})
	}
	if input.SubmitterID == "" {
		return nil, apperrors.NewValidationError("submitter required", nil)
	}

	alert := &domain.CrisisAlert{
		CaseID:        input.CaseID,
		MessageID:     input.MessageID,
		SubmitterID:   input.SubmitterID,
		Type:          input.Type,
		Severity:      input.Severity,
		Status:        domain.AlertStatusPending,
		DetectedFlags: input.Flags,
		Context:       truncate(input.Context, s.risk.ContextMaxLen),
	}

	if input.Severity == domain.RiskLevelCritical && s.risk.AutoEscalate {
		if admin := s.firstAvailableAdmin(ctx); admin != nil {
			now := time.Now()
			alert.Status = domain.AlertStatusAcknowledged
			alert.AssignedConsultantID = &admin.ID
			alert.AcknowledgedAt = &now
		}
	}

	if err := s.alerts.Create(ctx, alert); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.metrics.RecordAlert(string(alert.Severity))

	s.publish(ctx, events.Event{
		Type:   events.EventAlertCreated,
		CaseID: alert.CaseID,
		Actor:  userActor(alert.SubmitterID),
		Payload: events.AlertCreatedPayload{
			AlertID:       alert.ID,
			AlertType:     alert.Type,
			Severity:      alert.Severity,
			DetectedFlags: alert.DetectedFlags,
			Context:       alert.Context,
		},
	})
	return alert, nil
}

// Acknowledge moves a pending alert to acknowledged, assigning the responder.
func (s *AlertService) Acknowledge(ctx context.Context, actor *domain.Consultant, alertID string) (*domain.CrisisAlert, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	alert, err := s.alerts.GetByID(ctx, alertID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("alert", map[string]any{"alert_id": alertID})
		}
		return nil, apperrors.MapError(err)
	}
	if alert.Status != domain.AlertStatusPending {
		return nil, apperrors.NewConflict("alert is not pending", map[string]any{"status": alert.Status})
	}

	now := time.Now()
	alert.Status = domain.AlertStatusAcknowledged
	alert.AssignedConsultantID = &actor.ID
	alert.AcknowledgedAt = &now
	if err := s.alerts.Transition(ctx, alert, domain.AlertStatusPending); err != nil {
		if errors.Is(err, repository.ErrStaleAlert) {
			return nil, apperrors.NewConflict("alert is not pending", map[string]any{"alert_id": alert.ID})
		}
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:   events.EventAlertAcknowledged,
		CaseID: alert.CaseID,
		Actor:  consultantActor(actor.ID),
		Payload: events.AlertAcknowledgedPayload{
			AlertID:      alert.ID,
			ConsultantID: actor.ID,
		},
	})
	return alert, nil
}

// Resolve terminates an alert from pending or acknowledged. Notes are
// mandatory; a resolved alert accepts no further transitions.
func (s *AlertService) Resolve(ctx context.Context, actor *domain.Consultant, alertID, notes string) (*domain.CrisisAlert, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(notes) == "" {
		return nil, apperrors.NewValidationError("resolution notes required", nil)
	}
	alert, err := s.alerts.GetByID(ctx, alertID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("alert", map[string]any{"alert_id": alertID})
		}
		return nil, apperrors.MapError(err)
	}
	if alert.Status == domain.AlertStatusResolved {
		return nil, apperrors.NewConflict("alert already resolved", map[string]any{"status": alert.Status})
	}

	now := time.Now()
	trimmed := strings.TrimSpace(notes)
	prev := alert.Status
	alert.Status = domain.AlertStatusResolved
	alert.ResolvedAt = &now
	alert.ResolutionNotes = &trimmed
	if alert.AssignedConsultantID == nil {
		alert.AssignedConsultantID = &actor.ID
	}
	if err := s.alerts.Transition(ctx, alert, prev); err != nil {
		if errors.Is(err, repository.ErrStaleAlert) {
			return nil, apperrors.NewConflict("alert status changed", map[string]any{"alert_id": alert.ID})
		}
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:   events.EventAlertResolved,
		CaseID: alert.CaseID,
		Actor:  consultantActor(actor.ID),
		Payload: events.AlertResolvedPayload{
			AlertID:         alert.ID,
			ResolutionNotes: trimmed,
		},
	})
	return alert, nil
}

// ListQueue returns the paginated admin alert queue.
func (s *AlertService) ListQueue(ctx context.Context, actor *domain.Consultant, filter AlertQueueFilter) ([]domain.CrisisAlert, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	alerts, err := s.alerts.ListWithFilter(ctx, repository.AlertFilter{
		Statuses:   filter.Statuses,
		Severities: filter.Severities,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return alerts, nil
}

func (s *AlertService) firstAvailableAdmin(ctx context.Context) *domain.Consultant {
	role := domain.ConsultantRoleAdmin
	active := true
	admins, err := s.consultants.List(ctx, repository.ConsultantFilter{
		Role:   &role,
		Active: &active,
		Limit:  1,
	})
	if err != nil || len(admins) == 0 {
		return nil
	}
	return &admins[0]
}

func (s *AlertService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func requireAdmin(consultant *domain.Consultant) error {
	if consultant == nil {
		return apperrors.NewUnauthorized("consultant required")
	}
	if consultant.Role != domain.ConsultantRoleAdmin {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

// truncate caps text at max runes without splitting a multi-byte sequence.
func truncate(text string, max int) string {
	text = strings.TrimSpace(text)
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max])
}

func userActor(userID string) events.Actor {
	return events.Actor{
		Type:   domain.SubjectTypeUser,
		UserID: &userID,
	}
}

func consultantActor(consultantID string) events.Actor {
	return events.Actor{
		Type:         domain.SubjectTypeConsultant,
		ConsultantID: &consultantID,
	}
}
