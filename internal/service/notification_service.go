package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/consultation-service/internal/domain"
	"github.com/spec-kit/consultation-service/internal/events"
	"github.com/spec-kit/consultation-service/internal/notify"
	"github.com/spec-kit/consultation-service/internal/repository"
)

// NotificationService fans alert and referral events out to the responders
// who should see them: every active admin plus the case's effective primary.
// Delivery is best-effort; a failed recipient never fails the others or the
// operation that raised the event.
type NotificationService struct {
	consultants repository.ConsultantRepository
	members     repository.TeamMemberRepository
	alerts      repository.AlertRepository
	notifier    notify.Notifier
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// NotificationDependencies bundles collaborators.
type NotificationDependencies struct {
	ConsultantRepo repository.ConsultantRepository
	MemberRepo     repository.TeamMemberRepository
	AlertRepo      repository.AlertRepository
	Notifier       notify.Notifier
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	return &NotificationService{
		consultants: deps.ConsultantRepo,
		members:     deps.MemberRepo,
		alerts:      deps.AlertRepo,
		notifier:    deps.Notifier,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
	}
}

// RegisterHandlers subscribes the service to the events it delivers.
func (s *NotificationService) RegisterHandlers() {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Subscribe(events.EventAlertCreated, s.HandleAlertCreated)
	s.dispatcher.Subscribe(events.EventAlertResolved, s.HandleAlertResolved)
	s.dispatcher.Subscribe(events.EventCaseReferred, s.HandleCaseReferred)
	s.dispatcher.Subscribe(events.EventTeamMemberInvited, s.HandleTeamMemberInvited)
}

// HandleAlertCreated notifies responders of a new alert.
func (s *NotificationService) HandleAlertCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AlertCreatedPayload)
	if !ok {
		return nil
	}
	s.fanout(ctx, event.CaseID, notify.AlertPayload{
		Event:         string(event.Type),
		AlertID:       payload.AlertID,
		CaseID:        event.CaseID,
		AlertType:     payload.AlertType,
		Severity:      payload.Severity,
		DetectedFlags: payload.DetectedFlags,
		Context:       payload.Context,
	})
	return nil
}

// HandleAlertResolved notifies responders that an alert is closed.
func (s *NotificationService) HandleAlertResolved(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AlertResolvedPayload)
	if !ok {
		return nil
	}
	message := notify.AlertPayload{
		Event:   string(event.Type),
		AlertID: payload.AlertID,
		CaseID:  event.CaseID,
		Context: payload.ResolutionNotes,
	}
	if alert, err := s.alerts.GetByID(ctx, payload.AlertID); err == nil {
		message.AlertType = alert.Type
		message.Severity = alert.Severity
	}
	s.fanout(ctx, event.CaseID, message)
	return nil
}

// HandleCaseReferred tells the incoming consultant a case just landed on
// them. Admins are not fanned out here; referrals are routine.
func (s *NotificationService) HandleCaseReferred(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.CaseReferredPayload)
	if !ok {
		return nil
	}
	s.deliver(ctx, payload.ToConsultantID, notify.AlertPayload{
		Event:   string(event.Type),
		CaseID:  event.CaseID,
		Context: payload.HandoverNotes,
	})
	return nil
}

// HandleTeamMemberInvited tells the invited consultant about the pending
// collaboration.
func (s *NotificationService) HandleTeamMemberInvited(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TeamMemberInvitedPayload)
	if !ok {
		return nil
	}
	s.deliver(ctx, payload.ConsultantID, notify.AlertPayload{
		Event:  string(event.Type),
		CaseID: event.CaseID,
	})
	return nil
}

// fanout delivers to every active admin and, when the event is tied to a
// case, its effective primary. Recipients are deduplicated.
func (s *NotificationService) fanout(ctx context.Context, caseID *string, payload notify.AlertPayload) {
	seen := make(map[string]struct{})

	role := domain.ConsultantRoleAdmin
	active := true
	admins, err := s.consultants.List(ctx, repository.ConsultantFilter{Role: &role, Active: &active})
	if err != nil {
		s.logger.Warn("notification fanout: admin lookup failed", zap.Error(err))
	}
	for _, admin := range admins {
		seen[admin.ID] = struct{}{}
		s.deliver(ctx, admin.ID, payload)
	}

	if caseID == nil {
		return
	}
	primary, err := s.members.GetEffectivePrimary(ctx, *caseID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("notification fanout: primary lookup failed",
				zap.String("case_id", *caseID), zap.Error(err))
		}
		return
	}
	if _, dup := seen[primary.ConsultantID]; !dup {
		s.deliver(ctx, primary.ConsultantID, payload)
	}
}

func (s *NotificationService) deliver(ctx context.Context, consultantID string, payload notify.AlertPayload) {
	if err := s.notifier.Notify(ctx, consultantID, payload); err != nil {
		s.logger.Warn("notification delivery failed",
			zap.String("consultant_id", consultantID),
			zap.String("event", payload.Event),
			zap.Error(err))
	}
}
