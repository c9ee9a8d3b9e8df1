package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/consultation-service/internal/domain"
	"github.com/spec-kit/consultation-service/internal/events"
	"github.com/spec-kit/consultation-service/internal/repository"
	apperrors "github.com/spec-kit/consultation-service/pkg/util"
)

// ReferralService hands a case's primary authority from one consultant to
// another in a single transaction.
type ReferralService struct {
	cases       repository.CaseRepository
	members     repository.TeamMemberRepository
	consultants repository.ConsultantRepository
	history     repository.CaseHistoryRepository
	dispatcher  events.Dispatcher
}

// ReferralDependencies bundles repositories.
type ReferralDependencies struct {
	CaseRepo       repository.CaseRepository
	MemberRepo     repository.TeamMemberRepository
	ConsultantRepo repository.ConsultantRepository
	HistoryRepo    repository.CaseHistoryRepository
	Dispatcher     events.Dispatcher
}

// NewReferralService creates the service.
func NewReferralService(deps ReferralDependencies) *ReferralService {
	return &ReferralService{
		cases:       deps.CaseRepo,
		members:     deps.MemberRepo,
		consultants: deps.ConsultantRepo,
		history:     deps.HistoryRepo,
		dispatcher:  deps.Dispatcher,
	}
}

// Refer demotes the acting consultant to collaborator, installs the target
// as the case's referred entry, and moves the case assignee in a single
// transaction. When two referrers race, the transfer re-checks the primary
// under lock so exactly one wins.
func (s *ReferralService) Refer(ctx context.Context, actor *domain.Consultant, caseID, targetConsultantID, handoverNotes string) (*domain.CaseTeamMember, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("consultant required")
	}
	handoverNotes = strings.TrimSpace(handoverNotes)
	if handoverNotes == "" {
		return nil, apperrors.NewValidationError("handover notes are required", nil)
	}
	if targetConsultantID == actor.ID {
		return nil, apperrors.NewValidationError("cannot refer a case to yourself", nil)
	}

	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("case", map[string]any{"case_id": caseID})
		}
		return nil, apperrors.MapError(err)
	}

	target, err := s.consultants.GetByID(ctx, targetConsultantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("consultant", map[string]any{"consultant_id": targetConsultantID})
		}
		return nil, apperrors.MapError(err)
	}
	if !target.Active {
		return nil, apperrors.NewConflict("consultant inactive", map[string]any{"consultant_id": targetConsultantID})
	}

	newMember := &domain.CaseTeamMember{
		CaseID:       caseID,
		ConsultantID: target.ID,
		InvitedByID:  &actor.ID,
		Notes:        handoverNotes,
	}
	if err := s.members.TransferPrimary(ctx, caseID, actor.ID, newMember); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotPrimary):
			return nil, apperrors.NewForbidden("only the case's primary consultant may refer it")
		case errors.Is(err, repository.ErrDuplicateMember):
			return nil, apperrors.NewConflict("consultant already on the case team", map[string]any{"consultant_id": targetConsultantID})
		default:
			return nil, apperrors.MapError(err)
		}
	}

	s.recordReferral(ctx, actor.ID, c, target.ID, handoverNotes)
	s.publish(ctx, events.Event{
		Type:   events.EventCaseReferred,
		CaseID: &caseID,
		Actor:  consultantActor(actor.ID),
		Payload: events.CaseReferredPayload{
			FromConsultantID: actor.ID,
			ToConsultantID:   target.ID,
			HandoverNotes:    handoverNotes,
		},
	})
	return newMember, nil
}

func (s *ReferralService) recordReferral(ctx context.Context, actorID string, c *domain.Case, targetID, notes string) {
	if s.history == nil {
		return
	}
	_ = s.history.Create(ctx, &domain.CaseHistory{
		CaseID:        c.ID,
		ChangedByType: domain.SubjectTypeConsultant,
		ChangedByID:   &actorID,
		ChangeType:    domain.ChangeTypeReferral,
		OldValue: map[string]any{
			"assigned_consultant_id": actorID,
			"status":                 c.Status,
		},
		NewValue: map[string]any{
			"assigned_consultant_id": targetID,
			"status":                 domain.CaseStatusReferred,
			"handover_notes":         notes,
		},
	})
}

func (s *ReferralService) publish(ctx context.Context, event events.Event) {
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
