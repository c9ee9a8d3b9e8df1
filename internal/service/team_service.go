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

// TeamService owns the case ownership ledger: who holds which role on a case
// and how entries are invited, approved, and retired.
type TeamService struct {
	cases       repository.CaseRepository
	members     repository.TeamMemberRepository
	consultants repository.ConsultantRepository
	history     repository.CaseHistoryRepository
	dispatcher  events.Dispatcher
}

// TeamDependencies bundles repositories.
type TeamDependencies struct {
	CaseRepo       repository.CaseRepository
	MemberRepo     repository.TeamMemberRepository
	ConsultantRepo repository.ConsultantRepository
	HistoryRepo    repository.CaseHistoryRepository
	Dispatcher     events.Dispatcher
}

// NewTeamService creates the service.
func NewTeamService(deps TeamDependencies) *TeamService {
	return &TeamService{
		cases:       deps.CaseRepo,
		members:     deps.MemberRepo,
		consultants: deps.ConsultantRepo,
		history:     deps.HistoryRepo,
		dispatcher:  deps.Dispatcher,
	}
}

// ListTeam returns the case's active entries ordered primary, referred,
// collaborator. Visible to the submitter, team members, and admins.
func (s *TeamService) ListTeam(ctx context.Context, actorUserID *string, actor *domain.Consultant, caseID string) ([]domain.CaseTeamMember, error) {
	c, err := s.getCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	entries, err := s.members.ListActiveByCase(ctx, caseID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !s.canViewTeam(c, entries, actorUserID, actor) {
		return nil, apperrors.NewNotFound("case", map[string]any{"case_id": caseID})
	}
	return entries, nil
}

// ClaimCase makes the acting consultant the case's first primary.
func (s *TeamService) ClaimCase(ctx context.Context, actor *domain.Consultant, caseID string) (*domain.CaseTeamMember, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("consultant required")
	}
	if !actor.Active {
		return nil, apperrors.NewForbidden("inactive consultant")
	}
	c, err := s.getCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.CaseStatusWaiting {
		return nil, apperrors.NewConflict("case is not waiting for a consultant", map[string]any{"status": c.Status})
	}

	member := &domain.CaseTeamMember{
		CaseID:       caseID,
		ConsultantID: actor.ID,
	}
	if err := s.members.ClaimPrimary(ctx, member); err != nil {
		switch {
		case errors.Is(err, repository.ErrPrimaryExists):
			return nil, apperrors.NewConflict("case already has a primary consultant", map[string]any{"case_id": caseID})
		case errors.Is(err, repository.ErrDuplicateMember):
			return nil, apperrors.NewConflict("consultant already on the case team", map[string]any{"case_id": caseID})
		default:
			return nil, apperrors.MapError(err)
		}
	}
	s.recordAssigneeChange(ctx, actor.ID, caseID, c.AssignedConsultantID, &actor.ID)
	return member, nil
}

// Invite adds an unapproved collaborator entry. Only the case's effective
// primary may invite; the target must be an active consultant without any
// existing entry for the case.
func (s *TeamService) Invite(ctx context.Context, actor *domain.Consultant, caseID, targetConsultantID, notes string) (*domain.CaseTeamMember, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("consultant required")
	}
	if _, err := s.getCase(ctx, caseID); err != nil {
		return nil, err
	}
	if err := s.requireEffectivePrimary(ctx, caseID, actor.ID); err != nil {
		return nil, err
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

	member := &domain.CaseTeamMember{
		CaseID:       caseID,
		ConsultantID: target.ID,
		Role:         domain.TeamRoleCollaborator,
		InvitedByID:  &actor.ID,
		Notes:        strings.TrimSpace(notes),
		Active:       true,
	}
	if err := s.members.Create(ctx, member); err != nil {
		if errors.Is(err, repository.ErrDuplicateMember) {
			return nil, apperrors.NewConflict("consultant already on the case team", map[string]any{"consultant_id": targetConsultantID})
		}
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:   events.EventTeamMemberInvited,
		CaseID: &caseID,
		Actor:  consultantActor(actor.ID),
		Payload: events.TeamMemberInvitedPayload{
			EntryID:      member.ID,
			ConsultantID: target.ID,
			InvitedByID:  actor.ID,
		},
	})
	return member, nil
}

// Approve activates a pending collaborator entry. Submitter only.
func (s *TeamService) Approve(ctx context.Context, approverUserID, caseID, entryID string) (*domain.CaseTeamMember, error) {
	entry, err := s.pendingEntryForSubmitter(ctx, approverUserID, caseID, entryID)
	if err != nil {
		return nil, err
	}
	approved, err := s.members.Approve(ctx, entry.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.recordTeamChange(ctx, domain.SubjectTypeUser, approverUserID, caseID, "collaborator_approved", approved.ConsultantID)
	return approved, nil
}

// Reject deletes a pending collaborator entry. Submitter only. The entry
// never became effective, so nothing is kept.
func (s *TeamService) Reject(ctx context.Context, approverUserID, caseID, entryID string) error {
	entry, err := s.pendingEntryForSubmitter(ctx, approverUserID, caseID, entryID)
	if err != nil {
		return err
	}
	if err := s.members.Delete(ctx, entry.ID); err != nil {
		return apperrors.MapError(err)
	}
	s.recordTeamChange(ctx, domain.SubjectTypeUser, approverUserID, caseID, "collaborator_rejected", entry.ConsultantID)
	return nil
}

// Remove deactivates a non-primary entry, preserving history. Only the
// effective primary may remove, and never itself: primaries change hands
// through referral alone.
func (s *TeamService) Remove(ctx context.Context, actor *domain.Consultant, caseID, entryID string) error {
	if actor == nil {
		return apperrors.NewUnauthorized("consultant required")
	}
	if _, err := s.getCase(ctx, caseID); err != nil {
		return err
	}
	if err := s.requireEffectivePrimary(ctx, caseID, actor.ID); err != nil {
		return err
	}

	entry, err := s.members.GetByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("team entry", map[string]any{"entry_id": entryID})
		}
		return apperrors.MapError(err)
	}
	if entry.CaseID != caseID || !entry.Active {
		return apperrors.NewNotFound("team entry", map[string]any{"entry_id": entryID})
	}
	if entry.EffectivePrimary() {
		return apperrors.NewConflict("primary entry can only be replaced via referral", map[string]any{"role": entry.Role})
	}

	if err := s.members.Deactivate(ctx, entry.ID); err != nil {
		return apperrors.MapError(err)
	}
	s.recordTeamChange(ctx, domain.SubjectTypeConsultant, actor.ID, caseID, "member_removed", entry.ConsultantID)
	return nil
}

// ListPendingApprovals returns unapproved collaborator entries across all of
// the submitter's cases.
func (s *TeamService) ListPendingApprovals(ctx context.Context, submitterID string) ([]domain.CaseTeamMember, error) {
	entries, err := s.members.ListPendingBySubmitter(ctx, submitterID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

func (s *TeamService) getCase(ctx context.Context, caseID string) (*domain.Case, error) {
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("case", map[string]any{"case_id": caseID})
		}
		return nil, apperrors.MapError(err)
	}
	return c, nil
}

// requireEffectivePrimary is the shared authorization guard: the acting
// consultant must hold the case's single active primary or referred entry.
func (s *TeamService) requireEffectivePrimary(ctx context.Context, caseID, consultantID string) error {
	primary, err := s.members.GetEffectivePrimary(ctx, caseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewForbidden("case has no primary consultant")
		}
		return apperrors.MapError(err)
	}
	if primary.ConsultantID != consultantID {
		return apperrors.NewForbidden("only the case's primary consultant may do this")
	}
	return nil
}

func (s *TeamService) pendingEntryForSubmitter(ctx context.Context, approverUserID, caseID, entryID string) (*domain.CaseTeamMember, error) {
	c, err := s.getCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.SubmitterID != approverUserID {
		return nil, apperrors.NewForbidden("only the case's submitter may approve or reject collaborators")
	}
	entry, err := s.members.GetByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("team entry", map[string]any{"entry_id": entryID})
		}
		return nil, apperrors.MapError(err)
	}
	if entry.CaseID != caseID || !entry.Active {
		return nil, apperrors.NewNotFound("team entry", map[string]any{"entry_id": entryID})
	}
	if entry.Role != domain.TeamRoleCollaborator || entry.ApprovedAt != nil {
		return nil, apperrors.NewConflict("entry is not awaiting approval", map[string]any{"role": entry.Role})
	}
	return entry, nil
}

func (s *TeamService) canViewTeam(c *domain.Case, entries []domain.CaseTeamMember, actorUserID *string, actor *domain.Consultant) bool {
	if actorUserID != nil && c.SubmitterID == *actorUserID {
		return true
	}
	if actor == nil {
		return false
	}
	if actor.Role == domain.ConsultantRoleAdmin {
		return true
	}
	for _, entry := range entries {
		if entry.ConsultantID == actor.ID {
			return true
		}
	}
	return false
}

func (s *TeamService) recordAssigneeChange(ctx context.Context, actorID, caseID string, oldAssignee, newAssignee *string) {
	if s.history == nil {
		return
	}
	_ = s.history.Create(ctx, &domain.CaseHistory{
		CaseID:        caseID,
		ChangedByType: domain.SubjectTypeConsultant,
		ChangedByID:   &actorID,
		ChangeType:    domain.ChangeTypeAssignee,
		OldValue:      map[string]any{"assigned_consultant_id": oldAssignee},
		NewValue:      map[string]any{"assigned_consultant_id": newAssignee},
	})
}

func (s *TeamService) recordTeamChange(ctx context.Context, subject domain.SubjectType, actorID, caseID, action, consultantID string) {
	if s.history == nil {
		return
	}
	_ = s.history.Create(ctx, &domain.CaseHistory{
		CaseID:        caseID,
		ChangedByType: subject,
		ChangedByID:   &actorID,
		ChangeType:    domain.ChangeTypeTeam,
		NewValue: map[string]any{
			"action":        action,
			"consultant_id": consultantID,
		},
	})
}

func (s *TeamService) publish(ctx context.Context, event events.Event) {
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
