package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/consultation-service/internal/api/dto"
	"github.com/spec-kit/consultation-service/internal/auth"
	"github.com/spec-kit/consultation-service/internal/domain"
	"github.com/spec-kit/consultation-service/internal/service"
	apperrors "github.com/spec-kit/consultation-service/pkg/util"
)

// TeamHandler manages case team endpoints.
type TeamHandler struct {
	team      *service.TeamService
	referrals *service.ReferralService
}

// NewTeamHandler constructs handler.
func NewTeamHandler(teamService *service.TeamService, referralService *service.ReferralService) *TeamHandler {
	return &TeamHandler{team: teamService, referrals: referralService}
}

// ListTeam GET /cases/:id/team.
func (h *TeamHandler) ListTeam(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var userID *string
	if principal.User != nil {
		userID = &principal.User.ID
	}
	entries, err := h.team.ListTeam(c.Context(), userID, principal.Consultant, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.TeamMemberResponse, 0, len(entries))
	for i := range entries {
		items = append(items, teamMemberResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Invite POST /cases/:id/team/invite.
func (h *TeamHandler) Invite(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Consultant == nil {
		return apperrors.NewUnauthorized("consultant required")
	}
	var req dto.InviteMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ConsultantID == "" {
		return apperrors.NewValidationError("consultant_id required", nil)
	}
	member, err := h.team.Invite(c.Context(), principal.Consultant, c.Params("id"), req.ConsultantID, req.Notes)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": teamMemberResponse(member)})
}

// Approve POST /cases/:id/team/:entryId/approve.
func (h *TeamHandler) Approve(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	member, err := h.team.Approve(c.Context(), principal.User.ID, c.Params("id"), c.Params("entryId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": teamMemberResponse(member)})
}

// Reject POST /cases/:id/team/:entryId/reject.
func (h *TeamHandler) Reject(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	if err := h.team.Reject(c.Context(), principal.User.ID, c.Params("id"), c.Params("entryId")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "rejected"}})
}

// Remove DELETE /cases/:id/team/:entryId.
func (h *TeamHandler) Remove(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Consultant == nil {
		return apperrors.NewUnauthorized("consultant required")
	}
	if err := h.team.Remove(c.Context(), principal.Consultant, c.Params("id"), c.Params("entryId")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "removed"}})
}

// Refer POST /cases/:id/team/refer.
func (h *TeamHandler) Refer(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Consultant == nil {
		return apperrors.NewUnauthorized("consultant required")
	}
	var req dto.ReferCaseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.ConsultantID == "" {
		return apperrors.NewValidationError("consultant_id required", nil)
	}
	member, err := h.referrals.Refer(c.Context(), principal.Consultant, c.Params("id"), req.ConsultantID, req.HandoverNotes)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": teamMemberResponse(member)})
}

// ListApprovals GET /approvals.
func (h *TeamHandler) ListApprovals(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	entries, err := h.team.ListPendingApprovals(c.Context(), principal.User.ID)
	if err != nil {
		return err
	}
	items := make([]dto.TeamMemberResponse, 0, len(entries))
	for i := range entries {
		items = append(items, teamMemberResponse(&entries[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

func teamMemberResponse(member *domain.CaseTeamMember) dto.TeamMemberResponse {
	return dto.TeamMemberResponse{
		ID:            member.ID,
		CaseID:        member.CaseID,
		ConsultantID:  member.ConsultantID,
		Role:          member.Role,
		InvitedByID:   member.InvitedByID,
		Notes:         member.Notes,
		Active:        member.Active,
		InvitedAt:     member.InvitedAt,
		ApprovedAt:    member.ApprovedAt,
		DeactivatedAt: member.DeactivatedAt,
	}
}
