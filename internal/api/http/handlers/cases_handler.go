package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/consultation-service/internal/api/dto"
	"github.com/spec-kit/consultation-service/internal/auth"
	"github.com/spec-kit/consultation-service/internal/domain"
	"github.com/spec-kit/consultation-service/internal/service"
	apperrors "github.com/spec-kit/consultation-service/pkg/util"
)

// CasesHandler manages case endpoints for submitters and consultants.
type CasesHandler struct {
	cases *service.CaseService
	team  *service.TeamService
}

// NewCasesHandler constructs handler.
func NewCasesHandler(caseService *service.CaseService, teamService *service.TeamService) *CasesHandler {
	return &CasesHandler{cases: caseService, team: teamService}
}

// CreateCase POST /cases.
func (h *CasesHandler) CreateCase(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.CreateCaseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.CaseCreateInput{
		Category:         req.Category,
		Description:      req.Description,
		ScreeningAnswers: req.ScreeningAnswers,
	}
	created, err := h.cases.CreateCase(c.Context(), principal.User.ID, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": caseSummary(created)})
}

// ListCases GET /cases.
func (h *CasesHandler) ListCases(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	filter := parseUserCaseQuery(c)
	cases, err := h.cases.ListUserCases(c.Context(), principal.User.ID, filter)
	if err != nil {
		return err
	}
	items := make([]dto.CaseSummary, 0, len(cases))
	for i := range cases {
		items = append(items, caseSummary(&cases[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetCase GET /cases/:id.
func (h *CasesHandler) GetCase(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	found, err := h.cases.GetCaseForUser(c.Context(), principal.User.ID, c.Params("id"))
	if err != nil {
		return err
	}
	history, err := h.cases.ListHistoryForUser(c.Context(), principal.User.ID, found.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": caseDetail(found, history)})
}

// Panic POST /panic.
func (h *CasesHandler) Panic(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("user required")
	}
	var req dto.PanicRequest
	// An empty body is fine; the trigger itself is the signal.
	_ = c.BodyParser(&req)

	alert, err := h.cases.TriggerPanic(c.Context(), principal.User.ID, req.CaseID, req.Context)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": alertResponse(alert)})
}

// ClaimCase POST /cases/:id/claim.
func (h *CasesHandler) ClaimCase(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Consultant == nil {
		return apperrors.NewUnauthorized("consultant required")
	}
	member, err := h.team.ClaimCase(c.Context(), principal.Consultant, c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": teamMemberResponse(member)})
}

// UpdateStatus PATCH /cases/:id/status.
func (h *CasesHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Consultant == nil {
		return apperrors.NewUnauthorized("consultant required")
	}
	var req dto.UpdateCaseStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	updated, err := h.cases.UpdateStatus(c.Context(), principal.Consultant, c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": caseSummary(updated)})
}

func parseUserCaseQuery(c *fiber.Ctx) service.CaseUserFilter {
	filter := service.CaseUserFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.CaseStatus(strings.TrimSpace(part)))
		}
	}
	if from := parseTime(c.Query("created_from")); from != nil {
		filter.CreatedFrom = from
	}
	if to := parseTime(c.Query("created_to")); to != nil {
		filter.CreatedTo = to
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func caseSummary(c *domain.Case) dto.CaseSummary {
	return dto.CaseSummary{
		ID:                   c.ID,
		ExternalKey:          c.ExternalKey,
		Category:             c.Category,
		RiskLevel:            c.RiskLevel,
		Urgency:              c.Urgency,
		Status:               c.Status,
		AssignedConsultantID: c.AssignedConsultantID,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
	}
}

func caseDetail(c *domain.Case, history []domain.CaseHistory) dto.CaseDetailResponse {
	return dto.CaseDetailResponse{
		ID:                   c.ID,
		ExternalKey:          c.ExternalKey,
		Category:             c.Category,
		Description:          c.Description,
		ScreeningAnswers:     c.ScreeningAnswers,
		RiskLevel:            c.RiskLevel,
		Urgency:              c.Urgency,
		Status:               c.Status,
		AssignedConsultantID: c.AssignedConsultantID,
		CreatedAt:            c.CreatedAt,
		UpdatedAt:            c.UpdatedAt,
		History:              historyResponses(history),
	}
}

func historyResponses(entries []domain.CaseHistory) []dto.CaseHistoryResponse {
	resp := make([]dto.CaseHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.CaseHistoryResponse{
			ID:            entry.ID,
			ChangeType:    entry.ChangeType,
			ChangedByType: entry.ChangedByType,
			ChangedByID:   entry.ChangedByID,
			OldValue:      entry.OldValue,
			NewValue:      entry.NewValue,
			CreatedAt:     entry.CreatedAt,
		})
	}
	return resp
}
