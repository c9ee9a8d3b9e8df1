package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/consultation-service/internal/api/dto"
	"github.com/spec-kit/consultation-service/internal/auth"
	"github.com/spec-kit/consultation-service/internal/domain"
	"github.com/spec-kit/consultation-service/internal/service"
	apperrors "github.com/spec-kit/consultation-service/pkg/util"
)

// AlertsHandler manages the admin crisis alert queue.
type AlertsHandler struct {
	alerts *service.AlertService
}

// NewAlertsHandler constructs handler.
func NewAlertsHandler(alertService *service.AlertService) *AlertsHandler {
	return &AlertsHandler{alerts: alertService}
}

// ListQueue GET /alerts.
func (h *AlertsHandler) ListQueue(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Consultant == nil {
		return apperrors.NewUnauthorized("consultant required")
	}
	filter := parseAlertQuery(c)
	alerts, err := h.alerts.ListQueue(c.Context(), principal.Consultant, filter)
	if err != nil {
		return err
	}
	items := make([]dto.AlertResponse, 0, len(alerts))
	for i := range alerts {
		items = append(items, alertResponse(&alerts[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Acknowledge POST /alerts/:id/acknowledge.
func (h *AlertsHandler) Acknowledge(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Consultant == nil {
		return apperrors.NewUnauthorized("consultant required")
	}
	alert, err := h.alerts.Acknowledge(c.Context(), principal.Consultant, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": alertResponse(alert)})
}

// Resolve POST /alerts/:id/resolve.
func (h *AlertsHandler) Resolve(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Consultant == nil {
		return apperrors.NewUnauthorized("consultant required")
	}
	var req dto.ResolveAlertRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	alert, err := h.alerts.Resolve(c.Context(), principal.Consultant, c.Params("id"), req.ResolutionNotes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": alertResponse(alert)})
}

func parseAlertQuery(c *fiber.Ctx) service.AlertQueueFilter {
	filter := service.AlertQueueFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.AlertStatus(strings.TrimSpace(part)))
		}
	}
	if severityStr := c.Query("severity"); severityStr != "" {
		for _, part := range strings.Split(severityStr, ",") {
			filter.Severities = append(filter.Severities, domain.RiskLevel(strings.TrimSpace(part)))
		}
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func alertResponse(alert *domain.CrisisAlert) dto.AlertResponse {
	return dto.AlertResponse{
		ID:                   alert.ID,
		CaseID:               alert.CaseID,
		MessageID:            alert.MessageID,
		Type:                 alert.Type,
		Severity:             alert.Severity,
		Status:               alert.Status,
		DetectedFlags:        alert.DetectedFlags,
		Context:              alert.Context,
		AssignedConsultantID: alert.AssignedConsultantID,
		AcknowledgedAt:       alert.AcknowledgedAt,
		ResolvedAt:           alert.ResolvedAt,
		ResolutionNotes:      alert.ResolutionNotes,
		CreatedAt:            alert.CreatedAt,
	}
}
