package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/consultation-service/internal/api/dto"
	"github.com/spec-kit/consultation-service/internal/auth"
	"github.com/spec-kit/consultation-service/internal/domain"
	"github.com/spec-kit/consultation-service/internal/service"
	apperrors "github.com/spec-kit/consultation-service/pkg/util"
)

// ConsultantsHandler exposes consultant auth and password endpoints.
type ConsultantsHandler struct {
	authService *service.AuthService
}

// NewConsultantsHandler constructs handler.
func NewConsultantsHandler(authService *service.AuthService) *ConsultantsHandler {
	return &ConsultantsHandler{authService: authService}
}

// Login handles POST /auth/consultants/login.
func (h *ConsultantsHandler) Login(c *fiber.Ctx) error {
	var req dto.ConsultantLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password are required", nil)
	}

	consultant, token, exp, err := h.authService.LoginConsultant(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"consultant": consultantResponse(consultant),
			"auth":       dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// RequestPasswordReset handles POST /auth/password/reset/request. An unknown
// email still gets a 202 so the endpoint cannot be used to probe accounts.
func (h *ConsultantsHandler) RequestPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" {
		return apperrors.NewValidationError("email is required", nil)
	}

	token, err := h.authService.RequestPasswordReset(c.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(http.StatusAccepted).JSON(fiber.Map{
				"data": fiber.Map{"status": "accepted"},
			})
		}
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{
		"data": fiber.Map{
			"status":      "accepted",
			"reset_token": token.Token,
			"expires_at":  token.ExpiresAt,
		},
	})
}

// ConfirmPasswordReset handles POST /auth/password/reset/confirm.
func (h *ConsultantsHandler) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req dto.PasswordResetConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Token == "" || req.NewPassword == "" {
		return apperrors.NewValidationError("token and new password are required", nil)
	}

	if err := h.authService.ConfirmPasswordReset(c.Context(), req.Token, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "password_reset"}})
}

// ChangePassword handles POST /auth/password/change.
func (h *ConsultantsHandler) ChangePassword(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	var req dto.PasswordChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return apperrors.NewValidationError("current and new password are required", nil)
	}

	subject := service.AuthSubject{Type: principal.SubjectType}
	switch principal.SubjectType {
	case domain.SubjectTypeUser:
		subject.ID = principal.User.ID
	case domain.SubjectTypeConsultant:
		subject.ID = principal.Consultant.ID
	default:
		return apperrors.NewUnauthorized("authentication required")
	}

	if err := h.authService.ChangePassword(c.Context(), subject, req.CurrentPassword, req.NewPassword); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "password_changed"}})
}

func consultantResponse(consultant *domain.Consultant) fiber.Map {
	return fiber.Map{
		"id":        consultant.ID,
		"name":      consultant.Name,
		"email":     consultant.Email,
		"role":      consultant.Role,
		"specialty": consultant.Specialty,
		"active":    consultant.Active,
	}
}
