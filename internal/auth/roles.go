package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/consultation-service/internal/domain"
	apperrors "github.com/spec-kit/consultation-service/pkg/util"
)

// RequireUser ensures a submitter is authenticated.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.SubjectType != domain.SubjectTypeUser {
			return apperrors.NewForbidden("user account required")
		}
		return c.Next()
	}
}

// RequireConsultantRole ensures the consultant principal has one of the
// allowed roles.
func RequireConsultantRole(allowed ...domain.ConsultantRole) fiber.Handler {
	allowedSet := make(map[domain.ConsultantRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.SubjectType != domain.SubjectTypeConsultant || principal.Consultant == nil {
			return apperrors.NewForbidden("consultant role required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Consultant.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireAnyRole ensures the caller is authenticated (user or consultant).
func RequireAnyRole() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
