package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/consultation-service/internal/api/http/handlers"
	"github.com/spec-kit/consultation-service/internal/auth"
	"github.com/spec-kit/consultation-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Consultants    *handlers.ConsultantsHandler
	Cases          *handlers.CasesHandler
	Alerts         *handlers.AlertsHandler
	Team           *handlers.TeamHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/users/register", cfg.Users.Register)
	authGroup.Post("/users/login", cfg.Users.Login)

	authGroup.Post("/consultants/login", cfg.Consultants.Login)
	authGroup.Post("/password/reset/request", cfg.Consultants.RequestPasswordReset)
	authGroup.Post("/password/reset/confirm", cfg.Consultants.ConfirmPasswordReset)

	protectedAuth := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	protectedAuth.Post("/password/change", cfg.Consultants.ChangePassword)

	userGroup := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireUser())
	userGroup.Post("/cases", cfg.Cases.CreateCase)
	userGroup.Get("/cases", cfg.Cases.ListCases)
	userGroup.Post("/panic", cfg.Cases.Panic)
	userGroup.Get("/approvals", cfg.Team.ListApprovals)
	userGroup.Get("/cases/:id", cfg.Cases.GetCase)
	userGroup.Post("/cases/:id/team/:entryId/approve", cfg.Team.Approve)
	userGroup.Post("/cases/:id/team/:entryId/reject", cfg.Team.Reject)

	consultantGroup := app.Group("/consultant",
		cfg.AuthMiddleware.Handle,
		auth.RequireConsultantRole(domain.ConsultantRoleConsultant, domain.ConsultantRoleAdmin))
	consultantGroup.Post("/cases/:id/claim", cfg.Cases.ClaimCase)
	consultantGroup.Patch("/cases/:id/status", cfg.Cases.UpdateStatus)
	consultantGroup.Post("/cases/:id/team/invite", cfg.Team.Invite)
	consultantGroup.Post("/cases/:id/team/refer", cfg.Team.Refer)
	consultantGroup.Delete("/cases/:id/team/:entryId", cfg.Team.Remove)

	teamView := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	teamView.Get("/cases/:id/team", cfg.Team.ListTeam)

	adminGroup := app.Group("/alerts",
		cfg.AuthMiddleware.Handle,
		auth.RequireConsultantRole(domain.ConsultantRoleAdmin))
	adminGroup.Get("/", cfg.Alerts.ListQueue)
	adminGroup.Post("/:id/acknowledge", cfg.Alerts.Acknowledge)
	adminGroup.Post("/:id/resolve", cfg.Alerts.Resolve)
}
