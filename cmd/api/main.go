package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/consultation-service/internal/api/http"
	"github.com/spec-kit/consultation-service/internal/api/http/handlers"
	"github.com/spec-kit/consultation-service/internal/auth"
	"github.com/spec-kit/consultation-service/internal/config"
	"github.com/spec-kit/consultation-service/internal/events"
	"github.com/spec-kit/consultation-service/internal/notify"
	"github.com/spec-kit/consultation-service/internal/observability"
	"github.com/spec-kit/consultation-service/internal/persistence"
	"github.com/spec-kit/consultation-service/internal/repository"
	"github.com/spec-kit/consultation-service/internal/service"
	"github.com/spec-kit/consultation-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	consultantRepo := repository.NewConsultantRepository(pool)
	resetRepo := repository.NewPasswordResetRepository(pool)
	caseRepo := repository.NewCaseRepository(pool)
	alertRepo := repository.NewAlertRepository(pool)
	memberRepo := repository.NewTeamMemberRepository(pool)
	historyRepo := repository.NewCaseHistoryRepository(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if redis.Client != nil {
		notifier = notify.NewRedisNotifier(redis.Client)
	}

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:          userRepo,
		ConsultantRepo:    consultantRepo,
		PasswordResetRepo: resetRepo,
	})
	alertService := service.NewAlertService(cfg.Risk, service.AlertDependencies{
		AlertRepo:      alertRepo,
		ConsultantRepo: consultantRepo,
		Dispatcher:     dispatcher,
		Metrics:        metrics,
	})
	caseService := service.NewCaseService(cfg.Risk, service.CaseDependencies{
		CaseRepo:    caseRepo,
		MemberRepo:  memberRepo,
		HistoryRepo: historyRepo,
		Alerts:      alertService,
	})
	teamService := service.NewTeamService(service.TeamDependencies{
		CaseRepo:       caseRepo,
		MemberRepo:     memberRepo,
		ConsultantRepo: consultantRepo,
		HistoryRepo:    historyRepo,
		Dispatcher:     dispatcher,
	})
	referralService := service.NewReferralService(service.ReferralDependencies{
		CaseRepo:       caseRepo,
		MemberRepo:     memberRepo,
		ConsultantRepo: consultantRepo,
		HistoryRepo:    historyRepo,
		Dispatcher:     dispatcher,
	})
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		ConsultantRepo: consultantRepo,
		MemberRepo:     memberRepo,
		AlertRepo:      alertRepo,
		Notifier:       notifier,
		Dispatcher:     dispatcher,
		Logger:         logger,
	})
	worker.StartNotificationWorker(notificationService)

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo, consultantRepo)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis)
	usersHandler := handlers.NewUsersHandler(authService)
	consultantsHandler := handlers.NewConsultantsHandler(authService)
	casesHandler := handlers.NewCasesHandler(caseService, teamService)
	alertsHandler := handlers.NewAlertsHandler(alertService)
	teamHandler := handlers.NewTeamHandler(teamService, referralService)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		Users:          usersHandler,
		Consultants:    consultantsHandler,
		Cases:          casesHandler,
		Alerts:         alertsHandler,
		Team:           teamHandler,
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
