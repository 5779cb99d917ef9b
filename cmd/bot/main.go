package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticketbox/internal/api/http"
	"github.com/spec-kit/ticketbox/internal/api/http/handlers"
	"github.com/spec-kit/ticketbox/internal/auth"
	"github.com/spec-kit/ticketbox/internal/chat/discord"
	"github.com/spec-kit/ticketbox/internal/config"
	"github.com/spec-kit/ticketbox/internal/events"
	"github.com/spec-kit/ticketbox/internal/observability"
	"github.com/spec-kit/ticketbox/internal/persistence"
	"github.com/spec-kit/ticketbox/internal/repository"
	"github.com/spec-kit/ticketbox/internal/service"
	"github.com/spec-kit/ticketbox/internal/worker"
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

	transport, err := discord.New(cfg.Discord.Token, logger.Named("discord"))
	if err != nil {
		logger.Fatal("failed to connect discord", zap.Error(err))
	}

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)
	dutyRepo := repository.NewDutyRepository(pool)
	dashboardUserRepo := repository.NewDashboardUserRepository(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	settingsService := service.NewSettingsService(settingsRepo, cfg.Tickets)
	dutyService := service.NewDutyService(dutyRepo, logger.Named("duty"))
	accessService := service.NewAccessService(transport, logger.Named("access"))
	auditService := service.NewAuditService(ticketRepo, transport, settingsService, redis.Client, cfg.Tickets, logger.Named("audit"))
	transcriptService := service.NewTranscriptService(ticketRepo, transport, auditService, settingsService, cfg.Tickets, logger.Named("transcript"))
	participantService := service.NewParticipantService(ticketRepo, transport, accessService, dispatcher, logger.Named("participants"))

	engine := service.NewLifecycleEngine(service.LifecycleDependencies{
		TicketRepo:   ticketRepo,
		Access:       accessService,
		Participants: participantService,
		Audit:        auditService,
		Transcript:   transcriptService,
		Settings:     settingsService,
		Duty:         dutyService,
		Transport:    transport,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       logger.Named("lifecycle"),
	})

	actionLog := service.NewActionLogService(dispatcher, transport, settingsService, logger.Named("actionlog"))
	worker.StartActionLogWorker(actionLog)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens, dashboardUserRepo)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Session:        handlers.NewSessionHandler(dashboardUserRepo, tokens),
		Tickets:        handlers.NewTicketsHandler(ticketRepo),
		Actions:        handlers.NewActionsHandler(engine),
		Settings:       handlers.NewSettingsHandler(settingsService),
		Duty:           handlers.NewDutyHandler(dutyService),
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
