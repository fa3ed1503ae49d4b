package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/kanban-service/internal/api/http"
	"github.com/spec-kit/kanban-service/internal/api/http/handlers"
	"github.com/spec-kit/kanban-service/internal/auth"
	"github.com/spec-kit/kanban-service/internal/config"
	"github.com/spec-kit/kanban-service/internal/events"
	"github.com/spec-kit/kanban-service/internal/observability"
	"github.com/spec-kit/kanban-service/internal/persistence"
	"github.com/spec-kit/kanban-service/internal/repository"
	"github.com/spec-kit/kanban-service/internal/service"
	"github.com/spec-kit/kanban-service/internal/worker"
)

const shutdownTimeout = 10 * time.Second

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

	if cfg.Postgres.DSN == "" {
		logger.Fatal("POSTGRES_DSN is required")
	}
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(cfg.Postgres.DSN, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var (
		redis       *persistence.Redis
		revocations auth.Revocations
	)
	if cfg.Redis.Addr != "" {
		redis = persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		revocations = auth.NewRedisRevocations(redis.Client)
	} else {
		logger.Warn("REDIS_ADDR not provided; token revocations kept in memory")
		revocations = auth.NewMemoryRevocations()
	}

	store := repository.NewStore(pg.PoolHandle())
	userRepo := store.Repositories().Users
	dispatcher := events.NewInMemoryDispatcher(logger)

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:    userRepo,
		Revocations: revocations,
	})
	userService := service.NewUserService(userRepo)
	categoryService := service.NewCategoryService(service.CategoryDependencies{
		Store:         store,
		Dispatcher:    dispatcher,
		AdvisoryLocks: cfg.Board.AdvisoryLocks,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		Store:              store,
		Relocator:          service.NewRelocator(cfg.Board.AdvisoryLocks),
		Dispatcher:         dispatcher,
		HistoryPageSize:    cfg.Board.HistoryPageSize,
		HistoryMaxPageSize: cfg.Board.HistoryMaxPageSize,
	})
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, cfg.Notification))

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo, revocations)
	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, httptransport.MiddlewareConfig{
		Timeout:     cfg.App.RequestTimeout(),
		CORSOrigins: cfg.App.CORSOrigins,
	})

	dependencies := map[string]handlers.Pinger{"postgres": pg}
	if redis != nil {
		dependencies["redis"] = redis
	}
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies),
		Users:          handlers.NewUsersHandler(authService, userService, cfg.Auth.CookieSecure),
		Categories:     handlers.NewCategoriesHandler(categoryService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		AuthMiddleware: authMiddleware.Handle,
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
