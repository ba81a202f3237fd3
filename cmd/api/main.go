package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/emberfall/emberfall-api/internal/api/http"
	"github.com/emberfall/emberfall-api/internal/api/http/handlers"
	"github.com/emberfall/emberfall-api/internal/api/ws"
	"github.com/emberfall/emberfall-api/internal/auth"
	"github.com/emberfall/emberfall-api/internal/config"
	"github.com/emberfall/emberfall-api/internal/events"
	"github.com/emberfall/emberfall-api/internal/observability"
	"github.com/emberfall/emberfall-api/internal/persistence"
	"github.com/emberfall/emberfall-api/internal/realtime"
	"github.com/emberfall/emberfall-api/internal/repository"
	"github.com/emberfall/emberfall-api/internal/service"
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
	ticketRepo := repository.NewTicketRepository(pool)
	messageRepo := repository.NewTicketMessageRepository(pool)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL())
	sessions := auth.NewRedisSessionStore(redis.Client)
	resolver := auth.NewResolver(tokens, sessions, userRepo)
	authMiddleware := auth.NewMiddleware(resolver)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	hub := realtime.NewHub(resolver, ticketRepo, logger, metrics, cfg.Realtime.SendBufferSize)
	realtime.BindDispatcher(dispatcher, hub, logger)

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:     userRepo,
		SessionStore: sessions,
		TokenManager: tokens,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  ticketRepo,
		MessageRepo: messageRepo,
		UserRepo:    userRepo,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Staff:          handlers.NewStaffHandler(ticketService),
		AuthMiddleware: authMiddleware,
		Realtime:       []fiber.Handler{ws.Upgrade(), ws.Handler(hub, logger)},
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
