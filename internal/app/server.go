// internal/app/server.go
package app

import (
	"context"
	"fmt"
	"log"

	"telecrm-service/internal/config"
	"telecrm-service/internal/db"
	leaddomain "telecrm-service/internal/domain/lead"
	assignmentHandler "telecrm-service/internal/handlers/assignment"
	authHandler "telecrm-service/internal/handlers/auth"
	leadHandler "telecrm-service/internal/handlers/lead"
	wsHandler "telecrm-service/internal/handlers/ws"
	"telecrm-service/internal/middleware"
	"telecrm-service/internal/pkg/jwt"
	"telecrm-service/internal/pkg/session"
	"telecrm-service/internal/queue"
	"telecrm-service/internal/repository/cache"
	"telecrm-service/internal/repository/postgres"
	assignmentUsecase "telecrm-service/internal/service/assignment"
	"telecrm-service/internal/service/audit"
	authUsecase "telecrm-service/internal/service/auth"
	leadUsecase "telecrm-service/internal/service/lead"
	"telecrm-service/internal/service/scheduler"
	"telecrm-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger

	cron *scheduler.CronManager
	rmq  *queue.RabbitMQ
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.Default()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- Logger -----
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()
	s.logger = logger

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       s.cfg.RedisDB,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	// ----- RabbitMQ (optional) -----
	auditService := audit.NewService(nil, logger)
	if s.cfg.AMQPURL != "" {
		rmq, err := queue.NewRabbitMQ(s.cfg.AMQPURL)
		if err != nil {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		s.rmq = rmq
		auditService = audit.NewService(queue.NewLeadEventProducer(rmq), logger)
	} else {
		logger.Warn("AMQP_URL not set, lead events are log-only")
	}

	// ----- JWT & Sessions -----
	jwtManager, err := jwt.NewManager(s.cfg.JWT)
	if err != nil {
		return fmt.Errorf("failed to build JWT manager: %w", err)
	}
	sessionManager := session.NewManager(redisClient)

	// ----- Repositories -----
	leadRepo := postgres.NewLeadRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	directory := cache.NewCachedDirectory(userRepo, redisClient, s.cfg.DirectoryCacheTTL, logger)

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(logger)
	go hub.Run()

	// ----- Services -----
	authService := authUsecase.NewAuthService(userRepo, jwtManager, sessionManager, logger)

	policy := leaddomain.TransitionPolicy{
		HotReassignAfter:  s.cfg.HotReassignAfter,
		LostReassignAfter: s.cfg.LostReassignAfter,
	}
	leadService := leadUsecase.NewService(leadRepo, directory, auditService, policy, logger)
	engineService := assignmentUsecase.NewService(leadRepo, directory, auditService, hub, logger)
	sweepService := scheduler.NewService(leadRepo, directory, engineService, nil, logger)

	// ----- Cron -----
	s.cron = scheduler.NewCronManager(sweepService, userRepo, s.cfg.SweepCronSpec, logger)
	if err := s.cron.SetupJobs(); err != nil {
		return fmt.Errorf("failed to register cron jobs: %w", err)
	}
	s.cron.Start()

	// ----- Handlers -----
	authHandlerInst := authHandler.NewAuthHandler(authService)
	leadHandlerInst := leadHandler.NewLeadHandler(leadService)
	assignmentHandlerInst := assignmentHandler.NewAssignmentHandler(engineService, sweepService)
	wsHandlerInst := wsHandler.NewWSHandler(hub, logger)

	// ----- Middlewares -----
	authMiddleware := middleware.NewAuthMiddleware(authService)

	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(),
	)

	// ----- Router -----
	handlers := &Handlers{
		AuthHandler:       authHandlerInst,
		LeadHandler:       leadHandlerInst,
		AssignmentHandler: assignmentHandlerInst,
		WSHandler:         wsHandlerInst,
		AuthMiddleware:    authMiddleware,
	}
	SetupRouter(s.engine, logger, handlers)

	// ----- Start HTTP -----
	log.Printf("server running on %s", s.cfg.HTTPAddr)
	return s.engine.Run(s.cfg.HTTPAddr)
}

// Shutdown stops the cron scheduler and closes the broker connection.
func (s *Server) Shutdown() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.rmq != nil {
		s.rmq.Close()
	}
}
