package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/parampatil/dashboardv2-sub000/internal/api"
	"github.com/parampatil/dashboardv2-sub000/internal/config"
	"github.com/parampatil/dashboardv2-sub000/internal/core"
	"github.com/parampatil/dashboardv2-sub000/internal/db"
	"github.com/parampatil/dashboardv2-sub000/internal/environments"
	"github.com/parampatil/dashboardv2-sub000/internal/middleware"
	"github.com/parampatil/dashboardv2-sub000/internal/notify"
	"github.com/parampatil/dashboardv2-sub000/pkg/cache"
	"github.com/parampatil/dashboardv2-sub000/pkg/mailer"
	"github.com/parampatil/dashboardv2-sub000/pkg/messagequeue"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	initCtx, cancelInit := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelInit()

	clients, err := db.NewClients(initCtx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize Firebase clients", zap.Error(err))
	}
	defer clients.Close()
	logger.Info("Firebase Admin SDK initialized", zap.String("project", cfg.FirebaseProjectID))

	// Repositories.
	userRepo := db.NewFirestoreUserRepository(clients.Firestore)
	roleRepo := db.NewFirestoreRoleRepository(clients.Firestore)
	invitationRepo := db.NewFirestoreInvitationRepository(clients.Firestore)
	auditRepo := db.NewFirestoreAuditRepository(clients.Firestore)

	// Environment selection persistence: Redis when configured, otherwise an
	// in-process cache (selections then survive only the process lifetime).
	var selectionStore cache.Cache
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedisCache(initCtx, cache.RedisConfig{
			Address:  cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		defer redisCache.Close()
		selectionStore = redisCache
		logger.Info("Redis selection store connected", zap.String("addr", cfg.RedisAddr))
	} else {
		selectionStore = cache.NewMemoryCache()
		logger.Warn("REDIS_ADDR not set; environment selections will not survive restarts")
	}

	// Invitation event queue and mail notifier. Optional: without AMQP the
	// invitation lifecycle works, invitees just get no email.
	var queue messagequeue.MessageQueue
	if cfg.AMQPURL != "" {
		rabbit, err := messagequeue.NewRabbitMQ(cfg.AMQPURL)
		if err != nil {
			logger.Fatal("failed to connect to RabbitMQ", zap.Error(err))
		}
		defer rabbit.Close()
		queue = rabbit

		mail, err := mailer.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailSender)
		if err != nil {
			logger.Fatal("failed to configure mailer", zap.Error(err))
		}
		notifier := notify.New(queue, cfg.InvitationQueueName, mail, cfg.ClientURL, logger)
		if err := notifier.Start(); err != nil {
			logger.Fatal("failed to start invitation notifier", zap.Error(err))
		}
		logger.Info("invitation notifier started", zap.String("queue", cfg.InvitationQueueName))
	} else {
		logger.Warn("AMQP_URL not set; invitation emails are disabled")
	}

	// Services. Role and entitlement mutations share one per-user lock so
	// their read-modify-write sequences never interleave.
	userLock := db.NewKeyedLock()
	auditService := core.NewAuditService(auditRepo, logger)
	invitationService := core.NewInvitationService(invitationRepo, queue, cfg.InvitationQueueName, auditService, logger)
	roleService := core.NewRoleService(userRepo, roleRepo, userLock, auditService, logger)
	entitlementService := core.NewEntitlementService(userRepo, userLock, auditService, logger)
	provisioningService := core.NewProvisioningService(userRepo, invitationRepo, invitationService, roleService, entitlementService, logger)
	userService := core.NewUserService(userRepo, db.NewFirebaseAccounts(clients.Auth), invitationService, auditService, logger)

	// Backend environments.
	registry := environments.NewRegistry(cfg)
	selector := environments.NewSelector(registry, selectionStore, cfg.DefaultEnvironment, logger)
	pool := environments.NewConnPool(registry)
	defer pool.Close()

	if strings.ToLower(cfg.GinMode) == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RecoveryMiddleware(logger))
	if cfg.ClientURL != "" {
		router.Use(middleware.CORSMiddleware(cfg))
	} else {
		logger.Warn("CLIENT_URL not set; CORS middleware skipped")
	}

	api.SetupRoutes(router, clients.Auth, api.Services{
		Users:        userService,
		Roles:        roleService,
		Entitlements: entitlementService,
		Invitations:  invitationService,
		Provisioner:  provisioningService,
		Registry:     registry,
		Selector:     selector,
		Pool:         pool,
	}, logger)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	go func() {
		logger.Info("HTTP server starting", zap.String("addr", httpServer.Addr), zap.String("ginMode", gin.Mode()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutdown signal received", zap.String("signal", sig.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("forced shutdown", zap.Error(err))
	}
	logger.Info("server exited gracefully")
}
