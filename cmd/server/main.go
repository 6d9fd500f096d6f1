package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	returnsapp "github.com/returnhub/backend/internal/application/returns"
	"github.com/returnhub/backend/internal/domain/returns"
	"github.com/returnhub/backend/internal/domain/shared"
	"github.com/returnhub/backend/internal/domain/shared/valueobject"
	"github.com/returnhub/backend/internal/infrastructure/auth"
	"github.com/returnhub/backend/internal/infrastructure/cache"
	"github.com/returnhub/backend/internal/infrastructure/config"
	"github.com/returnhub/backend/internal/infrastructure/events"
	"github.com/returnhub/backend/internal/infrastructure/logger"
	"github.com/returnhub/backend/internal/infrastructure/orderfacts"
	"github.com/returnhub/backend/internal/infrastructure/persistence"
	"github.com/returnhub/backend/internal/infrastructure/storage"
	"github.com/returnhub/backend/internal/interfaces/http/handler"
	"github.com/returnhub/backend/internal/interfaces/http/middleware"
	"github.com/returnhub/backend/internal/interfaces/http/router"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// demoTenantID is seeded with a default policy in development so the static
// order fixtures are usable out of the box
var demoTenantID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting ReturnHub Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port))

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Repositories and domain ports
	returnRepo := persistence.NewGormReturnRequestRepository(db.DB)
	policyStore := persistence.NewGormPolicyStore(db.DB)
	cachedPolicies := cache.NewCachedPolicyStore(policyStore, cfg.Submission.PolicyCacheTTL)

	dedup := newDedupStore(cfg, log)
	orderFacts := newOrderFactsProvider(cfg, log)
	cachedOrderFacts := cache.NewCachedOrderFactsProvider(orderFacts, cfg.Submission.OrderFactsCacheTTL)
	objectStorage := newObjectStorage(cfg, log)

	if cfg.App.Env != "production" {
		seedDemoPolicy(policyStore, log)
	}

	// Application services
	eventPublisher := newEventPublisher(cfg, log)
	submissionService := returnsapp.NewSubmissionService(returnRepo, cachedOrderFacts, cachedPolicies, dedup, log)
	submissionService.SetDedupWindow(cfg.Submission.DedupWindow)
	submissionService.SetEventPublisher(eventPublisher)
	lifecycleService := returnsapp.NewLifecycleService(returnRepo, log)
	lifecycleService.SetEventPublisher(eventPublisher)
	evidenceService := returnsapp.NewEvidenceService(objectStorage, log)
	evidenceService.SetUploadExpiry(cfg.Submission.EvidenceUploadTTL)

	jwtService := auth.NewJWTService(cfg.JWT)

	// HTTP handlers
	returnHandler := handler.NewReturnRequestHandler(submissionService, lifecycleService)
	if cfg.HTTP.SubmitRateLimitEnabled {
		submitLimiter := middleware.NewRateLimiter(cfg.HTTP.SubmitRateLimitRequests, cfg.HTTP.SubmitRateLimitWindow)
		returnHandler.SetSubmitLimiter(submitLimiter)
		log.Info("Submission rate limiting enabled",
			zap.Int("requests", cfg.HTTP.SubmitRateLimitRequests),
			zap.Duration("window", cfg.HTTP.SubmitRateLimitWindow))
	}
	evidenceHandler := handler.NewEvidenceHandler(evidenceService)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow))
	}

	engine.GET("/health", healthHandler(db))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		JWTService: jwtService,
		SkipPaths:  []string{"/api/v1/ping"},
	}))
	r.Use(middleware.TenantMiddlewareWithConfig(middleware.TenantMiddlewareConfig{
		HeaderEnabled: cfg.App.Env != "production",
		SkipPaths:     []string{"/api/v1/ping"},
	}))

	returnRoutes := router.NewDomainGroup("returns", "/returns")
	returnRoutes.POST("", returnHandler.Submit)
	returnRoutes.GET("", returnHandler.List)
	returnRoutes.GET("/stats/status-counts", returnHandler.StatusCounts)
	returnRoutes.POST("/evidence-uploads", evidenceHandler.CreateUploadSlot)
	returnRoutes.GET("/:id", returnHandler.GetByID)
	returnRoutes.POST("/:id/transition", returnHandler.Transition)
	returnRoutes.POST("/:id/override", returnHandler.Override)
	returnRoutes.POST("/:id/comments", returnHandler.Comment)
	r.Register(returnRoutes)

	r.Setup()

	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// newDedupStore prefers Redis so duplicate detection holds across replicas;
// without a reachable Redis it degrades to a process-local store.
func newDedupStore(cfg *config.Config, log *zap.Logger) shared.DedupStore {
	if cfg.Redis.Host != "" {
		store, err := cache.NewRedisDedupStore(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err == nil {
			log.Info("Using Redis dedup store",
				zap.String("host", cfg.Redis.Host), zap.Int("port", cfg.Redis.Port))
			return store
		}
		log.Warn("Redis unavailable, falling back to in-memory dedup store", zap.Error(err))
	}
	return cache.NewInMemoryDedupStore()
}

// newEventPublisher prefers Redis pub/sub so integrations can consume the
// event stream; without a reachable Redis events go to the structured log.
func newEventPublisher(cfg *config.Config, log *zap.Logger) shared.EventPublisher {
	if cfg.Redis.Host != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn("Redis unavailable, falling back to logging event publisher", zap.Error(err))
			_ = client.Close()
			return events.NewLoggingPublisher(log)
		}
		log.Info("Using Redis event publisher",
			zap.String("host", cfg.Redis.Host), zap.Int("port", cfg.Redis.Port))
		return events.NewRedisPublisher(client, log)
	}
	return events.NewLoggingPublisher(log)
}

func newOrderFactsProvider(cfg *config.Config, log *zap.Logger) returns.OrderFactsProvider {
	if cfg.Orders.Provider == "http" {
		provider, err := orderfacts.NewHTTPProvider(&cfg.Orders)
		if err != nil {
			log.Fatal("Failed to configure order facts provider", zap.Error(err))
		}
		log.Info("Using HTTP order facts provider", zap.String("base_url", cfg.Orders.BaseURL))
		return provider
	}
	log.Info("Using static order facts provider with demo fixtures")
	return orderfacts.NewStaticProviderWithFixtures()
}

func newObjectStorage(cfg *config.Config, log *zap.Logger) returnsapp.ObjectStorageService {
	if cfg.Storage.Provider == "s3" {
		s3Storage, err := storage.NewS3ObjectStorage(&cfg.Storage,
			storage.WithLogger(log),
			storage.WithPresignExpiration(cfg.Submission.EvidenceUploadTTL))
		if err != nil {
			log.Fatal("Failed to configure object storage", zap.Error(err))
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s3Storage.EnsureBucket(ctx); err != nil {
			log.Fatal("Failed to ensure storage bucket", zap.Error(err))
		}
		log.Info("Using S3 object storage", zap.String("bucket", cfg.Storage.Bucket))
		return s3Storage
	}
	log.Info("Using stub object storage")
	return storage.NewStubObjectStorage()
}

// seedDemoPolicy installs a default return policy for the demo tenant when
// none is active yet
func seedDemoPolicy(store *persistence.GormPolicyStore, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := store.ActivePolicy(ctx, demoTenantID); err == nil {
		return
	} else if !errors.Is(err, shared.ErrNotFound) {
		log.Warn("Failed to check demo policy", zap.Error(err))
		return
	}

	ceiling := decimal.NewFromInt(100)
	snapshot := returns.PolicySnapshot{
		Currency:                valueobject.Currency("USD"),
		AutoApprovalCeiling:     &ceiling,
		StoreCreditBonusPercent: decimal.NewFromInt(10),
		ReturnWindowDays:        30,
		EvidenceReasons:         []returns.ReasonCode{returns.ReasonDamagedDefective},
		Rules: []returns.PolicyRule{
			{
				ID:          "final-sale-block",
				Priority:    1,
				ProductTags: []string{"final-sale"},
				Effect:      returns.RuleEffect{Block: true},
			},
			{
				ID:       "changed-mind-fee",
				Priority: 10,
				Reasons:  []returns.ReasonCode{returns.ReasonChangedMind, returns.ReasonNoLongerNeeded},
				Effect:   returns.RuleEffect{FeeFlat: decimal.NewFromInt(5)},
			},
		},
	}

	if err := store.Upsert(ctx, demoTenantID, snapshot); err != nil {
		log.Warn("Failed to seed demo policy", zap.Error(err))
		return
	}
	log.Info("Seeded demo return policy", zap.String("tenant_id", demoTenantID.String()))
}

func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			logger.GetGinLogger(c).Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		body := gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		}
		if stats, err := db.Stats(); err == nil {
			body["pool"] = gin.H{
				"open":   stats.OpenConnections,
				"in_use": stats.InUse,
				"idle":   stats.Idle,
			}
		}
		c.JSON(http.StatusOK, body)
	}
}
