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

	"ergoveritas/config"
	apidocs "ergoveritas/docs/api"
	httpHandler "ergoveritas/internal/adapter/http/handler"
	"ergoveritas/internal/adapter/http/middleware"
	pgStorage "ergoveritas/internal/adapter/storage/postgres"
	redisStorage "ergoveritas/internal/adapter/storage/redis"
	"ergoveritas/internal/core/ports"
	"ergoveritas/internal/service"
	"ergoveritas/pkg/logger"

	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, logCloser, err := logger.NewWithFile(cfg.Log.Level, cfg.Log.Pretty, cfg.Log.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting ErgoVeritas")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	if cfg.Database.AutoMigrate {
		if err := pgStorage.Migrate(ctx, pool, log); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply database migrations")
		}
	}

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	receiptRepo := pgStorage.NewReceiptRepo(pool)
	batchRepo := pgStorage.NewBatchRepo(pool)
	disputeRepo := pgStorage.NewDisputeRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	deliveryRepo := pgStorage.NewAnchorDeliveryRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	buildLock := redisStorage.NewBuildLock(rdb)
	verifyCache := redisStorage.NewVerifyCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Initialize core services. A missing signing key is reported per request, not at startup.
	signer := service.NewEd25519Signer(service.NewEd25519KeyProvider(cfg.Ed25519))
	if _, err := signer.KeyID(); err != nil {
		log.Warn().Err(err).Msg("Signing key unavailable, receipt issuance will fail")
	}
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Initialize business services
	notifier := service.NewAnchorNotifier(
		deliveryRepo,
		sigSvc,
		&http.Client{Timeout: cfg.Anchor.WebhookTimeout},
		cfg.Anchor.WebhookURL,
		cfg.Anchor.WebhookSecret,
		log,
	)
	receiptSvc := service.NewReceiptService(receiptRepo, signer, log)
	batchSvc := service.NewBatchService(
		receiptRepo,
		batchRepo,
		transactor,
		buildLock,
		notifier,
		service.BatchServiceOptions{BatchCap: cfg.Anchor.BatchCap, LockTTL: cfg.Anchor.BuildLockTTL},
		log,
	)
	verifySvc := service.NewVerifyService(receiptRepo, verifyCache, log)
	disputeSvc := service.NewDisputeService(disputeRepo, receiptRepo, encSvc, cfg.Admin.ListLimit, log)
	adminSvc := service.NewAdminService(receiptRepo, batchRepo, hashSvc, tokenSvc, cfg.Admin.PasswordHash, cfg.Admin.ListLimit, log)
	auditSvc := service.NewAuditService(auditRepo, log)

	if cfg.Admin.PasswordHash == "" {
		log.Warn().Msg("ERGOVERITAS_ADMIN_PASSWORD_HASH not set, admin login disabled")
	}

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		ReceiptSvc:     receiptSvc,
		BatchSvc:       batchSvc,
		VerifySvc:      verifySvc,
		DisputeSvc:     disputeSvc,
		AdminSvc:       adminSvc,
		Signer:         signer,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		RateLimits:     middleware.RateLimitRules(cfg.RateLimit.Limit, cfg.RateLimit.Window),
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		AuditSvc:       auditSvc,
		TrustedProxies: cfg.Server.TrustedProxies,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		APISpec:        apidocs.OpenAPI,
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
	}

	log.Info().Msg("Server exited")
}
