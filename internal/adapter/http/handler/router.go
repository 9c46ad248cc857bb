package handler

import (
	"ergoveritas/internal/adapter/http/middleware"
	redisStore "ergoveritas/internal/adapter/storage/redis"
	"ergoveritas/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	ReceiptSvc     ports.ReceiptService
	BatchSvc       ports.BatchService
	VerifySvc      ports.VerifyService
	DisputeSvc     ports.DisputeService
	AdminSvc       ports.AdminService
	Signer         ports.Signer
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	RateLimits     map[string]middleware.RateLimitRule
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	TrustedProxies []string
	MaxBodyBytes   int64
	APISpec        []byte // served at /swagger/spec
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	if err := r.SetTrustedProxies(deps.TrustedProxies); err != nil {
		deps.Logger.Warn().Err(err).Msg("invalid trusted proxies, forwarded headers ignored")
		_ = r.SetTrustedProxies(nil)
	}

	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20 // 1 MB request body limit
	}

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBody))

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	// Health check (pings PostgreSQL and Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Swagger documentation
	docs := NewDocsHandler(deps.APISpec)
	r.GET("/swagger", docs.UI)
	r.GET("/swagger/spec", docs.Spec)

	rules := deps.RateLimits
	if rules == nil {
		rules = middleware.DefaultRateLimitRules()
	}

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	receiptHandler := NewReceiptHandler(deps.ReceiptSvc, deps.BatchSvc)
	anchorHandler := NewAnchorHandler(deps.ReceiptSvc, deps.BatchSvc)
	batchHandler := NewBatchHandler(deps.BatchSvc)
	verifyHandler := NewVerifyHandler(deps.VerifySvc, deps.Signer)
	disputeHandler := NewDisputeHandler(deps.DisputeSvc)
	adminHandler := NewAdminHandler(deps.AdminSvc, deps.DisputeSvc)

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	receipts := v1.Group("/receipts")
	{
		receipts.POST("", rl(middleware.GroupReceiptsPost), receiptHandler.Create)
		receipts.GET("/:id", receiptHandler.Get)
		receipts.GET("/:id/proof", receiptHandler.Proof)
	}

	v1.GET("/verify", verifyHandler.ByHash)
	v1.GET("/public-key", verifyHandler.PublicKey)
	v1.GET("/batches/:id", batchHandler.Get)
	v1.POST("/disputes", rl(middleware.GroupDisputesPost), disputeHandler.Create)

	anchor := v1.Group("/anchor")
	{
		anchor.POST("/queue", rl(middleware.GroupAnchorQueuePost), anchorHandler.Queue)
		anchor.POST("/build", rl(middleware.GroupAnchorBuildPost), jwtAuth, anchorHandler.Build)
	}

	// --- Operator routes (JWT) ---
	v1.POST("/admin/login", rl(middleware.GroupAdminLogin), adminHandler.Login)
	admin := v1.Group("/admin", rl(middleware.GroupAdmin), jwtAuth)
	{
		admin.GET("/receipts", adminHandler.ListReceipts)
		admin.GET("/batches", adminHandler.ListBatches)
		admin.GET("/disputes", adminHandler.ListDisputes)
		admin.PATCH("/disputes/:id", adminHandler.UpdateDispute)
	}

	return r
}
