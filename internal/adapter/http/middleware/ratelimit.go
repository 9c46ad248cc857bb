package middleware

import (
	"fmt"
	"strconv"
	"time"

	redisStore "ergoveritas/internal/adapter/storage/redis"
	"ergoveritas/pkg/apperror"
	"ergoveritas/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Rate limit groups.
const (
	GroupReceiptsPost    = "receipts_post"
	GroupAnchorQueuePost = "anchor_queue_post"
	GroupAnchorBuildPost = "anchor_build_post"
	GroupDisputesPost    = "disputes_post"
	GroupAdminLogin      = "admin_login"
	GroupAdmin           = "admin"
)

// RateLimitRule defines a rate limit for an endpoint group.
type RateLimitRule struct {
	Limit  int64
	Window time.Duration
}

// DefaultRateLimitRules returns 30 requests per minute for every write group.
func DefaultRateLimitRules() map[string]RateLimitRule {
	return RateLimitRules(30, time.Minute)
}

// RateLimitRules applies one limit and window to every endpoint group.
func RateLimitRules(limit int64, window time.Duration) map[string]RateLimitRule {
	rule := RateLimitRule{Limit: limit, Window: window}
	return map[string]RateLimitRule{
		GroupReceiptsPost:    rule,
		GroupAnchorQueuePost: rule,
		GroupAnchorBuildPost: rule,
		GroupDisputesPost:    rule,
		GroupAdminLogin:      rule,
		GroupAdmin:           rule,
	}
}

// RateLimiter creates a rate-limiting middleware for a given endpoint group.
func RateLimiter(store *redisStore.RateLimitStore, group string, rule RateLimitRule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("%s:%s", group, extractIdentifier(c))

		result, err := store.Allow(c.Request.Context(), key, rule.Limit, rule.Window)
		if err != nil {
			log.Warn().Err(err).Str("group", group).Msg("rate limit check failed, allowing request (degraded mode)")
			c.Next()
			return
		}

		// Always set rate limit headers
		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			retryAfter := result.ResetAt - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			response.Error(c, apperror.ErrRateLimitExceeded())
			c.Abort()
			return
		}

		c.Next()
	}
}

// extractIdentifier keys limits on the client address. Forwarded headers
// are honoured only for proxies trusted by the engine.
func extractIdentifier(c *gin.Context) string {
	return c.ClientIP()
}
