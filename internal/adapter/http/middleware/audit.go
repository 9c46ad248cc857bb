package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"ergoveritas/internal/core/domain"
	"ergoveritas/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditLog creates an audit middleware that logs successful admin writes.
// Routes are matched on their registered pattern, not the raw path.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Only audit successful write operations (status 2xx)
		if c.Writer.Status() < 200 || c.Writer.Status() >= 300 {
			return
		}
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead || c.Request.Method == http.MethodOptions {
			return
		}

		action, resourceType := mapPathToAction(c.FullPath(), c.Request.Method)
		if action == "" {
			return
		}

		actor := c.GetString(CtxActor)
		if action == domain.AuditActionAdminLogin && actor == "" {
			actor = RoleAdmin
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"request_id": c.GetString(CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			Actor:        actor,
			Action:       action,
			ResourceType: resourceType,
			ResourceID:   c.Param("id"),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now(),
		})
	}
}

func mapPathToAction(path, method string) (domain.AuditAction, string) {
	switch {
	case path == "/api/v1/admin/login" && method == http.MethodPost:
		return domain.AuditActionAdminLogin, "session"
	case path == "/api/v1/anchor/build" && method == http.MethodPost:
		return domain.AuditActionBuildBatch, "batch"
	case path == "/api/v1/admin/disputes/:id" && method == http.MethodPatch:
		return domain.AuditActionUpdateDispute, "dispute"
	}
	return "", ""
}
