package integrations

import (
	"errors"
	"net/http"

	"leadcrm_backend/platform/httpkit"
	"leadcrm_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

const (
	// APIKeyHeader carries the per-integration inbound key.
	APIKeyHeader = "X-Integration-API-Key"
	// ContextIntegrationIDKey is the gin context key the middleware stores
	// the resolved integration id under, as a uuid.UUID.
	ContextIntegrationIDKey = "integrationID"
)

// APIKeyAuth authenticates webhook and website form posts against the
// integration's hashed inbound key. Inactive integrations are rejected the
// same way as unknown keys.
func APIKeyAuth(repo *Repository, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(APIKeyHeader)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpkit.ErrorResponse{Error: "missing api key"})
			return
		}

		integration, err := repo.GetByAPIKeyHash(c.Request.Context(), HashKey(key))
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				log.DatabaseError("integration_key_lookup", err)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpkit.ErrorResponse{Error: "invalid api key"})
			return
		}
		if integration.Status == StatusInactive {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpkit.ErrorResponse{Error: "integration disabled"})
			return
		}

		c.Set(ContextIntegrationIDKey, integration.ID)
		c.Next()
	}
}
