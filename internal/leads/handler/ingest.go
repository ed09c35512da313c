package handler

import (
	"io"
	"net/http"

	"leadcrm_backend/internal/integrations"
	"leadcrm_backend/internal/leads/domain"
	"leadcrm_backend/internal/leads/ingest"
	"leadcrm_backend/internal/sources"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxIngestBody caps webhook payloads. Lead payloads are small; anything
// bigger is not a lead.
const maxIngestBody = 1 << 20

// IngestHandler serves the public webhook endpoints. Authentication differs
// per channel: meta uses the verify-token handshake, webhook and forms use
// per-integration API keys resolved by middleware.
type IngestHandler struct {
	coordinator *ingest.Coordinator
	meta        config.MetaConfig
}

func NewIngestHandler(coordinator *ingest.Coordinator, meta config.MetaConfig) *IngestHandler {
	return &IngestHandler{coordinator: coordinator, meta: meta}
}

// RegisterRoutes mounts the ingest endpoints. keyAuth guards the channels
// that authenticate with per-integration API keys.
func (h *IngestHandler) RegisterRoutes(rg *gin.RouterGroup, keyAuth gin.HandlerFunc) {
	rg.GET("/meta", h.VerifyMeta)
	rg.POST("/meta", h.ingestFrom(domain.SourceMeta))
	rg.POST("/google", h.ingestFrom(domain.SourceGoogle))
	rg.POST("/webhook", keyAuth, h.ingestFrom(domain.SourceWebhook))
	rg.POST("/forms", keyAuth, h.ingestFrom(domain.SourceWebsite))
}

// VerifyMeta answers Meta's subscription handshake.
func (h *IngestHandler) VerifyMeta(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "subscribe" || token == "" || token != h.meta.GetMetaVerifyToken() {
		c.Status(http.StatusForbidden)
		return
	}
	c.String(http.StatusOK, challenge)
}

func (h *IngestHandler) ingestFrom(source domain.Source) gin.HandlerFunc {
	return func(c *gin.Context) {
		payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIngestBody))
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "unreadable body", nil)
			return
		}

		sc := sources.SourceContext{CampaignID: c.Query("campaign_id")}
		if raw, ok := c.Get(integrations.ContextIntegrationIDKey); ok {
			if id, ok := raw.(uuid.UUID); ok {
				sc.IntegrationID = &id
			}
		}

		result := h.coordinator.Ingest(c.Request.Context(), source, payload, sc)
		if !result.Success {
			httpkit.HandleError(c, result.Err)
			return
		}

		status := http.StatusOK
		if result.Created {
			status = http.StatusCreated
		}
		httpkit.JSON(c, status, result)
	}
}
