package integrations

import (
	"net/http"
	"time"

	"leadcrm_backend/internal/events"
	"leadcrm_backend/platform/httpkit"
	"leadcrm_backend/platform/logger"
	"leadcrm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	repo *Repository
	bus  events.Bus
	val  *validator.Validator
	log  *logger.Logger
}

func NewHandler(repo *Repository, bus events.Bus, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{repo: repo, bus: bus, val: val, log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.POST("/:id/reconnect", h.Reconnect)
	rg.POST("/:id/deactivate", h.Deactivate)
	rg.POST("/reconcile", h.Reconcile)
}

func (h *Handler) List(c *gin.Context) {
	items, err := h.repo.ListAll(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"integrations": items})
}

type createIntegrationRequest struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Provider    string `json:"provider" validate:"required,oneof=meta google webhook website"`
	PageID      string `json:"pageId,omitempty" validate:"omitempty,max=100"`
	AccountID   string `json:"accountId,omitempty" validate:"omitempty,max=100"`
	AccessToken string `json:"accessToken,omitempty"`
	TokenClass  string `json:"tokenClass,omitempty" validate:"omitempty,oneof=long_lived short_lived"`
	ExpiresAt   string `json:"expiresAt,omitempty"`
}

// Create registers a new inbound channel. Webhook and website channels get an
// inbound API key; its plaintext appears in this response and never again.
func (h *Handler) Create(c *gin.Context) {
	var req createIntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	integration := Integration{
		Name:      req.Name,
		Provider:  Provider(req.Provider),
		Status:    StatusDisconnected,
		PageID:    req.PageID,
		AccountID: req.AccountID,
	}

	var plaintextKey string
	switch integration.Provider {
	case ProviderWebhook, ProviderWebsite:
		key, hash, prefix, err := GenerateAPIKey()
		if err != nil {
			httpkit.HandleError(c, err)
			return
		}
		plaintextKey = key
		integration.APIKeyHash = hash
		integration.APIKeyPrefix = prefix
		integration.Status = StatusConnected
	default:
		if req.AccessToken != "" {
			integration.AccessToken = req.AccessToken
			integration.Status = StatusConnected
			integration.TokenClass = TokenClass(req.TokenClass)
			if integration.TokenClass == "" {
				integration.TokenClass = TokenClassLongLived
			}
			if expiry, err := time.Parse(time.RFC3339, req.ExpiresAt); err == nil {
				integration.TokenExpiry = &expiry
			}
		}
	}

	created, err := h.repo.Create(c.Request.Context(), integration)
	if httpkit.HandleError(c, err) {
		return
	}

	response := gin.H{"integration": created}
	if plaintextKey != "" {
		response["apiKey"] = plaintextKey
	}
	httpkit.JSON(c, http.StatusCreated, response)
}

type reconnectRequest struct {
	AccessToken  string `json:"accessToken" validate:"required"`
	RefreshToken string `json:"refreshToken,omitempty"`
	TokenClass   string `json:"tokenClass,omitempty" validate:"omitempty,oneof=long_lived short_lived"`
	ExpiresAt    string `json:"expiresAt,omitempty"`
}

// Reconnect replaces an integration's credentials after an operator
// re-authorized the channel on the platform side.
func (h *Handler) Reconnect(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid integration id", nil)
		return
	}

	var req reconnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	integration, err := h.repo.GetByID(c.Request.Context(), id)
	if err == ErrNotFound {
		httpkit.Error(c, http.StatusNotFound, "integration not found", nil)
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}

	var expiry *time.Time
	if parsed, err := time.Parse(time.RFC3339, req.ExpiresAt); err == nil {
		expiry = &parsed
	}

	err = h.repo.UpdateCredentials(c.Request.Context(), id,
		req.AccessToken, req.RefreshToken, expiry, StatusConnected)
	if httpkit.HandleError(c, err) {
		return
	}

	h.bus.Publish(c.Request.Context(), events.IntegrationStatusChanged{
		BaseEvent:     events.NewBaseEvent(),
		IntegrationID: id,
		Provider:      string(integration.Provider),
		OldStatus:     string(integration.Status),
		NewStatus:     string(StatusConnected),
	})

	httpkit.OK(c, gin.H{"status": StatusConnected})
}

// Deactivate turns an integration off without deleting its history.
func (h *Handler) Deactivate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid integration id", nil)
		return
	}

	integration, err := h.repo.GetByID(c.Request.Context(), id)
	if err == ErrNotFound {
		httpkit.Error(c, http.StatusNotFound, "integration not found", nil)
		return
	}
	if httpkit.HandleError(c, err) {
		return
	}

	if err := h.repo.UpdateStatus(c.Request.Context(), id, StatusInactive); httpkit.HandleError(c, err) {
		return
	}

	h.bus.Publish(c.Request.Context(), events.IntegrationStatusChanged{
		BaseEvent:     events.NewBaseEvent(),
		IntegrationID: id,
		Provider:      string(integration.Provider),
		OldStatus:     string(integration.Status),
		NewStatus:     string(StatusInactive),
	})

	httpkit.OK(c, gin.H{"status": StatusInactive})
}

// Reconcile recomputes the denormalized leads counters on demand.
func (h *Handler) Reconcile(c *gin.Context) {
	if err := h.repo.ReconcileLeadsCount(c.Request.Context()); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"reconciled": true})
}
