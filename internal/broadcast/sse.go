package broadcast

import (
	"encoding/json"
	"net/http"
	"time"

	"leadcrm_backend/internal/leads/domain"
	"leadcrm_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// heartbeatInterval keeps intermediaries from closing an idle stream.
const heartbeatInterval = 30 * time.Second

// operatorFromContext reconstructs the operator from the claims the auth
// middleware stored on the request context.
func operatorFromContext(c *gin.Context) (domain.Operator, bool) {
	rawID := c.GetString(httpkit.ContextUserIDKey)
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return domain.Operator{}, false
	}

	op := domain.Operator{
		UserID:  userID,
		Role:    domain.ParseRole(c.GetString(httpkit.ContextRoleKey)),
		Country: domain.NormalizeCountry(c.GetString(httpkit.ContextCountryKey)),
	}
	if teamID, err := uuid.Parse(c.GetString(httpkit.ContextTeamIDKey)); err == nil {
		op.TeamID = &teamID
	}
	return op, true
}

// StreamHandler serves the SSE endpoint.
func (h *Hub) StreamHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		op, ok := operatorFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		sub, err := h.Subscribe(op)
		if err != nil {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "reconnecting too fast"})
			return
		}
		defer sub.Close()

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")
		c.Writer.Header().Set("X-Accel-Buffering", "no")

		c.SSEvent("connected", gin.H{"subscriptionId": sub.ID})
		c.Writer.Flush()

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		clientGone := c.Request.Context().Done()
		for {
			select {
			case <-clientGone:
				return
			case <-heartbeat.C:
				c.SSEvent("heartbeat", time.Now().Unix())
				c.Writer.Flush()
			case msg := <-sub.Events():
				data, err := json.Marshal(msg.Data)
				if err != nil {
					h.log.Warn("broadcast frame not serializable", "event", msg.Event, "error", err)
					continue
				}
				c.SSEvent(msg.Event, string(data))
				c.Writer.Flush()
			}
		}
	}
}
