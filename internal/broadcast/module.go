package broadcast

import (
	apphttp "leadcrm_backend/internal/http"
)

// Module exposes the event stream endpoint.
type Module struct {
	hub *Hub
}

func NewModule(hub *Hub) *Module {
	return &Module{hub: hub}
}

func (m *Module) Name() string { return "broadcast" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/events/stream", m.hub.StreamHandler())
}
