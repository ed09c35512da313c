package integrations

import (
	"leadcrm_backend/internal/events"
	apphttp "leadcrm_backend/internal/http"
	"leadcrm_backend/platform/httpkit"
	"leadcrm_backend/platform/logger"
	"leadcrm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module owns integration records and inbound API keys. The token lifecycle
// manager builds on this package's repository but lives in the token
// subpackage; the composition root wires the two together.
type Module struct {
	repo    *Repository
	handler *Handler
}

func NewModule(pool *pgxpool.Pool, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	return &Module{
		repo:    repo,
		handler: NewHandler(repo, bus, val, log),
	}
}

func (m *Module) Name() string { return "integrations" }

// Repository exposes the integration store for cross-module wiring.
func (m *Module) Repository() *Repository { return m.repo }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	admin := ctx.Protected.Group("/integrations")
	admin.Use(httpkit.RequireRole("admin"))
	m.handler.RegisterRoutes(admin)
}
