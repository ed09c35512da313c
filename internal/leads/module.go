// Package leads owns the lead ingestion pipeline: source adapters, identity
// resolution, persistence and the operator-facing CRUD surface.
package leads

import (
	"leadcrm_backend/internal/archive"
	"leadcrm_backend/internal/events"
	apphttp "leadcrm_backend/internal/http"
	"leadcrm_backend/internal/integrations"
	"leadcrm_backend/internal/leads/dedup"
	"leadcrm_backend/internal/leads/handler"
	"leadcrm_backend/internal/leads/ingest"
	"leadcrm_backend/internal/leads/repository"
	"leadcrm_backend/internal/leads/service"
	"leadcrm_backend/internal/messaging"
	"leadcrm_backend/internal/observe"
	"leadcrm_backend/internal/scheduler"
	"leadcrm_backend/internal/sources"
	"leadcrm_backend/platform/config"
	"leadcrm_backend/platform/logger"
	"leadcrm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ModuleConfig is the slice of application config the leads module needs.
type ModuleConfig interface {
	config.MetaConfig
	config.UpstreamConfig
	config.SchedulerConfig
	config.WhatsAppConfig
	config.EmailConfig
	config.ArchiveConfig
}

// Module wires the ingestion pipeline and registers its HTTP surface.
type Module struct {
	repo          *repository.Repository
	coordinator   *ingest.Coordinator
	service       *service.Service
	handler       *handler.Handler
	ingestHandler *handler.IngestHandler
	keyAuth       gin.HandlerFunc
	queue         *scheduler.Client
	failures      *archive.Store
}

func NewModule(
	pool *pgxpool.Pool,
	bus events.Bus,
	directory *integrations.Repository,
	tokens sources.TokenSource,
	metrics *observe.Metrics,
	cfg ModuleConfig,
	val *validator.Validator,
	log *logger.Logger,
) (*Module, error) {
	repo := repository.New(pool)
	resolver := dedup.NewResolver(repo)

	adapters := []sources.Adapter{
		sources.NewMetaAdapter(cfg, cfg, directory, tokens, log),
		sources.NewGoogleAdapter(),
		sources.NewWebhookAdapter(),
		sources.NewWebsiteAdapter(),
	}

	failures, err := archive.NewStore(cfg, log)
	if err != nil {
		return nil, err
	}

	dispatcher := messaging.NewDispatcher(
		messaging.NewWhatsAppClient(cfg, log),
		messaging.NewEmailSender(cfg),
		log,
	)

	queue, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Warn("background queue unavailable, welcome messages sent inline", "error", err)
		queue = nil
	}

	coordinator := ingest.NewCoordinator(
		adapters, resolver, repo, bus,
		newWelcomeQueue(queue, dispatcher, log),
		failures, metrics, log,
	)

	svc := service.New(coordinator, repo, bus, log)

	return &Module{
		repo:          repo,
		coordinator:   coordinator,
		service:       svc,
		handler:       handler.New(svc, val),
		ingestHandler: handler.NewIngestHandler(coordinator, cfg),
		keyAuth:       integrations.APIKeyAuth(directory, log),
		queue:         queue,
		failures:      failures,
	}, nil
}

func (m *Module) Name() string { return "leads" }

// Repository exposes the lead store for the background worker.
func (m *Module) Repository() *repository.Repository { return m.repo }

// FailureArchive exposes the raw-payload archive so main can ensure the
// bucket exists at startup. Nil when the archive is disabled.
func (m *Module) FailureArchive() *archive.Store { return m.failures }

// Close releases the background queue connection.
func (m *Module) Close() error {
	if m.queue == nil {
		return nil
	}
	return m.queue.Close()
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/leads"))

	ingest := ctx.V1.Group("/ingest")
	ingest.Use(ctx.IngestRateLimiter.RateLimit())
	m.ingestHandler.RegisterRoutes(ingest, m.keyAuth)
}
