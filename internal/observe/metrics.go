// Package observe aggregates ingestion counters for the operations dashboard.
// Everything is in memory; counters reset with the process.
package observe

import (
	"net/http"
	"sync"
	"time"

	apphttp "leadcrm_backend/internal/http"
	"leadcrm_backend/internal/leads/domain"

	"github.com/gin-gonic/gin"
)

// SourceSnapshot is the per-channel slice of a metrics snapshot.
type SourceSnapshot struct {
	Ingested     int64   `json:"ingested"`
	Created      int64   `json:"created"`
	Refreshed    int64   `json:"refreshed"`
	Failed       int64   `json:"failed"`
	AvgLatencyMS float64 `json:"avgLatencyMs"`
	MaxLatencyMS int64   `json:"maxLatencyMs"`
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Ingested     int64                     `json:"ingested"`
	Created      int64                     `json:"created"`
	Refreshed    int64                     `json:"refreshed"`
	Failed       int64                     `json:"failed"`
	AvgLatencyMS float64                   `json:"avgLatencyMs"`
	MaxLatencyMS int64                     `json:"maxLatencyMs"`
	Sources      map[string]SourceSnapshot `json:"sources"`
	StartedAt    time.Time                 `json:"startedAt"`
}

type sourceStats struct {
	ingested  int64
	created   int64
	refreshed int64
	failed    int64
	avgMs     float64
	maxMs     int64
}

// record folds one latency sample into the running average without keeping
// the samples themselves.
func (s *sourceStats) record(created bool, latencyMs int64) {
	s.ingested++
	if created {
		s.created++
	} else {
		s.refreshed++
	}
	s.avgMs += (float64(latencyMs) - s.avgMs) / float64(s.ingested)
	if latencyMs > s.maxMs {
		s.maxMs = latencyMs
	}
}

// Metrics aggregates per-source and global ingest measurements.
type Metrics struct {
	mu        sync.Mutex
	sources   map[domain.Source]*sourceStats
	total     sourceStats
	startedAt time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{
		sources:   make(map[domain.Source]*sourceStats),
		startedAt: time.Now(),
	}
}

func (m *Metrics) forSource(source domain.Source) *sourceStats {
	stats, ok := m.sources[source]
	if !ok {
		stats = &sourceStats{}
		m.sources[source] = stats
	}
	return stats
}

// RecordIngest registers one successful ingest.
func (m *Metrics) RecordIngest(source domain.Source, created bool, latency time.Duration) {
	ms := latency.Milliseconds()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forSource(source).record(created, ms)
	m.total.record(created, ms)
}

// RecordFailure registers one failed ingest.
func (m *Metrics) RecordFailure(source domain.Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forSource(source).failed++
	m.total.failed++
}

// Snapshot returns a copy of every counter.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Ingested:     m.total.ingested,
		Created:      m.total.created,
		Refreshed:    m.total.refreshed,
		Failed:       m.total.failed,
		AvgLatencyMS: m.total.avgMs,
		MaxLatencyMS: m.total.maxMs,
		Sources:      make(map[string]SourceSnapshot, len(m.sources)),
		StartedAt:    m.startedAt,
	}
	for source, stats := range m.sources {
		snap.Sources[string(source)] = SourceSnapshot{
			Ingested:     stats.ingested,
			Created:      stats.created,
			Refreshed:    stats.refreshed,
			Failed:       stats.failed,
			AvgLatencyMS: stats.avgMs,
			MaxLatencyMS: stats.maxMs,
		}
	}
	return snap
}

// Module exposes the metrics snapshot endpoint.
type Module struct {
	metrics *Metrics
}

func NewModule(metrics *Metrics) *Module {
	return &Module{metrics: metrics}
}

func (m *Module) Name() string { return "observe" }

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.GET("/metrics/ingest", func(c *gin.Context) {
		c.JSON(http.StatusOK, m.metrics.Snapshot())
	})
}
