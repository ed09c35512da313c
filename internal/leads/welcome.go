package leads

import (
	"context"
	"time"

	"leadcrm_backend/internal/leads/domain"
	"leadcrm_backend/internal/messaging"
	"leadcrm_backend/internal/scheduler"
	"leadcrm_backend/platform/logger"
)

// welcomeQueue hands welcome messages to the background queue so ingestion
// never waits on WhatsApp or SMTP. When the queue is unavailable it sends
// directly as a degraded fallback.
type welcomeQueue struct {
	queue      *scheduler.Client
	dispatcher *messaging.Dispatcher
	log        *logger.Logger
}

func newWelcomeQueue(queue *scheduler.Client, dispatcher *messaging.Dispatcher, log *logger.Logger) *welcomeQueue {
	return &welcomeQueue{queue: queue, dispatcher: dispatcher, log: log}
}

func (w *welcomeQueue) SendWelcome(ctx context.Context, lead domain.Lead) error {
	err := w.queue.EnqueueWelcomeMessage(ctx, scheduler.WelcomeMessagePayload{
		LeadID: lead.ID.String(),
	})
	if err == nil {
		return nil
	}

	w.log.Warn("welcome enqueue failed, sending directly", "lead_id", lead.ID, "error", err)

	// The direct send talks to WhatsApp or SMTP; keep it off the ingest path.
	go func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := w.dispatcher.SendWelcome(sendCtx, lead); err != nil {
			w.log.Warn("direct welcome send failed", "lead_id", lead.ID, "error", err)
		}
	}()
	return nil
}
