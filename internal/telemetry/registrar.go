// Package telemetry turns clicks into hits and ships them in batches.
package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"

	"edge-gateway/internal/batching"
	"edge-gateway/internal/common/logging"
	"edge-gateway/internal/models"
)

// Registrar completes hits with identity and session data and queues them.
type Registrar struct {
	queue    *batching.Queue[models.Hit]
	sessions *SessionTracker
	logger   logging.Logger
}

// NewRegistrar ships hits to sink through a batching queue.
func NewRegistrar(cfg batching.Config, sink batching.Processor[models.Hit], sessions *SessionTracker, logger logging.Logger) (*Registrar, error) {
	if logger == nil {
		logger = logging.Component("telemetry")
	}
	queue, err := batching.New[models.Hit](cfg, sink, logger)
	if err != nil {
		return nil, err
	}
	return &Registrar{queue: queue, sessions: sessions, logger: logger}, nil
}

// Register stamps the hit and enqueues it, blocking while the queue is full.
func (r *Registrar) Register(ctx context.Context, hit models.Hit) error {
	if hit.ID == "" {
		hit.ID = uuid.NewString()
	}
	if hit.CreatedAt.IsZero() {
		hit.CreatedAt = time.Now().UTC()
	}
	if r.sessions != nil {
		s := r.sessions.Touch(hit.IP, hit.RouteID)
		hit.SessionFirstSeen = s.FirstSeen
		hit.SessionClicks = s.Clicks
		hit.IsUnique = s.Clicks == 1
	}
	return r.queue.Enqueue(ctx, hit)
}

// Stats reports queue counters.
func (r *Registrar) Stats() batching.Stats {
	return r.queue.Stats()
}

// Close flushes queued hits and waits for in-flight batches.
func (r *Registrar) Close(ctx context.Context) error {
	err := r.queue.Close(ctx)
	if r.sessions != nil {
		r.sessions.Close()
	}
	return err
}
