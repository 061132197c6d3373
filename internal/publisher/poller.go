package publisher

import (
	"context"
	"time"

	"github.com/fjod/cybershop/internal/domain"
	"go.uber.org/zap"
)

type EventStore interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
	DeleteProcessedEvents(ctx context.Context, before time.Time) (int64, error)
}

type Options struct {
	PollInterval    time.Duration
	CleanupInterval time.Duration
	Retention       time.Duration
	BatchSize       int
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.CleanupInterval <= 0 {
		o.CleanupInterval = time.Hour
	}
	if o.Retention <= 0 {
		o.Retention = 7 * 24 * time.Hour
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	return o
}

type OutboxPoller struct {
	opts      Options
	store     EventStore
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewOutboxPoller(store EventStore, publisher Publisher, opts Options, logger *zap.Logger) *OutboxPoller {
	return &OutboxPoller{
		opts:      opts.withDefaults(),
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Run polls until ctx is cancelled.
func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.opts.PollInterval)
	cleanupTicker := time.NewTicker(p.opts.CleanupInterval)
	defer eventTicker.Stop()
	defer cleanupTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-cleanupTicker.C:
			p.deleteProcessedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// processUnpublishedEvents publishes one batch and returns how many events
// were marked processed. The batch stops at the first publish failure so a
// later event never overtakes an earlier one.
func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) int {
	events, err := p.store.GetUnprocessedEvents(ctx, p.opts.BatchSize)
	if err != nil {
		p.logger.Error("failed to fetch outbox events", zap.Error(err))
		return 0
	}

	published := 0
	for _, event := range events {
		if err := p.publisher.Publish(ctx, event); err != nil {
			p.logger.Warn("failed to publish event",
				zap.Int64("event_id", event.ID),
				zap.String("event_type", event.EventType),
				zap.Error(err),
			)
			return published
		}
		// a failed mark means the event is published again on the next tick
		if err := p.store.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.logger.Error("failed to mark event as processed", zap.Int64("event_id", event.ID), zap.Error(err))
			continue
		}
		published++
	}
	if published > 0 {
		p.logger.Debug("published outbox events", zap.Int("count", published))
	}
	return published
}

func (p *OutboxPoller) deleteProcessedEvents(ctx context.Context) {
	n, err := p.store.DeleteProcessedEvents(ctx, p.now().Add(-p.opts.Retention))
	if err != nil {
		p.logger.Error("failed to delete processed events", zap.Error(err))
		return
	}
	if n > 0 {
		p.logger.Info("deleted processed outbox events", zap.Int64("count", n))
	}
}
