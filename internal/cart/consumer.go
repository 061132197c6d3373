package cart

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fjod/cybershop/internal/domain"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

// OrderConsumer empties the buyer's cart when an order.placed event arrives.
// Checkout already clears the cart inline; this catches the cases where that
// failed.
type OrderConsumer struct {
	svc    *Service
	reader MessageReader
	logger *zap.Logger
}

func NewOrderConsumer(svc *Service, reader MessageReader, logger *zap.Logger) *OrderConsumer {
	return &OrderConsumer{svc: svc, reader: reader, logger: logger}
}

// Run consumes until ctx is cancelled.
func (c *OrderConsumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.consumeOne(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("error reading order event", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}
}

func (c *OrderConsumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Warn("error closing reader", zap.Error(err))
	}
}

func (c *OrderConsumer) consumeOne(ctx context.Context) error {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return err
	}
	if eventType(m) != domain.EventOrderPlaced {
		return nil
	}

	var payload struct {
		UserID int64 `json:"user_id"`
	}
	if err := json.Unmarshal(m.Value, &payload); err != nil {
		c.logger.Warn("error parsing order event", zap.String("key", string(m.Key)), zap.Error(err))
		return nil
	}
	if payload.UserID == 0 {
		c.logger.Warn("order event without user_id", zap.String("key", string(m.Key)))
		return nil
	}

	if err := c.svc.ClearCart(ctx, UserOwner(payload.UserID)); err != nil {
		c.logger.Error("failed to clear cart", zap.Int64("user_id", payload.UserID), zap.Error(err))
	}
	return nil
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
