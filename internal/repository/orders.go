package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/cybershop/internal/domain"
	"github.com/google/uuid"
)

var ErrInvalidTransition = errors.New("illegal order status transition")

const EventOrderStatusChanged = "order.status_changed"

const orderColumns = `id, user_id, idempotency_key, subtotal, tax_amount, grand_total, currency, status, payment_id, created_at, updated_at`

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	o := &domain.Order{}
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.IdempotencyKey,
		&o.Subtotal,
		&o.TaxAmount,
		&o.GrandTotal,
		&o.Currency,
		&o.Status,
		&o.PaymentID,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	return o, err
}

// PlaceOrder stores the order, its lines and an order.placed outbox event in
// one transaction. A second order with the same (user, idempotency key)
// fails with ErrConflict.
func (s *Store) PlaceOrder(ctx context.Context, o *domain.Order) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	o.CreatedAt = now()
	o.UpdatedAt = o.CreatedAt

	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal order payload: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO orders (`+orderColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			o.ID, o.UserID, o.IdempotencyKey, o.Subtotal, o.TaxAmount, o.GrandTotal,
			o.Currency, o.Status, o.PaymentID, o.CreatedAt, o.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("order for idempotency key %q: %w", o.IdempotencyKey, ErrConflict)
			}
			return fmt.Errorf("insert order: %w", err)
		}

		for i, item := range o.Items {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO order_items (order_id, position, product_id, product_title, quantity, plan, unit_price, effective_unit_price, line_total)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				o.ID, i, item.ProductID, item.ProductTitle, item.Quantity, item.Plan,
				item.UnitPrice, item.EffectiveUnitPrice, item.LineTotal)
			if err != nil {
				return fmt.Errorf("insert order item %d: %w", i, err)
			}
		}

		return insertOutboxEvent(ctx, tx, o.ID.String(), domain.EventOrderPlaced, payload)
	})
}

func insertOutboxEvent(ctx context.Context, tx *sql.Tx, aggregateID, eventType string, payload []byte) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4)`,
		aggregateID, eventType, string(payload), now())
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (s *Store) loadItems(ctx context.Context, q querier, o *domain.Order) error {
	rows, err := q.QueryContext(ctx, `
		SELECT product_id, product_title, quantity, plan, unit_price, effective_unit_price, line_total
		FROM order_items WHERE order_id = $1 ORDER BY position`, o.ID)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	o.Items = make([]domain.OrderItem, 0)
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(
			&it.ProductID,
			&it.ProductTitle,
			&it.Quantity,
			&it.Plan,
			&it.UnitPrice,
			&it.EffectiveUnitPrice,
			&it.LineTotal,
		); err != nil {
			return fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query order by id: %w", err)
	}
	if err := s.loadItems(ctx, s.db, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 AND idempotency_key = $2", userID, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order for idempotency key %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query order by idempotency key: %w", err)
	}
	if err := s.loadItems(ctx, s.db, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Store) listOrders(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}

	orders := make([]*domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	// the sqlite pool has a single connection, release it before loading items
	rows.Close()

	for _, o := range orders {
		if err := s.loadItems(ctx, s.db, o); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// ListOrdersByUser returns the user's orders, newest first.
func (s *Store) ListOrdersByUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	return s.listOrders(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
}

// ListOrders returns every order, newest first, optionally limited to one status.
func (s *Store) ListOrders(ctx context.Context, status domain.OrderStatus) ([]*domain.Order, error) {
	if status == "" {
		return s.listOrders(ctx, "SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC")
	}
	return s.listOrders(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE status = $1 ORDER BY created_at DESC", status)
}

// UpdateOrderStatus moves an order along its lifecycle and records an
// order.status_changed outbox event.
func (s *Store) UpdateOrderStatus(ctx context.Context, id uuid.UUID, next domain.OrderStatus) (*domain.Order, error) {
	var updated *domain.Order
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		o, err := scanOrder(tx.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("order %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("query order by id: %w", err)
		}
		if !o.Status.CanTransitionTo(next) {
			return fmt.Errorf("%s -> %s: %w", o.Status, next, ErrInvalidTransition)
		}

		o.Status = next
		o.UpdatedAt = now()
		if _, err := tx.ExecContext(ctx,
			`UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`,
			o.Status, o.UpdatedAt, o.ID); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}

		payload, err := json.Marshal(map[string]any{
			"order_id":   o.ID,
			"user_id":    o.UserID,
			"status":     o.Status,
			"updated_at": o.UpdatedAt,
		})
		if err != nil {
			return fmt.Errorf("marshal status payload: %w", err)
		}
		if err := insertOutboxEvent(ctx, tx, o.ID.String(), EventOrderStatusChanged, payload); err != nil {
			return err
		}
		if err := s.loadItems(ctx, tx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetUnprocessedEvents returns up to limit unpublished outbox events, oldest first.
func (s *Store) GetUnprocessedEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload, created_at
		FROM outbox_events
		WHERE processed_at IS NULL
		ORDER BY id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	events := make([]*domain.OutboxEvent, 0)
	for rows.Next() {
		e := &domain.OutboxEvent{}
		var payload string
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		e.Payload = []byte(payload)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (s *Store) MarkEventAsProcessed(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE outbox_events SET processed_at = $1 WHERE id = $2 AND processed_at IS NULL`, now(), id)
	if err != nil {
		return fmt.Errorf("mark event processed: %w", err)
	}
	return checkAffected(res, fmt.Sprintf("outbox event %d", id))
}

// DeleteProcessedEvents removes published events processed before the cutoff
// and reports how many were deleted.
func (s *Store) DeleteProcessedEvents(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM outbox_events WHERE processed_at IS NOT NULL AND processed_at < $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete processed events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete processed events rows affected: %w", err)
	}
	return n, nil
}
