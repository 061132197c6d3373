package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fjod/cybershop/internal/domain"
)

// ReserveStock takes the requested quantities out of product stock. Either
// every item is reserved or none is; a product without enough stock fails
// with ErrInsufficientStock.
func (s *Store) ReserveStock(ctx context.Context, items []domain.StockItem) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, item := range items {
			res, err := tx.ExecContext(ctx, `
				UPDATE products SET stock = stock - $1, updated_at = $2
				WHERE id = $3 AND stock >= $1`,
				item.Quantity, now(), item.ProductID)
			if err != nil {
				return fmt.Errorf("reserve stock for product %d: %w", item.ProductID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("reserve stock rows affected: %w", err)
			}
			if n == 0 {
				return fmt.Errorf("product %d, %d requested: %w", item.ProductID, item.Quantity, ErrInsufficientStock)
			}
		}
		return nil
	})
}

// ReleaseStock returns previously reserved quantities to product stock.
func (s *Store) ReleaseStock(ctx context.Context, items []domain.StockItem) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, item := range items {
			_, err := tx.ExecContext(ctx, `
				UPDATE products SET stock = stock + $1, updated_at = $2
				WHERE id = $3`,
				item.Quantity, now(), item.ProductID)
			if err != nil {
				return fmt.Errorf("release stock for product %d: %w", item.ProductID, err)
			}
		}
		return nil
	})
}
