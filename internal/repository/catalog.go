package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/fjod/cybershop/internal/domain"
	"github.com/shopspring/decimal"
)

// ProductFilter narrows a product listing. Zero values mean "any".
type ProductFilter struct {
	CategoryID int64
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	InStock    bool
}

func (f ProductFilter) priceMatches(p decimal.Decimal) bool {
	if f.MinPrice != nil && p.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.GreaterThan(*f.MaxPrice) {
		return false
	}
	return true
}

func (s *Store) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, slug, description, created_at
		FROM categories
		ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]*domain.Category, 0)
	for rows.Next() {
		c := &domain.Category{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return categories, nil
}

func (s *Store) GetCategory(ctx context.Context, id int64) (*domain.Category, error) {
	c := &domain.Category{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, slug, description, created_at
		FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query category: %w", err)
	}
	return c, nil
}

func (s *Store) CreateCategory(ctx context.Context, c *domain.Category) error {
	c.CreatedAt = now()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO categories (name, slug, description, created_at)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		c.Name, c.Slug, c.Description, c.CreatedAt).Scan(&c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("category slug %q: %w", c.Slug, ErrConflict)
		}
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

func (s *Store) UpdateCategory(ctx context.Context, c *domain.Category) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE categories SET name = $1, slug = $2, description = $3
		WHERE id = $4`,
		c.Name, c.Slug, c.Description, c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("category slug %q: %w", c.Slug, ErrConflict)
		}
		return fmt.Errorf("update category: %w", err)
	}
	return checkAffected(res, fmt.Sprintf("category %d", c.ID))
}

// DeleteCategory refuses to remove a category that still has products.
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM products WHERE category_id = $1`, id).Scan(&n); err != nil {
			return fmt.Errorf("count category products: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("category %d has %d products: %w", id, n, ErrConflict)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		return checkAffected(res, fmt.Sprintf("category %d", id))
	})
}

const productColumns = `id, category_id, title, description, features, price, plan, stock, image_url, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	p := &domain.Product{}
	var features string
	if err := row.Scan(
		&p.ID,
		&p.CategoryID,
		&p.Title,
		&p.Description,
		&features,
		&p.Price,
		&p.Plan,
		&p.Stock,
		&p.ImageURL,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(features), &p.Features); err != nil {
		return nil, fmt.Errorf("unmarshal features of product %d: %w", p.ID, err)
	}
	return p, nil
}

// ListProducts returns products ordered by id. Category and stock are
// filtered in SQL; the price range is applied on decimals afterwards so the
// comparison is exact on every driver.
func (s *Store) ListProducts(ctx context.Context, f ProductFilter) ([]*domain.Product, error) {
	var (
		where []string
		args  []any
	)
	if f.CategoryID != 0 {
		args = append(args, f.CategoryID)
		where = append(where, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if f.InStock {
		where = append(where, "stock > 0")
	}

	query := "SELECT " + productColumns + " FROM products"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := make([]*domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		if f.priceMatches(p.Price) {
			products = append(products, p)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}
	return p, nil
}

// GetProducts loads several products at once, keyed by id. Missing ids are
// simply absent from the map.
func (s *Store) GetProducts(ctx context.Context, ids []int64) (map[int64]*domain.Product, error) {
	out := make(map[int64]*domain.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := "SELECT " + productColumns + " FROM products WHERE id IN (" + strings.Join(placeholders, ", ") + ")"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

func marshalFeatures(features []string) (string, error) {
	if features == nil {
		features = []string{}
	}
	b, err := json.Marshal(features)
	if err != nil {
		return "", fmt.Errorf("marshal features: %w", err)
	}
	return string(b), nil
}

func (s *Store) CreateProduct(ctx context.Context, p *domain.Product) error {
	features, err := marshalFeatures(p.Features)
	if err != nil {
		return err
	}
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO products (category_id, title, description, features, price, plan, stock, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		p.CategoryID, p.Title, p.Description, features, p.Price, p.Plan, p.Stock, p.ImageURL, p.CreatedAt, p.UpdatedAt).
		Scan(&p.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("category %d: %w", p.CategoryID, ErrNotFound)
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (s *Store) UpdateProduct(ctx context.Context, p *domain.Product) error {
	features, err := marshalFeatures(p.Features)
	if err != nil {
		return err
	}
	p.UpdatedAt = now()

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET category_id = $1, title = $2, description = $3, features = $4, price = $5,
		    plan = $6, stock = $7, image_url = $8, updated_at = $9
		WHERE id = $10`,
		p.CategoryID, p.Title, p.Description, features, p.Price, p.Plan, p.Stock, p.ImageURL, p.UpdatedAt, p.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("category %d: %w", p.CategoryID, ErrNotFound)
		}
		return fmt.Errorf("update product: %w", err)
	}
	return checkAffected(res, fmt.Sprintf("product %d", p.ID))
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return checkAffected(res, fmt.Sprintf("product %d", id))
}
