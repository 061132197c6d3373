package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/cybershop/internal/domain"
)

// ListSlides returns carousel slides by position. activeOnly hides disabled
// slides for the public storefront.
func (s *Store) ListSlides(ctx context.Context, activeOnly bool) ([]*domain.Slide, error) {
	query := `SELECT id, title, subtitle, image_url, link_url, position, active, created_at FROM hero_slides`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY position, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query slides: %w", err)
	}
	defer rows.Close()

	slides := make([]*domain.Slide, 0)
	for rows.Next() {
		sl := &domain.Slide{}
		if err := rows.Scan(&sl.ID, &sl.Title, &sl.Subtitle, &sl.ImageURL, &sl.LinkURL, &sl.Position, &sl.Active, &sl.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan slide: %w", err)
		}
		slides = append(slides, sl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return slides, nil
}

func (s *Store) CreateSlide(ctx context.Context, sl *domain.Slide) error {
	sl.CreatedAt = now()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO hero_slides (title, subtitle, image_url, link_url, position, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		sl.Title, sl.Subtitle, sl.ImageURL, sl.LinkURL, sl.Position, sl.Active, sl.CreatedAt).Scan(&sl.ID)
	if err != nil {
		return fmt.Errorf("insert slide: %w", err)
	}
	return nil
}

func (s *Store) UpdateSlide(ctx context.Context, sl *domain.Slide) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE hero_slides
		SET title = $1, subtitle = $2, image_url = $3, link_url = $4, position = $5, active = $6
		WHERE id = $7`,
		sl.Title, sl.Subtitle, sl.ImageURL, sl.LinkURL, sl.Position, sl.Active, sl.ID)
	if err != nil {
		return fmt.Errorf("update slide: %w", err)
	}
	return checkAffected(res, fmt.Sprintf("slide %d", sl.ID))
}

func (s *Store) DeleteSlide(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM hero_slides WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete slide: %w", err)
	}
	return checkAffected(res, fmt.Sprintf("slide %d", id))
}

func (s *Store) GetBanner(ctx context.Context) (*domain.Banner, error) {
	b := &domain.Banner{}
	err := s.db.QueryRowContext(ctx, `SELECT message, active, updated_at FROM banner WHERE id = 1`).
		Scan(&b.Message, &b.Active, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("banner: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query banner: %w", err)
	}
	return b, nil
}

// SetBanner replaces the single banner row, creating it if needed.
func (s *Store) SetBanner(ctx context.Context, b *domain.Banner) error {
	b.UpdatedAt = now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO banner (id, message, active, updated_at) VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET message = excluded.message, active = excluded.active, updated_at = excluded.updated_at`,
		b.Message, b.Active, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert banner: %w", err)
	}
	return nil
}

func (s *Store) CreateContactMessage(ctx context.Context, m *domain.ContactMessage) error {
	m.CreatedAt = now()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO contact_messages (name, email, subject, body, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		m.Name, m.Email, m.Subject, m.Body, false, m.CreatedAt).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("insert contact message: %w", err)
	}
	return nil
}

// ListContactMessages returns messages newest first; unreadOnly hides the
// ones already handled.
func (s *Store) ListContactMessages(ctx context.Context, unreadOnly bool) ([]*domain.ContactMessage, error) {
	query := `SELECT id, name, email, subject, body, is_read, created_at FROM contact_messages`
	if unreadOnly {
		query += ` WHERE is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query contact messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*domain.ContactMessage, 0)
	for rows.Next() {
		m := &domain.ContactMessage{}
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Subject, &m.Body, &m.Read, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contact message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return messages, nil
}

func (s *Store) MarkContactMessageRead(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE contact_messages SET is_read = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark contact message read: %w", err)
	}
	return checkAffected(res, fmt.Sprintf("contact message %d", id))
}

func (s *Store) DeleteContactMessage(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM contact_messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete contact message: %w", err)
	}
	return checkAffected(res, fmt.Sprintf("contact message %d", id))
}
