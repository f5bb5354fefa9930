package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"renit/internal/domain"
	"renit/internal/models"
)

const itemColumns = `id, owner_id, category_id, title, description, location, available,
	price_cents, photo_url, latitude, longitude, created_at, updated_at`

func scanItem(row rowScanner) (*models.Item, error) {
	var (
		item       models.Item
		categoryID sql.NullInt64
		lat, lng   sql.NullFloat64
	)
	err := row.Scan(
		&item.ID, &item.OwnerID, &categoryID, &item.Title, &item.Description, &item.Location,
		&item.Available, &item.PriceCents, &item.PhotoURL, &lat, &lng, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if categoryID.Valid {
		item.CategoryID = &categoryID.Int64
	}
	if lat.Valid {
		item.Latitude = &lat.Float64
	}
	if lng.Valid {
		item.Longitude = &lng.Float64
	}
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return &item, nil
}

func (s *Store) CreateItem(ctx context.Context, item *models.Item) error {
	query := `INSERT INTO items (owner_id, category_id, title, description, location, available,
                price_cents, photo_url, latitude, longitude, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11) RETURNING id`
	ts := now()
	err := s.db.QueryRowContext(ctx, query,
		item.OwnerID, item.CategoryID, item.Title, item.Description, item.Location, item.Available,
		item.PriceCents, item.PhotoURL, item.Latitude, item.Longitude, ts,
	).Scan(&item.ID)
	if err != nil {
		return mapError("create item", err)
	}
	item.CreatedAt = ts
	item.UpdatedAt = ts
	return nil
}

func (s *Store) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
		}
		return nil, mapError("get item", err)
	}
	return item, nil
}

func (s *Store) UpdateItem(ctx context.Context, item *models.Item) error {
	query := `UPDATE items SET category_id = $1, title = $2, description = $3, location = $4,
                available = $5, price_cents = $6, photo_url = $7, latitude = $8, longitude = $9, updated_at = $10
              WHERE id = $11`
	ts := now()
	result, err := s.db.ExecContext(ctx, query,
		item.CategoryID, item.Title, item.Description, item.Location, item.Available,
		item.PriceCents, item.PhotoURL, item.Latitude, item.Longitude, ts, item.ID,
	)
	if err != nil {
		return mapError("update item", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("item %d: %w", item.ID, domain.ErrNotFound)
	}
	item.UpdatedAt = ts
	return nil
}

func (s *Store) DeleteItem(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return mapError("delete item", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) ListItems(ctx context.Context, filter models.ItemFilter) ([]*models.Item, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q := strings.TrimSpace(filter.Search); q != "" {
		p := arg("%" + escapeLike(q) + "%")
		conds = append(conds, "(title ILIKE "+p+" OR description ILIKE "+p+")")
	}
	if filter.CategoryID != nil {
		conds = append(conds, "category_id = "+arg(*filter.CategoryID))
	}
	if filter.MinPriceCents != nil {
		conds = append(conds, "price_cents >= "+arg(*filter.MinPriceCents))
	}
	if filter.MaxPriceCents != nil {
		conds = append(conds, "price_cents <= "+arg(*filter.MaxPriceCents))
	}
	if filter.Available != nil {
		conds = append(conds, "available = "+arg(*filter.Available))
	}
	if filter.OwnerID != nil {
		conds = append(conds, "owner_id = "+arg(*filter.OwnerID))
	}

	query := `SELECT ` + itemColumns + ` FROM items`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = models.DefaultListLimit
	}
	query += " ORDER BY id ASC LIMIT " + arg(limit) + " OFFSET " + arg(filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list items", err)
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (s *Store) CreateCategory(ctx context.Context, category *models.Category) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO categories (name, description) VALUES ($1, $2) RETURNING id`,
		category.Name, category.Description).Scan(&category.ID)
	return mapError("create category", err)
}

func (s *Store) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	var c models.Category
	err := s.db.QueryRowContext(ctx, `SELECT id, name, description FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("category %d: %w", id, domain.ErrNotFound)
		}
		return nil, mapError("get category", err)
	}
	return &c, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]*models.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, mapError("list categories", err)
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, &c)
	}
	return categories, rows.Err()
}
