package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"renit/internal/domain"
	"renit/internal/models"
)

const itemColumns = `id, owner_id, category_id, title, description, location, available,
	price_cents, photo_url, latitude, longitude, created_at, updated_at`

func scanItem(row rowScanner) (*models.Item, error) {
	var (
		item                 models.Item
		categoryID           sql.NullInt64
		lat, lng             sql.NullFloat64
		createdAt, updatedAt int64
	)
	err := row.Scan(
		&item.ID, &item.OwnerID, &categoryID, &item.Title, &item.Description, &item.Location,
		&item.Available, &item.PriceCents, &item.PhotoURL, &lat, &lng, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	item.CategoryID = fromNullInt64(categoryID)
	if lat.Valid {
		item.Latitude = &lat.Float64
	}
	if lng.Valid {
		item.Longitude = &lng.Float64
	}
	item.CreatedAt = fromUnix(createdAt)
	item.UpdatedAt = fromUnix(updatedAt)
	return &item, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func (db *DB) CreateItem(ctx context.Context, item *models.Item) error {
	query := `INSERT INTO items (owner_id, category_id, title, description, location, available,
                price_cents, photo_url, latitude, longitude, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC().Truncate(time.Second)
	result, err := db.ExecContext(ctx, query,
		item.OwnerID,
		nullInt64(item.CategoryID),
		item.Title,
		item.Description,
		item.Location,
		item.Available,
		item.PriceCents,
		item.PhotoURL,
		nullFloat(item.Latitude),
		nullFloat(item.Longitude),
		unix(now),
		unix(now),
	)
	if err != nil {
		return mapError("create item", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	item.ID = id
	item.CreatedAt = now
	item.UpdatedAt = now
	return nil
}

func (db *DB) GetItem(ctx context.Context, id int64) (*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = ?`
	item, err := scanItem(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
		}
		return nil, mapError("get item", err)
	}
	return item, nil
}

func (db *DB) UpdateItem(ctx context.Context, item *models.Item) error {
	query := `UPDATE items SET category_id = ?, title = ?, description = ?, location = ?,
                available = ?, price_cents = ?, photo_url = ?, latitude = ?, longitude = ?, updated_at = ?
              WHERE id = ?`
	now := time.Now().UTC().Truncate(time.Second)
	result, err := db.ExecContext(ctx, query,
		nullInt64(item.CategoryID),
		item.Title,
		item.Description,
		item.Location,
		item.Available,
		item.PriceCents,
		item.PhotoURL,
		nullFloat(item.Latitude),
		nullFloat(item.Longitude),
		unix(now),
		item.ID,
	)
	if err != nil {
		return mapError("update item", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("item %d: %w", item.ID, domain.ErrNotFound)
	}
	item.UpdatedAt = now
	return nil
}

func (db *DB) DeleteItem(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return mapError("delete item", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("item %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// ListItems applies the search, category, price and availability filters.
func (db *DB) ListItems(ctx context.Context, filter models.ItemFilter) ([]*models.Item, error) {
	var (
		conds []string
		args  []any
	)
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := "%" + escapeLike(strings.ToLower(s)) + "%"
		conds = append(conds, `(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}
	if filter.CategoryID != nil {
		conds = append(conds, "category_id = ?")
		args = append(args, *filter.CategoryID)
	}
	if filter.MinPriceCents != nil {
		conds = append(conds, "price_cents >= ?")
		args = append(args, *filter.MinPriceCents)
	}
	if filter.MaxPriceCents != nil {
		conds = append(conds, "price_cents <= ?")
		args = append(args, *filter.MaxPriceCents)
	}
	if filter.Available != nil {
		conds = append(conds, "available = ?")
		args = append(args, *filter.Available)
	}
	if filter.OwnerID != nil {
		conds = append(conds, "owner_id = ?")
		args = append(args, *filter.OwnerID)
	}

	query := `SELECT ` + itemColumns + ` FROM items`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = models.DefaultListLimit
	}
	query += " ORDER BY id ASC LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := db.QueryContext(ctx, query, args...)
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
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (db *DB) CreateCategory(ctx context.Context, category *models.Category) error {
	result, err := db.ExecContext(ctx,
		`INSERT INTO categories (name, description) VALUES (?, ?)`,
		category.Name, category.Description)
	if err != nil {
		return mapError("create category", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	category.ID = id
	return nil
}

func (db *DB) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	var c models.Category
	err := db.QueryRowContext(ctx, `SELECT id, name, description FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("category %d: %w", id, domain.ErrNotFound)
		}
		return nil, mapError("get category", err)
	}
	return &c, nil
}

func (db *DB) ListCategories(ctx context.Context) ([]*models.Category, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, description FROM categories ORDER BY name ASC`)
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
