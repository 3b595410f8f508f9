package sqlite

import (
	"context"
	"fmt"

	"github.com/sakif/lifeline/internal/apperror"
	"github.com/sakif/lifeline/internal/model"
	"github.com/sakif/lifeline/internal/repository"
)

var _ repository.CategoryRepository = (*DB)(nil)

// ListCategories returns the user's categories in creation order.
func (db *DB) ListCategories(ctx context.Context, userID int64) ([]model.Category, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, name, color FROM categories WHERE user_id = ? ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing categories: %w", err)
	}
	defer rows.Close()

	categories := make([]model.Category, 0)
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Color); err != nil {
			return nil, fmt.Errorf("sqlite: scanning category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating category rows: %w", err)
	}

	return categories, nil
}

func (db *DB) CreateCategory(ctx context.Context, category *model.Category) error {
	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO categories (user_id, name, color) VALUES (?, ?, ?)`,
		category.UserID, category.Name, category.Color,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating category: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading category id: %w", err)
	}
	category.ID = id
	return nil
}

// UpdateCategory replaces name and color. Zero rows affected means the row
// is missing or owned by someone else; both report not found.
func (db *DB) UpdateCategory(ctx context.Context, category *model.Category) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE categories SET name = ?, color = ? WHERE id = ? AND user_id = ?`,
		category.Name, category.Color, category.ID, category.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating category %d: %w", category.ID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("category", category.ID)
	}
	return nil
}

// DeleteCategory removes the row if the user owns it. Events keep their
// category_id.
func (db *DB) DeleteCategory(ctx context.Context, id, userID int64) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting category %d: %w", id, err)
	}
	return nil
}
