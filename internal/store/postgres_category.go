package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"productflow/internal/domain"
)

// --- CategoryStorer Implementation ---

func scanCategory(row rowScanner, c *domain.Category) error {
	return row.Scan(&c.ID, &c.Name, &c.Description, &c.Color, &c.CreatedAt, &c.UpdatedAt)
}

func (s *PostgresStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	query := `SELECT id, name, description, color, created_at, updated_at FROM categories ORDER BY name ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: ListCategories failed to query: %w", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := scanCategory(rows, &c); err != nil {
			return nil, fmt.Errorf("store: ListCategories failed to scan row: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: ListCategories iteration error: %w", err)
	}
	return categories, nil
}

func (s *PostgresStore) GetCategoryByID(ctx context.Context, id int64) (*domain.Category, error) {
	query := `SELECT id, name, description, color, created_at, updated_at FROM categories WHERE id = $1`

	var c domain.Category
	if err := scanCategory(s.db.QueryRowContext(ctx, query, id), &c); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("store: GetCategoryByID failed to scan row: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	query := `
		INSERT INTO categories (name, description, color)
		VALUES ($1, $2, $3)
		RETURNING id, name, description, color, created_at, updated_at`

	var c domain.Category
	err := scanCategory(s.db.QueryRowContext(ctx, query, category.Name, category.Description, category.Color), &c)
	if err != nil {
		if _, ok := isPgError(err, pgUniqueViolation); ok {
			return nil, ErrCategoryNameExists
		}
		return nil, fmt.Errorf("store: CreateCategory failed to scan row: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) UpdateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	query := `
		UPDATE categories
		SET name = $1, description = $2, color = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $4
		RETURNING id, name, description, color, created_at, updated_at`

	var c domain.Category
	err := scanCategory(s.db.QueryRowContext(ctx, query, category.Name, category.Description, category.Color, category.ID), &c)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		if _, ok := isPgError(err, pgUniqueViolation); ok {
			return nil, ErrCategoryNameExists
		}
		return nil, fmt.Errorf("store: UpdateCategory failed to scan row: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) DeleteCategory(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("store: DeleteCategory failed to execute delete: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: DeleteCategory failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// --- UserStorer Implementation ---

func (s *PostgresStore) CreateUser(ctx context.Context, username string, passwordHash []byte) (*domain.User, error) {
	query := `
		INSERT INTO users (username, password_hash)
		VALUES ($1, $2)
		RETURNING id, username, password_hash, created_at`

	var u domain.User
	err := s.db.QueryRowContext(ctx, query, username, passwordHash).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if _, ok := isPgError(err, pgUniqueViolation); ok {
			return nil, ErrUsernameExists
		}
		return nil, fmt.Errorf("store: CreateUser failed to scan row: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return s.getUser(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE id = $1`, id)
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.getUser(ctx, `SELECT id, username, password_hash, created_at FROM users WHERE lower(username) = lower($1)`, username)
}

func (s *PostgresStore) getUser(ctx context.Context, query string, arg any) (*domain.User, error) {
	var u domain.User
	if err := s.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("store: getUser failed to scan row: %w", err)
	}
	return &u, nil
}
