package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id int64) (*Product, error)
	List(ctx context.Context, search string, limit, offset int) ([]Product, int, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	Delete(ctx context.Context, id int64) error
	SetImageURL(ctx context.Context, id int64, url string) error
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Store {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, p *Product) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return r.db.QueryRow(ctx, `
INSERT INTO products (name, price, stock, description, image_url, is_active)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, is_active, created_at, updated_at
`, p.Name, p.Price, p.Stock, p.Description, p.ImageURL, p.IsActive).
		Scan(&p.ID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*Product, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var p Product
	err := r.db.QueryRow(ctx, `
SELECT id, name, price, stock, description, image_url, is_active, created_at, updated_at
FROM products
WHERE id = $1
`, id).Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Description, &p.ImageURL, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *Repository) List(ctx context.Context, search string, limit, offset int) ([]Product, int, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	args := []interface{}{limit, offset}
	where := `WHERE is_active`
	if s := strings.TrimSpace(search); s != "" {
		where += ` AND name ILIKE '%' || $3 || '%'`
		args = append(args, s)
	}

	rows, err := r.db.Query(ctx, `
SELECT id, name, price, stock, description, image_url, is_active, created_at, updated_at,
       COUNT(*) OVER() AS total
FROM products
`+where+`
ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2
`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		out   []Product
		total int
	)
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Description, &p.ImageURL,
			&p.IsActive, &p.CreatedAt, &p.UpdatedAt, &total); err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *Repository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return fmt.Errorf("no fields to update")
	}

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	setClauses := []string{}
	args := []interface{}{}
	argCounter := 1

	for field, value := range updates {
		if !isValidField(field) {
			return fmt.Errorf("invalid field name: %s", field)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", field, argCounter))
		args = append(args, value)
		argCounter++
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE products SET %s, updated_at = now() WHERE id = $%d",
		strings.Join(setClauses, ", "), argCounter)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isValidField(field string) bool {
	switch field {
	case "name", "price", "stock", "description", "image_url", "is_active":
		return true
	}
	return false
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) SetImageURL(ctx context.Context, id int64, url string) error {
	return r.Update(ctx, id, map[string]interface{}{"image_url": url})
}
