// Package purchases is the append-only purchase history. Rows are
// written once at checkout and never updated or deleted.
package purchases

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"monkibox/internal/cart"
)

var QueryTimeoutDuration = time.Second * 5

type Store interface {
	Append(ctx context.Context, userID int64, p *cart.Purchase) error
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]cart.Purchase, int, error)
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Store {
	return &Repository{db: db}
}

func (r *Repository) Append(ctx context.Context, userID int64, p *cart.Purchase) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	items, err := json.Marshal(p.Items)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
INSERT INTO purchases (id, user_id, items, subtotal, shipping, taxes, total, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`, p.ID, userID, items, p.Subtotal, p.Shipping, p.Taxes, p.Total, p.CreatedAt)
	return err
}

// ListByUser returns the user's purchases, most recent first.
func (r *Repository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]cart.Purchase, int, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := r.db.Query(ctx, `
SELECT id, items, subtotal, shipping, taxes, total, created_at, COUNT(*) OVER() AS total_rows
FROM purchases
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3
`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		out   []cart.Purchase
		total int
	)
	for rows.Next() {
		var (
			p   cart.Purchase
			raw []byte
		)
		if err := rows.Scan(&p.ID, &raw, &p.Subtotal, &p.Shipping, &p.Taxes, &p.Total, &p.CreatedAt, &total); err != nil {
			return nil, 0, err
		}
		if err := json.Unmarshal(raw, &p.Items); err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}
