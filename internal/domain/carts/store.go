// Package carts persists each user's cart as a single opaque blob: the
// whole line list is serialized to JSON and overwritten on every save,
// the same shape the mobile app keeps in its local key-value storage.
package carts

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"monkibox/internal/cart"
)

var QueryTimeoutDuration = time.Second * 5

// Store loads and saves the full line list for one user.
type Store interface {
	Load(ctx context.Context, userID int64) ([]cart.Line, error)
	Save(ctx context.Context, userID int64, lines []cart.Line) error
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Store {
	return &Repository{db: db}
}

func (r *Repository) Load(ctx context.Context, userID int64) ([]cart.Line, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var raw []byte
	err := r.db.QueryRow(ctx, `SELECT items FROM carts WHERE user_id = $1`, userID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	var lines []cart.Line
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *Repository) Save(ctx context.Context, userID int64, lines []cart.Line) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	if lines == nil {
		lines = []cart.Line{}
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
INSERT INTO carts (user_id, items, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (user_id) DO UPDATE
SET items = EXCLUDED.items, updated_at = now()
`, userID, raw)
	return err
}
