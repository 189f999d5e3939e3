package storage

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"monkibox/internal/domain/carts"
	"monkibox/internal/domain/products"
	"monkibox/internal/domain/purchases"
	"monkibox/internal/domain/users"
)

type Container struct {
	Users     users.Store
	Products  products.Store
	Carts     carts.Store
	Purchases purchases.Store
}

func NewContainer(db *pgxpool.Pool) *Container {
	return &Container{
		Users:     users.NewRepository(db),
		Products:  products.NewRepository(db),
		Carts:     carts.NewRepository(db),
		Purchases: purchases.NewRepository(db),
	}
}
