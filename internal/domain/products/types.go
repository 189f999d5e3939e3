package products

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"monkibox/internal/cart"
)

var (
	ErrNotFound          = errors.New("resource not found")
	QueryTimeoutDuration = time.Second * 5
)

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Description string          `json:"description"`
	ImageURL    string          `json:"image_url"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CartProduct is the snapshot of this product a cart line carries.
func (p *Product) CartProduct() cart.Product {
	return cart.Product{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Stock:       p.Stock,
		Description: p.Description,
		ImageURL:    p.ImageURL,
	}
}
