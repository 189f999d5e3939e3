package cart

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrEmptyCart is returned by Checkout when there is nothing to buy.
	ErrEmptyCart = errors.New("cart is empty")
)

// Product is the catalog snapshot a cart line carries. The cart never
// mutates it; price changes in the catalog do not retroactively reprice
// lines already in the cart.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Description string          `json:"description,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
}

// Line is one entry in the cart: a product and how many of it.
// Quantity is always >= 1; a line that would reach 0 is removed instead.
type Line struct {
	ID       string  `json:"id"`
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Totals are derived from the line list and never stored on their own.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Taxes    decimal.Decimal `json:"taxes"`
	Total    decimal.Decimal `json:"total"`
}

// Purchase is the immutable record of a completed checkout.
type Purchase struct {
	ID        string          `json:"id"`
	Items     []Line          `json:"items"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Shipping  decimal.Decimal `json:"shipping"`
	Taxes     decimal.Decimal `json:"taxes"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
}

// Snapshot is what subscribers receive after every mutation.
type Snapshot struct {
	Lines  []Line `json:"items"`
	Totals Totals `json:"totals"`
}

// Pricing holds the two fixed pricing constants.
type Pricing struct {
	ShippingFee decimal.Decimal
	TaxRate     decimal.Decimal
}

// DefaultPricing matches the storefront: flat 50 shipping, 19% tax.
func DefaultPricing() Pricing {
	return Pricing{
		ShippingFee: decimal.NewFromInt(50),
		TaxRate:     decimal.NewFromFloat(0.19),
	}
}

// ComputeTotals derives the four totals from a line list.
// Shipping applies only when there is something to ship.
func ComputeTotals(lines []Line, p Pricing) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	shipping := decimal.Zero
	if subtotal.IsPositive() {
		shipping = p.ShippingFee
	}
	taxes := subtotal.Mul(p.TaxRate)

	return Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Taxes:    taxes,
		Total:    subtotal.Add(shipping).Add(taxes),
	}
}

// PersistentStore holds the full line list as one opaque blob.
type PersistentStore interface {
	Load(ctx context.Context) ([]Line, error)
	Save(ctx context.Context, lines []Line) error
}

// HistoryStore is the append-only record of completed purchases.
type HistoryStore interface {
	Append(ctx context.Context, p *Purchase) error
}
