package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Product struct {
	ID          string          `json:"id"`
	CategoryID  string          `json:"categoryId,omitempty"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	// Discount is a percentage in the range 0..100.
	Discount  decimal.Decimal `json:"discount"`
	Available bool            `json:"available"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// SellPrice is the discounted unit price rounded to cents.
func (p Product) SellPrice() decimal.Decimal {
	if p.Discount.IsZero() {
		return p.Price
	}
	return DiscountedPrice(p.Price, p.Discount).Round(2)
}

// DiscountedPrice applies a percentage discount without rounding.
func DiscountedPrice(price, discount decimal.Decimal) decimal.Decimal {
	return price.Mul(hundred.Sub(discount)).Shift(-2)
}
