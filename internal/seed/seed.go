package seed

import (
	"context"
	"fmt"

	"shopcart/internal/domain"

	"github.com/shopspring/decimal"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

type CategoryWriter interface {
	Upsert(ctx context.Context, category domain.Category) (*domain.Category, error)
}

type productSeed struct {
	Category    string
	Slug        string
	Name        string
	Description string
	Price       string
	Discount    string
	Available   bool
}

var categories = []domain.Category{
	{Name: "Mugs", Slug: "mugs"},
	{Name: "T-Shirts", Slug: "t-shirts"},
}

var products = []productSeed{
	{Category: "mugs", Slug: "demo-mug", Name: "Demo Mug", Description: "Ceramic mug with demo logo", Price: "12.99", Discount: "0", Available: true},
	{Category: "mugs", Slug: "enamel-mug", Name: "Enamel Mug", Description: "Camp mug, ten percent off", Price: "10.00", Discount: "10", Available: true},
	{Category: "t-shirts", Slug: "demo-shirt", Name: "Demo T-Shirt", Description: "Soft cotton tee for demo purposes", Price: "19.99", Discount: "25", Available: true},
	{Category: "t-shirts", Slug: "retired-shirt", Name: "Retired T-Shirt", Description: "No longer sold", Price: "15.00", Discount: "0", Available: false},
}

// Apply inserts basic seed data for manual testing. It is idempotent because
// both writers upsert by slug.
func Apply(ctx context.Context, categoryRepo CategoryWriter, productRepo ProductWriter) error {
	ids := make(map[string]string, len(categories))
	for _, c := range categories {
		saved, err := categoryRepo.Upsert(ctx, c)
		if err != nil {
			return fmt.Errorf("upsert category %s: %w", c.Slug, err)
		}
		ids[c.Slug] = saved.ID
	}

	for _, p := range products {
		_, err := productRepo.Upsert(ctx, domain.Product{
			CategoryID:  ids[p.Category],
			Name:        p.Name,
			Slug:        p.Slug,
			Description: p.Description,
			Price:       decimal.RequireFromString(p.Price),
			Discount:    decimal.RequireFromString(p.Discount),
			Available:   p.Available,
		})
		if err != nil {
			return fmt.Errorf("upsert product %s: %w", p.Slug, err)
		}
	}

	return nil
}
