package product

import (
	"context"

	"shopcart/internal/domain"
)

type Repository interface {
	List(ctx context.Context, categorySlug string) ([]domain.Product, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	FindByIDs(ctx context.Context, ids []string) ([]domain.Product, error)
	Upsert(ctx context.Context, p domain.Product) (*domain.Product, error)
}
