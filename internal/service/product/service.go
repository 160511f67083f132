package product

import (
	"context"
	"strings"

	"shopcart/internal/domain"
	productrepo "shopcart/internal/repository/product"
)

type Service struct {
	repo productrepo.Repository
}

func New(repo productrepo.Repository) *Service {
	return &Service{repo: repo}
}

// List returns available products, optionally only those in categorySlug.
func (s *Service) List(ctx context.Context, categorySlug string) ([]domain.Product, error) {
	return s.repo.List(ctx, strings.TrimSpace(categorySlug))
}

// Get returns an available product; hidden products are reported as missing.
func (s *Service) Get(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if !p.Available {
		return nil, domain.ErrNotFound
	}
	return p, nil
}
