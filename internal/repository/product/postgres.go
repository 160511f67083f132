package product

import (
	"context"
	"fmt"
	"io"
	"log"

	"shopcart/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const productColumns = `id::text, category_id::text, name, slug, COALESCE(description, ''), price::text, discount::text, available, created_at, updated_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

// List returns available products, optionally limited to one category.
func (r *postgresRepo) List(ctx context.Context, categorySlug string) ([]domain.Product, error) {
	q := `
SELECT ` + productColumns + `
FROM products
WHERE available
ORDER BY name ASC
`
	args := []interface{}{}
	if categorySlug != "" {
		q = `
SELECT ` + qualified("p") + `
FROM products p
JOIN categories c ON c.id = p.category_id
WHERE p.available AND c.slug = $1
ORDER BY p.name ASC
`
		args = append(args, categorySlug)
	}
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		r.logger.Printf("product repo: list category=%s error=%v", categorySlug, err)
		return nil, err
	}
	result, err := collect(rows)
	if err != nil {
		r.logger.Printf("product repo: list rows category=%s error=%v", categorySlug, err)
		return nil, err
	}
	r.logger.Printf("product repo: list category=%s count=%d", categorySlug, len(result))
	return result, nil
}

// GetByID returns the product whether or not it is available.
func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	q := `
SELECT ` + productColumns + `
FROM products
WHERE id = $1
`
	rows, err := r.pool.Query(ctx, q, id)
	if err != nil {
		r.logger.Printf("product repo: get id=%s error=%v", id, err)
		return nil, err
	}
	result, err := collect(rows)
	if err != nil {
		r.logger.Printf("product repo: get id=%s error=%v", id, err)
		return nil, err
	}
	if len(result) == 0 {
		r.logger.Printf("product repo: get id=%s not found", id)
		return nil, domain.ErrNotFound
	}
	return &result[0], nil
}

// FindByIDs resolves many ids in one query. Unknown, malformed and
// unavailable ids are simply absent from the result.
func (r *postgresRepo) FindByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return nil, nil
	}
	q := `
SELECT ` + productColumns + `
FROM products
WHERE id = ANY($1::uuid[]) AND available
`
	rows, err := r.pool.Query(ctx, q, valid)
	if err != nil {
		r.logger.Printf("product repo: find ids=%d error=%v", len(valid), err)
		return nil, err
	}
	result, err := collect(rows)
	if err != nil {
		r.logger.Printf("product repo: find rows ids=%d error=%v", len(valid), err)
		return nil, err
	}
	r.logger.Printf("product repo: find requested=%d resolved=%d", len(ids), len(result))
	return result, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, p domain.Product) (*domain.Product, error) {
	q := `
INSERT INTO products (id, category_id, name, slug, description, price, discount, available)
VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2::uuid, $3, $4, NULLIF($5, ''), $6::numeric, $7::numeric, $8)
ON CONFLICT (slug) DO UPDATE SET
    category_id = EXCLUDED.category_id,
    name = EXCLUDED.name,
    description = EXCLUDED.description,
    price = EXCLUDED.price,
    discount = EXCLUDED.discount,
    available = EXCLUDED.available,
    updated_at = now()
RETURNING ` + productColumns
	rows, err := r.pool.Query(ctx, q,
		p.ID,
		p.CategoryID,
		p.Name,
		p.Slug,
		p.Description,
		p.Price.String(),
		p.Discount.String(),
		p.Available,
	)
	if err != nil {
		r.logger.Printf("product repo: upsert slug=%s error=%v", p.Slug, err)
		return nil, err
	}
	result, err := collect(rows)
	if err != nil {
		r.logger.Printf("product repo: upsert slug=%s error=%v", p.Slug, err)
		return nil, err
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("product repo: upsert slug=%s returned no row", p.Slug)
	}
	res := result[0]
	if p.ID != "" && res.ID != p.ID {
		return nil, fmt.Errorf("product repo: id mismatch for slug=%s existing_id=%s import_id=%s", p.Slug, res.ID, p.ID)
	}
	r.logger.Printf("product repo: upserted slug=%s id=%s", res.Slug, res.ID)
	return &res, nil
}

func qualified(alias string) string {
	return fmt.Sprintf(`%[1]s.id::text, %[1]s.category_id::text, %[1]s.name, %[1]s.slug, COALESCE(%[1]s.description, ''), %[1]s.price::text, %[1]s.discount::text, %[1]s.available, %[1]s.created_at, %[1]s.updated_at`, alias)
}

func collect(rows pgx.Rows) ([]domain.Product, error) {
	defer rows.Close()

	var result []domain.Product
	for rows.Next() {
		var (
			p               domain.Product
			price, discount string
		)
		if err := rows.Scan(&p.ID, &p.CategoryID, &p.Name, &p.Slug, &p.Description, &price, &discount, &p.Available, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		var err error
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse price for %s: %w", p.ID, err)
		}
		if p.Discount, err = decimal.NewFromString(discount); err != nil {
			return nil, fmt.Errorf("parse discount for %s: %w", p.ID, err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
