package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"shopcart/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

type CategoryWriter interface {
	Upsert(ctx context.Context, category domain.Category) (*domain.Category, error)
}

// CSVImporter reads catalog CSV files and inserts/updates categories and
// products. Expected headers: id, slug, name, description, category,
// category.name, price, discount, available. Only slug, name, category and
// price are required.
type CSVImporter struct {
	reader       *csv.Reader
	productRepo  ProductWriter
	categoryRepo CategoryWriter

	// category slug -> id
	categories map[string]string
}

func NewCSVImporter(r io.Reader, products ProductWriter, categories CategoryWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader:       csvr,
		productRepo:  products,
		categoryRepo: categories,
		categories:   make(map[string]string),
	}
}

type csvRow struct {
	line         int
	ID           string
	Slug         string
	Name         string
	Desc         string
	Category     string
	CategoryName string
	Price        string
	Discount     string
	Available    string
}

// Run parses CSV rows and upserts one product per row. It stops at the first
// invalid row and returns how many products were written before it.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	for _, required := range []string{"slug", "name", "category", "price"} {
		if _, ok := index[required]; !ok {
			return 0, fmt.Errorf("missing column %q", required)
		}
	}

	imported := 0
	line := 1
	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row: %w", err)
		}
		line++

		row := parseRow(record, index)
		if row == nil {
			continue
		}
		row.line = line
		if err := i.save(ctx, row); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

func (i *CSVImporter) save(ctx context.Context, row *csvRow) error {
	if row.Slug == "" || row.Name == "" || row.Category == "" || row.Price == "" {
		return fmt.Errorf("line %d: invalid product row (missing required fields) for slug %q", row.line, row.Slug)
	}
	if row.ID != "" {
		if _, err := uuid.Parse(row.ID); err != nil {
			return fmt.Errorf("line %d: invalid id for slug %q: %s", row.line, row.Slug, row.ID)
		}
	}
	price, err := decimal.NewFromString(row.Price)
	if err != nil || price.IsNegative() {
		return fmt.Errorf("line %d: invalid price for slug %q: %q", row.line, row.Slug, row.Price)
	}
	discount := decimal.Zero
	if row.Discount != "" {
		discount, err = decimal.NewFromString(row.Discount)
		if err != nil || discount.IsNegative() || discount.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("line %d: invalid discount for slug %q: %q", row.line, row.Slug, row.Discount)
		}
	}
	available := true
	if row.Available != "" {
		available, err = strconv.ParseBool(row.Available)
		if err != nil {
			return fmt.Errorf("line %d: invalid available flag for slug %q: %q", row.line, row.Slug, row.Available)
		}
	}

	categoryID, err := i.ensureCategory(ctx, row.Category, row.CategoryName)
	if err != nil {
		return err
	}

	p := domain.Product{
		ID:          row.ID,
		CategoryID:  categoryID,
		Name:        row.Name,
		Slug:        row.Slug,
		Description: row.Desc,
		Price:       price.Round(2),
		Discount:    discount.Round(2),
		Available:   available,
	}
	if _, err := i.productRepo.Upsert(ctx, p); err != nil {
		return fmt.Errorf("upsert product %q: %w", row.Slug, err)
	}
	return nil
}

func (i *CSVImporter) ensureCategory(ctx context.Context, slug, name string) (string, error) {
	if id, ok := i.categories[slug]; ok {
		return id, nil
	}
	if name == "" {
		name = titleFromSlug(slug)
	}
	c, err := i.categoryRepo.Upsert(ctx, domain.Category{Name: name, Slug: slug})
	if err != nil {
		return "", fmt.Errorf("upsert category %q: %w", slug, err)
	}
	i.categories[slug] = c.ID
	return c.ID, nil
}

func titleFromSlug(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' })
	for n, w := range words {
		words[n] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) *csvRow {
	row := &csvRow{
		ID:           pick(record, index, "id"),
		Slug:         pick(record, index, "slug"),
		Name:         pick(record, index, "name"),
		Desc:         pick(record, index, "description"),
		Category:     pick(record, index, "category"),
		CategoryName: pick(record, index, "category.name"),
		Price:        pick(record, index, "price"),
		Discount:     pick(record, index, "discount"),
		Available:    pick(record, index, "available"),
	}
	if *row == (csvRow{}) {
		return nil
	}
	return row
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
