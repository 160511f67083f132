package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"

	"shopcart/internal/domain"

	"github.com/shopspring/decimal"
)

// SessionKey is the session namespace the cart is stored under.
const SessionKey = "cart"

// MaxLineQuantity caps what the quantity form offers for a single line.
const MaxLineQuantity = 20

var (
	// ErrInvalidQuantity is returned for quantities below one.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrCorruptCart means the stored blob could not be decoded.
	ErrCorruptCart = errors.New("corrupt cart data")
)

// Session is the slice of a web session the cart needs. Set stores the whole
// blob for a key; MarkModified asks the store to flush it at end of request.
type Session interface {
	Get(key string) ([]byte, bool)
	Set(key string, blob []byte)
	Delete(key string)
	MarkModified()
}

// Catalog resolves product ids in a single batch.
type Catalog interface {
	FindByIDs(ctx context.Context, ids []string) ([]domain.Product, error)
}

// Cart is the session-backed shopping cart for one request.
type Cart struct {
	session Session
	lines   *Lines
}

// Item is a stored line joined with the live product.
type Item struct {
	Product   domain.Product
	Quantity  int
	UnitPrice decimal.Decimal
	// SellPrice is UnitPrice with the live product discount applied.
	SellPrice  decimal.Decimal
	TotalPrice decimal.Decimal
}

// Load binds a cart to the session. A missing cart is initialized empty and
// written back right away.
func Load(sess Session) (*Cart, error) {
	c := &Cart{session: sess, lines: newLines()}

	blob, ok := sess.Get(SessionKey)
	if !ok || len(blob) == 0 {
		if err := c.save(); err != nil {
			return nil, err
		}
		return c, nil
	}
	if err := json.Unmarshal(blob, c.lines); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptCart, err)
	}
	return c, nil
}

// ValidateQuantity is the only place the quantity >= 1 rule is enforced.
func ValidateQuantity(n int) (int, error) {
	if n < 1 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidQuantity, n)
	}
	return n, nil
}

// Add puts quantity units of p in the cart. With override the line quantity
// is replaced, otherwise it is increased. The unit price is snapshotted only
// when the line is created.
func (c *Cart) Add(p domain.Product, quantity int, override bool) error {
	if strings.TrimSpace(p.ID) == "" {
		return domain.ErrNotFound
	}
	quantity, err := ValidateQuantity(quantity)
	if err != nil {
		return err
	}

	line, ok := c.lines.Get(p.ID)
	if !ok {
		line = &Line{Quantity: 0, UnitPrice: p.Price.StringFixed(2)}
		c.lines.put(p.ID, line)
	}
	if override {
		line.Quantity = quantity
	} else {
		line.Quantity += quantity
	}
	return c.save()
}

// Remove deletes the line for p. Removing an absent product is a no-op.
func (c *Cart) Remove(p domain.Product) error {
	if !c.lines.remove(p.ID) {
		return nil
	}
	return c.save()
}

// Clear drops the cart key from the session altogether.
func (c *Cart) Clear() {
	c.session.Delete(SessionKey)
	c.session.MarkModified()
	c.lines = newLines()
}

// Len is the number of distinct lines.
func (c *Cart) Len() int {
	return c.lines.Len()
}

// Lines exposes the stored lines read-only.
func (c *Cart) Lines() *Lines {
	return c.lines
}

// TotalQuantity sums stored quantities, including lines whose product no
// longer resolves.
func (c *Cart) TotalQuantity() int {
	total := 0
	for _, k := range c.lines.keys {
		total += c.lines.items[k].Quantity
	}
	return total
}

// Items resolves all stored product ids with one catalog call and returns a
// sequence of enriched items in stored order. Unresolved ids are skipped.
func (c *Cart) Items(ctx context.Context, catalog Catalog) (iter.Seq[Item], error) {
	keys := c.lines.Keys()
	if len(keys) == 0 {
		return func(func(Item) bool) {}, nil
	}

	products, err := catalog.FindByIDs(ctx, keys)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	type pending struct {
		product domain.Product
		line    Line
		price   decimal.Decimal
	}
	resolved := make([]pending, 0, len(byID))
	for _, k := range keys {
		p, ok := byID[k]
		if !ok {
			continue
		}
		line := *c.lines.items[k]
		price, err := decimal.NewFromString(line.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("%w: unit price for %s: %v", ErrCorruptCart, k, err)
		}
		resolved = append(resolved, pending{product: p, line: line, price: price})
	}

	return func(yield func(Item) bool) {
		for _, r := range resolved {
			sell := domain.DiscountedPrice(r.price, r.product.Discount)
			item := Item{
				Product:    r.product,
				Quantity:   r.line.Quantity,
				UnitPrice:  r.price,
				SellPrice:  sell.Round(2),
				TotalPrice: sell.Mul(decimal.NewFromInt(int64(r.line.Quantity))).RoundBank(2),
			}
			if !yield(item) {
				return
			}
		}
	}, nil
}

// TotalPrice sums snapshot price with live discount over resolved lines and
// rounds the sum half-to-even to cents.
func (c *Cart) TotalPrice(ctx context.Context, catalog Catalog) (decimal.Decimal, error) {
	items, err := c.Items(ctx, catalog)
	if err != nil {
		return decimal.Zero, err
	}
	return sumItems(items), nil
}

// Summary is the result of a single enrichment pass.
type Summary struct {
	Items         []Item
	TotalQuantity int
	TotalPrice    decimal.Decimal
	// Stale counts stored lines that did not resolve.
	Stale int
}

// Summarize enriches the cart once and derives every total from that pass.
func (c *Cart) Summarize(ctx context.Context, catalog Catalog) (Summary, error) {
	seq, err := c.Items(ctx, catalog)
	if err != nil {
		return Summary{}, err
	}
	items := make([]Item, 0, c.Len())
	for item := range seq {
		items = append(items, item)
	}
	return Summary{
		Items:         items,
		TotalQuantity: c.TotalQuantity(),
		TotalPrice:    sumItems(slices.Values(items)),
		Stale:         c.Len() - len(items),
	}, nil
}

func sumItems(items iter.Seq[Item]) decimal.Decimal {
	total := decimal.Zero
	for item := range items {
		total = total.Add(lineTotal(item))
	}
	return total.RoundBank(2)
}

// FormatPrice renders a money value with exactly two fraction digits.
func FormatPrice(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func lineTotal(item Item) decimal.Decimal {
	return domain.DiscountedPrice(item.UnitPrice, item.Product.Discount).
		Mul(decimal.NewFromInt(int64(item.Quantity)))
}

func (c *Cart) save() error {
	blob, err := json.Marshal(c.lines)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	c.session.Set(SessionKey, blob)
	c.session.MarkModified()
	return nil
}
