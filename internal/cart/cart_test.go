package cart

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"shopcart/internal/domain"

	"github.com/shopspring/decimal"
)

type stubSession struct {
	values   map[string][]byte
	modified int
	sets     int
}

func newStubSession() *stubSession {
	return &stubSession{values: map[string][]byte{}}
}

func (s *stubSession) Get(key string) ([]byte, bool) {
	v, ok := s.values[key]
	return v, ok
}

func (s *stubSession) Set(key string, blob []byte) {
	s.sets++
	s.values[key] = blob
}

func (s *stubSession) Delete(key string) {
	delete(s.values, key)
}

func (s *stubSession) MarkModified() {
	s.modified++
}

type stubCatalog struct {
	products map[string]domain.Product
	err      error
	calls    int
	lastIDs  []string
}

func (s *stubCatalog) FindByIDs(_ context.Context, ids []string) ([]domain.Product, error) {
	s.calls++
	s.lastIDs = ids
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.Product
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func product(id, price, discount string) domain.Product {
	return domain.Product{
		ID:        id,
		Name:      "Product " + id,
		Price:     decimal.RequireFromString(price),
		Discount:  decimal.RequireFromString(discount),
		Available: true,
	}
}

func catalogOf(products ...domain.Product) *stubCatalog {
	c := &stubCatalog{products: map[string]domain.Product{}}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func mustLoad(t *testing.T, sess Session) *Cart {
	t.Helper()
	c, err := Load(sess)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return c
}

func TestLoadInitializesEmptyCart(t *testing.T) {
	sess := newStubSession()
	c := mustLoad(t, sess)

	if c.Len() != 0 || c.TotalQuantity() != 0 {
		t.Fatalf("expected empty cart, got len=%d qty=%d", c.Len(), c.TotalQuantity())
	}
	blob, ok := sess.values[SessionKey]
	if !ok || string(blob) != "{}" {
		t.Fatalf("expected empty blob written back, got %q (present=%v)", blob, ok)
	}
	if sess.modified == 0 {
		t.Fatalf("expected session marked modified")
	}
}

func TestLoadExistingDoesNotRewrite(t *testing.T) {
	sess := newStubSession()
	sess.values[SessionKey] = []byte(`{"p1":{"quantity":2,"unit_price":"5.00"}}`)

	c := mustLoad(t, sess)
	if sess.sets != 0 || sess.modified != 0 {
		t.Fatalf("load of existing cart should not write, sets=%d modified=%d", sess.sets, sess.modified)
	}
	if c.TotalQuantity() != 2 {
		t.Fatalf("expected quantity 2, got %d", c.TotalQuantity())
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	sess := newStubSession()
	first := mustLoad(t, sess)
	if err := first.Add(product("p1", "1.00", "0"), 2, false); err != nil {
		t.Fatalf("add: %v", err)
	}
	second := mustLoad(t, sess)
	if second.Len() != 1 || second.TotalQuantity() != 2 {
		t.Fatalf("second load should see the same lines, got len=%d qty=%d", second.Len(), second.TotalQuantity())
	}
}

func TestLoadCorruptBlob(t *testing.T) {
	sess := newStubSession()
	sess.values[SessionKey] = []byte(`[1,2,3]`)
	_, err := Load(sess)
	if !errors.Is(err, ErrCorruptCart) {
		t.Fatalf("expected corrupt cart error, got %v", err)
	}
}

func TestAddAccumulates(t *testing.T) {
	sess := newStubSession()
	c := mustLoad(t, sess)
	p := product("p1", "10.00", "0")

	if err := c.Add(p, 3, false); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.Add(p, 2, false); err != nil {
		t.Fatalf("add: %v", err)
	}
	line, ok := c.Lines().Get("p1")
	if !ok || line.Quantity != 5 {
		t.Fatalf("expected quantity 5, got %+v", line)
	}
	if c.Len() != 1 {
		t.Fatalf("expected a single line, got %d", c.Len())
	}
}

func TestAddOverrideReplaces(t *testing.T) {
	c := mustLoad(t, newStubSession())
	p := product("p1", "10.00", "0")

	if err := c.Add(p, 3, false); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.Add(p, 2, true); err != nil {
		t.Fatalf("add override: %v", err)
	}
	line, _ := c.Lines().Get("p1")
	if line.Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", line.Quantity)
	}
}

func TestAddSnapshotsPriceOnce(t *testing.T) {
	c := mustLoad(t, newStubSession())

	if err := c.Add(product("p1", "10", "0"), 1, false); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.Add(product("p1", "99.99", "0"), 1, false); err != nil {
		t.Fatalf("add: %v", err)
	}
	line, _ := c.Lines().Get("p1")
	if line.UnitPrice != "10.00" {
		t.Fatalf("expected snapshot 10.00, got %s", line.UnitPrice)
	}
}

func TestAddRejectsInvalidQuantity(t *testing.T) {
	sess := newStubSession()
	c := mustLoad(t, sess)
	sess.sets = 0

	for _, qty := range []int{0, -1} {
		err := c.Add(product("p1", "1.00", "0"), qty, true)
		if !errors.Is(err, ErrInvalidQuantity) {
			t.Fatalf("qty %d: expected invalid quantity, got %v", qty, err)
		}
	}
	if c.Len() != 0 || sess.sets != 0 {
		t.Fatalf("rejected add must not create a line or write the session")
	}
}

func TestAddRejectsUnresolvedProduct(t *testing.T) {
	c := mustLoad(t, newStubSession())
	if err := c.Add(domain.Product{}, 1, false); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAddWritesWholeBlob(t *testing.T) {
	sess := newStubSession()
	c := mustLoad(t, sess)

	if err := c.Add(product("b", "2.50", "0"), 1, false); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.Add(product("a", "1", "0"), 4, false); err != nil {
		t.Fatalf("add: %v", err)
	}
	want := `{"b":{"quantity":1,"unit_price":"2.50"},"a":{"quantity":4,"unit_price":"1.00"}}`
	if got := string(sess.values[SessionKey]); got != want {
		t.Fatalf("unexpected blob\n got: %s\nwant: %s", got, want)
	}
}

func TestRemove(t *testing.T) {
	sess := newStubSession()
	c := mustLoad(t, sess)
	p := product("p1", "1.00", "0")
	if err := c.Add(p, 1, false); err != nil {
		t.Fatalf("add: %v", err)
	}

	before := sess.modified
	if err := c.Remove(p); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("expected line removed")
	}
	if sess.modified != before+1 {
		t.Fatalf("expected session marked modified on removal")
	}
}

func TestRemoveAbsentIsNoop(t *testing.T) {
	sess := newStubSession()
	c := mustLoad(t, sess)
	before := sess.modified

	if err := c.Remove(product("missing", "1.00", "0")); err != nil {
		t.Fatalf("remove absent: %v", err)
	}
	if sess.modified != before {
		t.Fatalf("no-op removal must not mark the session modified")
	}
}

func TestTotalPriceAppliesDiscount(t *testing.T) {
	c := mustLoad(t, newStubSession())
	p := product("p1", "10.00", "10")
	if err := c.Add(p, 3, false); err != nil {
		t.Fatalf("add: %v", err)
	}

	total, err := c.TotalPrice(context.Background(), catalogOf(p))
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if FormatPrice(total) != "27.00" {
		t.Fatalf("expected 27.00, got %s", FormatPrice(total))
	}
}

func TestTotalPriceEmptyCart(t *testing.T) {
	c := mustLoad(t, newStubSession())
	catalog := catalogOf()

	total, err := c.TotalPrice(context.Background(), catalog)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if FormatPrice(total) != "0.00" || c.TotalQuantity() != 0 {
		t.Fatalf("expected 0.00 and 0 items, got %s and %d", FormatPrice(total), c.TotalQuantity())
	}
	if catalog.calls != 0 {
		t.Fatalf("empty cart should not hit the catalog")
	}
}

func TestTotalPriceUsesSnapshotAndLiveDiscount(t *testing.T) {
	c := mustLoad(t, newStubSession())
	if err := c.Add(product("p1", "20.00", "0"), 2, false); err != nil {
		t.Fatalf("add: %v", err)
	}

	// live price changed, discount introduced afterwards
	live := product("p1", "50.00", "25")
	total, err := c.TotalPrice(context.Background(), catalogOf(live))
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if FormatPrice(total) != "30.00" {
		t.Fatalf("expected 30.00, got %s", FormatPrice(total))
	}
}

func TestTotalPriceRoundsHalfEven(t *testing.T) {
	cases := []struct {
		price, discount string
		want            string
	}{
		{"0.25", "50", "0.12"},
		{"0.75", "50", "0.38"},
		{"0.35", "50", "0.18"},
		{"1.01", "50", "0.50"},
	}
	for _, tc := range cases {
		c := mustLoad(t, newStubSession())
		p := product("p1", tc.price, tc.discount)
		if err := c.Add(p, 1, false); err != nil {
			t.Fatalf("add: %v", err)
		}
		total, err := c.TotalPrice(context.Background(), catalogOf(p))
		if err != nil {
			t.Fatalf("total: %v", err)
		}
		if got := FormatPrice(total); got != tc.want {
			t.Fatalf("price %s discount %s: expected %s, got %s", tc.price, tc.discount, tc.want, got)
		}
	}
}

func TestTotalPriceRoundsOnlyOnce(t *testing.T) {
	c := mustLoad(t, newStubSession())
	a := product("a", "0.25", "50")
	b := product("b", "0.25", "50")
	if err := c.Add(a, 1, false); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.Add(b, 1, false); err != nil {
		t.Fatalf("add: %v", err)
	}
	// 0.125 + 0.125 = 0.25; rounding each line first would give 0.24
	total, err := c.TotalPrice(context.Background(), catalogOf(a, b))
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if FormatPrice(total) != "0.25" {
		t.Fatalf("expected 0.25, got %s", FormatPrice(total))
	}
}

func TestStaleLinesCountedButNotPriced(t *testing.T) {
	c := mustLoad(t, newStubSession())
	live := product("live", "10.00", "0")
	gone := product("gone", "5.00", "0")
	if err := c.Add(live, 1, false); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.Add(gone, 4, false); err != nil {
		t.Fatalf("add: %v", err)
	}
	catalog := catalogOf(live)

	if c.TotalQuantity() != 5 {
		t.Fatalf("expected raw quantity 5, got %d", c.TotalQuantity())
	}
	total, err := c.TotalPrice(context.Background(), catalog)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if FormatPrice(total) != "10.00" {
		t.Fatalf("expected 10.00, got %s", FormatPrice(total))
	}

	items, err := c.Items(context.Background(), catalog)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	var ids []string
	for item := range items {
		ids = append(ids, item.Product.ID)
	}
	if len(ids) != 1 || ids[0] != "live" {
		t.Fatalf("expected only live item, got %v", ids)
	}
	if _, ok := c.Lines().Get("gone"); !ok {
		t.Fatalf("stale line must stay in storage")
	}
}

func TestItemsSingleBatchLookupInStoredOrder(t *testing.T) {
	c := mustLoad(t, newStubSession())
	products := []domain.Product{
		product("c", "3.00", "0"),
		product("a", "1.00", "0"),
		product("b", "2.00", "50"),
	}
	for _, p := range products {
		if err := c.Add(p, 2, false); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	catalog := catalogOf(products...)

	items, err := c.Items(context.Background(), catalog)
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	var got []Item
	for item := range items {
		got = append(got, item)
	}
	if catalog.calls != 1 || len(catalog.lastIDs) != 3 {
		t.Fatalf("expected one batch lookup for 3 ids, got calls=%d ids=%v", catalog.calls, catalog.lastIDs)
	}
	if len(got) != 3 || got[0].Product.ID != "c" || got[1].Product.ID != "a" || got[2].Product.ID != "b" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if FormatPrice(got[2].SellPrice) != "1.00" || FormatPrice(got[2].TotalPrice) != "2.00" {
		t.Fatalf("unexpected discounted item: %+v", got[2])
	}
}

func TestItemsDoesNotMutateStorage(t *testing.T) {
	sess := newStubSession()
	c := mustLoad(t, sess)
	p := product("p1", "1.00", "0")
	if err := c.Add(p, 1, false); err != nil {
		t.Fatalf("add: %v", err)
	}
	before := string(sess.values[SessionKey])
	sets := sess.sets

	items, err := c.Items(context.Background(), catalogOf(p))
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	for range items {
	}
	if string(sess.values[SessionKey]) != before || sess.sets != sets {
		t.Fatalf("iteration must not write the session")
	}
}

func TestItemsCatalogError(t *testing.T) {
	c := mustLoad(t, newStubSession())
	if err := c.Add(product("p1", "1.00", "0"), 1, false); err != nil {
		t.Fatalf("add: %v", err)
	}
	catalog := &stubCatalog{err: errors.New("db down")}
	if _, err := c.TotalPrice(context.Background(), catalog); err == nil || err.Error() != "db down" {
		t.Fatalf("expected catalog error, got %v", err)
	}
}

func TestClearRemovesKey(t *testing.T) {
	sess := newStubSession()
	c := mustLoad(t, sess)
	if err := c.Add(product("p1", "1.00", "0"), 1, false); err != nil {
		t.Fatalf("add: %v", err)
	}

	c.Clear()
	if _, ok := sess.values[SessionKey]; ok {
		t.Fatalf("clear must delete the key, not empty it")
	}
	if c.Len() != 0 {
		t.Fatalf("expected in-memory lines reset")
	}

	again := mustLoad(t, sess)
	if again.Len() != 0 {
		t.Fatalf("expected empty cart after clear, got %d lines", again.Len())
	}
	if string(sess.values[SessionKey]) != "{}" {
		t.Fatalf("expected reload to reinitialize the key")
	}
}

func TestTamperedZeroQuantityLineIsKept(t *testing.T) {
	sess := newStubSession()
	sess.values[SessionKey] = []byte(`{"p1":{"quantity":0,"unit_price":"9.99"},"p2":{"quantity":2,"unit_price":"1.00"}}`)
	c := mustLoad(t, sess)
	p1 := product("p1", "9.99", "0")
	p2 := product("p2", "1.00", "0")

	if c.Len() != 2 || c.TotalQuantity() != 2 {
		t.Fatalf("zero line should survive load, len=%d qty=%d", c.Len(), c.TotalQuantity())
	}
	total, err := c.TotalPrice(context.Background(), catalogOf(p1, p2))
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if FormatPrice(total) != "2.00" {
		t.Fatalf("expected 2.00, got %s", FormatPrice(total))
	}
}

func TestLinesRoundTrip(t *testing.T) {
	sess := newStubSession()
	c := mustLoad(t, sess)
	for i, p := range []domain.Product{product("z", "0.10", "0"), product("m", "12.5", "0"), product("a", "3", "0")} {
		if err := c.Add(p, i+1, false); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	blob, err := json.Marshal(c.Lines())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded := newLines()
	if err := json.Unmarshal(blob, decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	wantKeys := c.Lines().Keys()
	gotKeys := decoded.Keys()
	if len(gotKeys) != len(wantKeys) {
		t.Fatalf("key count mismatch: %v vs %v", gotKeys, wantKeys)
	}
	for i, k := range wantKeys {
		if gotKeys[i] != k {
			t.Fatalf("key order mismatch: %v vs %v", gotKeys, wantKeys)
		}
		want, _ := c.Lines().Get(k)
		got, _ := decoded.Get(k)
		if *got != *want {
			t.Fatalf("line %s mismatch: %+v vs %+v", k, got, want)
		}
	}
}

func TestValidateQuantity(t *testing.T) {
	if n, err := ValidateQuantity(1); err != nil || n != 1 {
		t.Fatalf("expected 1 to be valid, got %d %v", n, err)
	}
	if _, err := ValidateQuantity(0); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected invalid quantity, got %v", err)
	}
}

func TestSummarizeSinglePass(t *testing.T) {
	c := mustLoad(t, newStubSession())
	live := product("live", "4.00", "50")
	if err := c.Add(live, 3, false); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := c.Add(product("gone", "1.00", "0"), 2, false); err != nil {
		t.Fatalf("add: %v", err)
	}
	catalog := catalogOf(live)

	sum, err := c.Summarize(context.Background(), catalog)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if catalog.calls != 1 {
		t.Fatalf("expected one catalog call, got %d", catalog.calls)
	}
	if len(sum.Items) != 1 || sum.Stale != 1 || sum.TotalQuantity != 5 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if FormatPrice(sum.TotalPrice) != "6.00" {
		t.Fatalf("expected 6.00, got %s", FormatPrice(sum.TotalPrice))
	}
}
