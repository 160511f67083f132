package cart

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"

	sessioncart "shopcart/internal/cart"
	"shopcart/internal/domain"
	"shopcart/internal/metrics"
)

type Service struct {
	products productRepo
	logger   *log.Logger
	metrics  *metrics.Metrics
}

type productRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	FindByIDs(ctx context.Context, ids []string) ([]domain.Product, error)
}

func New(products productRepo, logger *log.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{products: products, logger: logger, metrics: m}
}

// Add puts quantity units of the product in the session cart. Without
// override the quantity is added to what is already there.
func (s *Service) Add(ctx context.Context, sess sessioncart.Session, productID string, quantity int, override bool) (sessioncart.Summary, error) {
	out, err := s.add(ctx, sess, productID, quantity, override)
	s.metrics.CartOp("add", err)
	return out, err
}

// Update sets the line quantity for the product.
func (s *Service) Update(ctx context.Context, sess sessioncart.Session, productID string, quantity int) (sessioncart.Summary, error) {
	out, err := s.add(ctx, sess, productID, quantity, true)
	s.metrics.CartOp("update", err)
	return out, err
}

func (s *Service) add(ctx context.Context, sess sessioncart.Session, productID string, quantity int, override bool) (sessioncart.Summary, error) {
	if _, err := sessioncart.ValidateQuantity(quantity); err != nil {
		s.logger.Printf("cart service: add product_id=%s quantity=%d rejected: %v", productID, quantity, err)
		return sessioncart.Summary{}, err
	}
	p, err := s.resolve(ctx, productID)
	if err != nil {
		return sessioncart.Summary{}, err
	}
	if !p.Available {
		s.logger.Printf("cart service: add product_id=%s unavailable", p.ID)
		return sessioncart.Summary{}, domain.ErrNotFound
	}

	c, err := sessioncart.Load(sess)
	if err != nil {
		return sessioncart.Summary{}, err
	}
	if err := c.Add(*p, quantity, override); err != nil {
		return sessioncart.Summary{}, err
	}
	s.logger.Printf("cart service: added product=%q product_id=%s quantity=%d override=%t", p.Name, p.ID, quantity, override)
	return s.summarize(ctx, c)
}

// Remove deletes the product line. The product must still exist, but may be
// unavailable, so stale lines can be cleaned up by the shopper.
func (s *Service) Remove(ctx context.Context, sess sessioncart.Session, productID string) (sessioncart.Summary, error) {
	out, err := s.remove(ctx, sess, productID)
	s.metrics.CartOp("remove", err)
	return out, err
}

func (s *Service) remove(ctx context.Context, sess sessioncart.Session, productID string) (sessioncart.Summary, error) {
	p, err := s.resolve(ctx, productID)
	if err != nil {
		return sessioncart.Summary{}, err
	}
	c, err := sessioncart.Load(sess)
	if err != nil {
		return sessioncart.Summary{}, err
	}
	if err := c.Remove(*p); err != nil {
		return sessioncart.Summary{}, err
	}
	s.logger.Printf("cart service: removed product=%q product_id=%s", p.Name, p.ID)
	return s.summarize(ctx, c)
}

// Detail returns the enriched cart contents and totals.
func (s *Service) Detail(ctx context.Context, sess sessioncart.Session) (sessioncart.Summary, error) {
	out, err := s.detail(ctx, sess)
	s.metrics.CartOp("detail", err)
	return out, err
}

func (s *Service) detail(ctx context.Context, sess sessioncart.Session) (sessioncart.Summary, error) {
	c, err := sessioncart.Load(sess)
	if err != nil {
		return sessioncart.Summary{}, err
	}
	return s.summarize(ctx, c)
}

// Clear removes the cart from the session.
func (s *Service) Clear(_ context.Context, sess sessioncart.Session) error {
	c, err := sessioncart.Load(sess)
	if err != nil && !errors.Is(err, sessioncart.ErrCorruptCart) {
		s.metrics.CartOp("clear", err)
		return err
	}
	if c == nil {
		sess.Delete(sessioncart.SessionKey)
		sess.MarkModified()
	} else {
		c.Clear()
	}
	s.logger.Printf("cart service: cleared")
	s.metrics.CartOp("clear", nil)
	return nil
}

func (s *Service) resolve(ctx context.Context, productID string) (*domain.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, domain.ErrNotFound
	}
	p, err := s.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Printf("cart service: product_id=%s not found", productID)
		}
		return nil, err
	}
	return p, nil
}

func (s *Service) summarize(ctx context.Context, c *sessioncart.Cart) (sessioncart.Summary, error) {
	out, err := c.Summarize(ctx, s.products)
	if err != nil {
		return sessioncart.Summary{}, err
	}
	if out.Stale > 0 {
		s.logger.Printf("cart service: skipped stale lines count=%d", out.Stale)
		s.metrics.Stale(out.Stale)
	}
	return out, nil
}
