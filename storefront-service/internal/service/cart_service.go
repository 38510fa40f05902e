package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nana-k-osei/LAGC/storefront-service/domain"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/cache"
	"github.com/nana-k-osei/LAGC/storefront-service/internal/events"
)

// maxSaveAttempts bounds load-mutate-save retries when another writer saved
// the same cart in between.
const maxSaveAttempts = 3

type CartRepository interface {
	GetCart(ctx context.Context, id string) (*domain.Cart, error)
	SaveCart(ctx context.Context, cart *domain.Cart) error
}

type Catalog interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]*domain.Product, error)
}

type Notifier interface {
	Publish(ev events.CartChanged)
}

type CartService struct {
	repo     CartRepository
	cache    cache.CartCache
	catalog  Catalog
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
	sfg      singleflight.Group
}

func NewCartService(repo CartRepository, c cache.CartCache, catalog Catalog, notifier Notifier, logger *slog.Logger) *CartService {
	return &CartService{
		repo:     repo,
		cache:    c,
		catalog:  catalog,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// GetCart reads through the cache. Concurrent misses for one cart share a
// single repository load. Unknown carts come back empty.
func (s *CartService) GetCart(ctx context.Context, cartID string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(cartID, func() (any, error) {
		cart, err := s.cache.Get(ctx, cartID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.WarnContext(ctx, "cart cache read failed", "cart_id", cartID, "error", err)
		}

		cart, err = s.repo.GetCart(ctx, cartID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewCart(cartID, s.now()), nil
		}
		if err != nil {
			return nil, err
		}

		s.fillCache(ctx, cart)
		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart).Clone(), nil
}

func (s *CartService) AddItem(ctx context.Context, cartID, userID, productID string, quantity int, v domain.Variant) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, cartID, events.KindItemAdded, func(c *domain.Cart) error {
		if c.UserID == "" {
			c.UserID = userID
		}
		return c.AddItem(product, quantity, v)
	})
}

func (s *CartService) UpdateQuantity(ctx context.Context, cartID string, index, quantity int) (*domain.Cart, error) {
	kind := events.KindItemUpdated
	if quantity <= 0 {
		kind = events.KindItemRemoved
	}
	return s.mutate(ctx, cartID, kind, func(c *domain.Cart) error {
		return c.UpdateQuantity(index, quantity)
	})
}

func (s *CartService) RemoveItem(ctx context.Context, cartID string, index int) (*domain.Cart, error) {
	return s.mutate(ctx, cartID, events.KindItemRemoved, func(c *domain.Cart) error {
		return c.RemoveItem(index)
	})
}

// ClearCart empties the cart. The document is kept so its version keeps
// increasing.
func (s *CartService) ClearCart(ctx context.Context, cartID string) error {
	_, err := s.mutate(ctx, cartID, events.KindCleared, func(c *domain.Cart) error {
		c.Clear()
		return nil
	})
	return err
}

func (s *CartService) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	return s.catalog.ListProducts(ctx)
}

func (s *CartService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.catalog.GetProduct(ctx, id)
}

func (s *CartService) mutate(ctx context.Context, cartID string, kind events.Kind, apply func(*domain.Cart) error) (*domain.Cart, error) {
	for attempt := 1; ; attempt++ {
		cart, err := s.repo.GetCart(ctx, cartID)
		if errors.Is(err, domain.ErrNotFound) {
			cart = domain.NewCart(cartID, s.now())
		} else if err != nil {
			return nil, err
		}

		if err := apply(cart); err != nil {
			return nil, err
		}
		cart.UpdatedAt = s.now()

		err = s.repo.SaveCart(ctx, cart)
		if errors.Is(err, domain.ErrVersionConflict) && attempt < maxSaveAttempts {
			s.logger.DebugContext(ctx, "cart changed concurrently, retrying", "cart_id", cartID, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("save cart %s: %w", cartID, err)
		}

		s.fillCache(ctx, cart)
		s.notifier.Publish(events.CartChanged{
			Kind:      kind,
			CartID:    cart.ID,
			Version:   cart.Version,
			ItemCount: cart.ItemCount(),
			Subtotal:  cart.Subtotal(),
			At:        cart.UpdatedAt,
		})
		return cart, nil
	}
}

// fillCache writes the cart through to the cache. A failed write drops the
// entry so the next read goes to the repository.
func (s *CartService) fillCache(ctx context.Context, cart *domain.Cart) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()

	if err := s.cache.Set(ctx, cart); err != nil {
		s.logger.WarnContext(ctx, "cart cache write failed", "cart_id", cart.ID, "error", err)
		if err := s.cache.Delete(ctx, cart.ID); err != nil {
			s.logger.WarnContext(ctx, "cart cache invalidate failed", "cart_id", cart.ID, "error", err)
		}
	}
}
