package cart

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"paineluriel/backend/internal/cache"
	"paineluriel/backend/internal/content"
	"paineluriel/backend/internal/domain"
)

const invalidCouponMessage = "Cupom invalido"

var (
	ErrSessionNotFound = errors.New("cart session not found")
	ErrUnknownProduct  = errors.New("unknown product")
)

// Service owns cart sessions: one cart per visitor session id, stored
// in a CartStore with a sliding TTL.
type Service struct {
	store   cache.CartStore
	catalog *content.Catalog
	ttl     time.Duration
}

func New(store cache.CartStore, catalog *content.Catalog, ttl time.Duration) *Service {
	return &Service{store: store, catalog: catalog, ttl: ttl}
}

func (s *Service) CreateSession(ctx context.Context) (domain.CartView, error) {
	now := time.Now().UTC()
	cart := domain.Cart{
		ID:        uuid.NewString(),
		Items:     []domain.CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Set(ctx, cart.ID, &cart, s.ttl); err != nil {
		return domain.CartView{}, err
	}
	return s.view(cart), nil
}

func (s *Service) Get(ctx context.Context, sessionID string) (domain.CartView, error) {
	cart, err := s.load(ctx, sessionID)
	if err != nil {
		return domain.CartView{}, err
	}
	return s.view(*cart), nil
}

// AddItem inserts the catalog product with quantity 1, or increments
// the quantity by 1 when the item is already in the cart.
func (s *Service) AddItem(ctx context.Context, sessionID string, productID string) (domain.CartView, error) {
	product, ok := s.catalog.Product(strings.TrimSpace(productID))
	if !ok {
		return domain.CartView{}, ErrUnknownProduct
	}

	cart, err := s.load(ctx, sessionID)
	if err != nil {
		return domain.CartView{}, err
	}

	found := false
	for i := range cart.Items {
		if cart.Items[i].ID == product.ID {
			cart.Items[i].Quantity++
			found = true
			break
		}
	}
	if !found {
		cart.Items = append(cart.Items, domain.CartItem{
			ID:            product.ID,
			Name:          product.Name,
			UnitPrice:     product.Price,
			OriginalPrice: product.OriginalPrice,
			Quantity:      1,
		})
	}

	return s.save(ctx, cart)
}

// UpdateQuantity sets the item's quantity. Quantities below 1 are a
// no-op: the last unit cannot be removed by decrementing, only by an
// explicit RemoveItem.
func (s *Service) UpdateQuantity(ctx context.Context, sessionID string, productID string, qty int) (domain.CartView, error) {
	cart, err := s.load(ctx, sessionID)
	if err != nil {
		return domain.CartView{}, err
	}
	if qty < 1 {
		return s.view(*cart), nil
	}

	for i := range cart.Items {
		if cart.Items[i].ID == productID {
			cart.Items[i].Quantity = qty
			return s.save(ctx, cart)
		}
	}
	return s.view(*cart), nil
}

func (s *Service) RemoveItem(ctx context.Context, sessionID string, productID string) (domain.CartView, error) {
	cart, err := s.load(ctx, sessionID)
	if err != nil {
		return domain.CartView{}, err
	}

	kept := cart.Items[:0]
	for _, item := range cart.Items {
		if item.ID != productID {
			kept = append(kept, item)
		}
	}
	cart.Items = kept

	return s.save(ctx, cart)
}

// ApplyCoupon normalizes and looks up the code. A hit sets the applied
// coupon and clears any error; a miss sets the error and clears any
// previously applied coupon. The miss is a local validation message,
// never an error return.
func (s *Service) ApplyCoupon(ctx context.Context, sessionID string, code string) (domain.CartView, error) {
	cart, err := s.load(ctx, sessionID)
	if err != nil {
		return domain.CartView{}, err
	}

	normalized := strings.ToUpper(strings.TrimSpace(code))
	if _, ok := CouponPercent(normalized); ok {
		cart.AppliedCoupon = normalized
		cart.CouponError = ""
	} else {
		cart.AppliedCoupon = ""
		cart.CouponError = invalidCouponMessage
	}

	return s.save(ctx, cart)
}

func (s *Service) RemoveCoupon(ctx context.Context, sessionID string) (domain.CartView, error) {
	cart, err := s.load(ctx, sessionID)
	if err != nil {
		return domain.CartView{}, err
	}
	cart.AppliedCoupon = ""
	cart.CouponError = ""
	return s.save(ctx, cart)
}

// Clear empties the cart after a successful checkout.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	cart, err := s.load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		return err
	}
	cart.Items = []domain.CartItem{}
	cart.AppliedCoupon = ""
	cart.CouponError = ""
	_, err = s.save(ctx, cart)
	return err
}

// ProductName builds the checkout descriptor: the single item's name,
// multiple names joined with " + ", or the storefront default.
func (s *Service) ProductName(ctx context.Context, sessionID string) (string, error) {
	cart, err := s.load(ctx, sessionID)
	if err != nil {
		return "", err
	}
	switch len(cart.Items) {
	case 0:
		return content.DefaultProductName, nil
	case 1:
		return cart.Items[0].Name, nil
	default:
		names := make([]string, 0, len(cart.Items))
		for _, item := range cart.Items {
			names = append(names, item.Name)
		}
		return strings.Join(names, " + "), nil
	}
}

func (s *Service) load(ctx context.Context, sessionID string) (*domain.Cart, error) {
	cart, ok, err := s.store.Get(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionNotFound
	}
	return cart, nil
}

func (s *Service) save(ctx context.Context, cart *domain.Cart) (domain.CartView, error) {
	cart.UpdatedAt = time.Now().UTC()
	if err := s.store.Set(ctx, cart.ID, cart, s.ttl); err != nil {
		return domain.CartView{}, err
	}
	return s.view(*cart), nil
}

func (s *Service) view(cart domain.Cart) domain.CartView {
	subtotal := cart.Subtotal()
	discount := decimal.Zero
	if pct, ok := CouponPercent(cart.AppliedCoupon); ok {
		discount = subtotal.Mul(decimal.NewFromInt(pct)).Div(decimal.NewFromInt(100))
	}
	return domain.CartView{
		Cart:     cart,
		Subtotal: subtotal,
		Discount: discount,
		Total:    subtotal.Sub(discount),
		Count:    cart.ItemCount(),
	}
}
