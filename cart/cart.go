// Package cart implements the per-identity shopping cart: line items keyed
// by (product, size, color) with price snapshots, guest carts bound to a
// session cookie, and the fold-into-user merge that runs at login.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"vastra/models"
	"vastra/store"
	"vastra/utils"
)

var (
	ErrProductNotFound = errors.New("cart: product not found")
	ErrItemNotFound    = errors.New("cart: item not in cart")
	ErrCartNotFound    = errors.New("cart: cart not found")
	ErrOutOfStock      = errors.New("cart: not enough stock")
	ErrNoIdentity      = errors.New("cart: no user or session")
)

// Catalog is the product lookup the cart needs. Stock checks re-read the
// product on every mutation; no stale snapshot is ever consulted.
type Catalog interface {
	FindByID(ctx context.Context, productID string) (*models.Product, error)
}

// Store persists carts.
type Store interface {
	FindByIdentity(ctx context.Context, id models.Identity) (*models.Cart, error)
	Save(ctx context.Context, cart *models.Cart) error
	Delete(ctx context.Context, cartID string) error
}

type Service struct {
	products Catalog
	carts    Store
}

func NewService(products Catalog, carts Store) *Service {
	return &Service{products: products, carts: carts}
}

func lineMatches(item models.CartItem, productID, size, color string) bool {
	return item.ProductID == productID &&
		item.SelectedSize == size &&
		item.SelectedColor == color
}

// Get returns the identity's cart, pruning lines whose product has been
// deleted (persisted silently, like the storefront always did).
func (s *Service) Get(ctx context.Context, id models.Identity) (*models.Cart, error) {
	if id.IsZero() {
		return nil, ErrNoIdentity
	}
	cart, err := s.carts.FindByIdentity(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return &models.Cart{Items: []models.CartItem{}}, nil
	}
	if err != nil {
		return nil, err
	}

	valid := cart.Items[:0]
	for _, item := range cart.Items {
		if _, err := s.products.FindByID(ctx, item.ProductID); errors.Is(err, store.ErrNotFound) {
			continue
		}
		valid = append(valid, item)
	}
	if len(valid) != len(cart.Items) {
		cart.Items = valid
		if err := s.carts.Save(ctx, cart); err != nil {
			log.Printf("cart prune save error: %v", err)
		}
	}
	return cart, nil
}

// AddItem upserts a line, snapshotting the product's current prices. The
// combined quantity may never exceed the stock read in this call.
func (s *Service) AddItem(ctx context.Context, id models.Identity, productID string, qty int, size, color string) (*models.Cart, error) {
	if id.IsZero() {
		return nil, ErrNoIdentity
	}
	if qty < 1 {
		qty = 1
	}

	product, err := s.products.FindByID(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}

	cart, err := s.carts.FindByIdentity(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		cart = &models.Cart{
			CartID:    utils.GetUUID(),
			UserID:    id.UserID,
			SessionID: id.SessionID,
			Items:     []models.CartItem{},
			CreatedAt: time.Now(),
		}
	} else if err != nil {
		return nil, err
	}

	idx := -1
	for i, item := range cart.Items {
		if lineMatches(item, productID, size, color) {
			idx = i
			break
		}
	}

	if idx >= 0 {
		newQty := cart.Items[idx].Quantity + qty
		if newQty > product.Stock {
			return nil, fmt.Errorf("%w: only %d units of %s available", ErrOutOfStock, product.Stock, product.Name)
		}
		cart.Items[idx].Quantity = newQty
	} else {
		if qty > product.Stock {
			return nil, fmt.Errorf("%w: only %d units of %s available", ErrOutOfStock, product.Stock, product.Name)
		}
		cart.Items = append(cart.Items, models.CartItem{
			ProductID:     productID,
			Quantity:      qty,
			SelectedSize:  size,
			SelectedColor: color,
			Price:         product.Price,
			DiscountPrice: product.EffectivePrice(),
		})
	}

	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// ChangeQuantity applies delta to an existing line. A result of zero or
// less removes the line; exceeding current stock leaves the cart untouched.
func (s *Service) ChangeQuantity(ctx context.Context, id models.Identity, productID, size, color string, delta int) (*models.Cart, error) {
	if id.IsZero() {
		return nil, ErrNoIdentity
	}
	cart, err := s.carts.FindByIdentity(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, item := range cart.Items {
		if lineMatches(item, productID, size, color) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, ErrItemNotFound
	}

	newQty := cart.Items[idx].Quantity + delta
	if newQty <= 0 {
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	} else {
		if delta > 0 {
			product, err := s.products.FindByID(ctx, productID)
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrProductNotFound
			}
			if err != nil {
				return nil, err
			}
			if newQty > product.Stock {
				return nil, fmt.Errorf("%w: only %d units of %s available", ErrOutOfStock, product.Stock, product.Name)
			}
		}
		cart.Items[idx].Quantity = newQty
	}

	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// RemoveItem drops a line entirely.
func (s *Service) RemoveItem(ctx context.Context, id models.Identity, productID, size, color string) (*models.Cart, error) {
	if id.IsZero() {
		return nil, ErrNoIdentity
	}
	cart, err := s.carts.FindByIdentity(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, err
	}

	kept := cart.Items[:0]
	removed := false
	for _, item := range cart.Items {
		if lineMatches(item, productID, size, color) {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	if !removed {
		return nil, ErrItemNotFound
	}
	cart.Items = kept

	if err := s.carts.Save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// Clear empties the cart but keeps the document.
func (s *Service) Clear(ctx context.Context, id models.Identity) error {
	if id.IsZero() {
		return ErrNoIdentity
	}
	cart, err := s.carts.FindByIdentity(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	cart.Items = []models.CartItem{}
	return s.carts.Save(ctx, cart)
}

// MergeGuestIntoUser folds a guest cart into the user's cart at login.
// Quantities are capped at current stock (silently truncated, never an
// error), lines whose product vanished are skipped, and the guest cart is
// deleted afterward. Idempotent: with no guest cart left it is a no-op.
func (s *Service) MergeGuestIntoUser(ctx context.Context, sessionID, userID string) error {
	if sessionID == "" || userID == "" {
		return nil
	}

	guest, err := s.carts.FindByIdentity(ctx, models.Identity{SessionID: sessionID})
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(guest.Items) == 0 {
		return s.carts.Delete(ctx, guest.CartID)
	}

	user, err := s.carts.FindByIdentity(ctx, models.Identity{UserID: userID})
	if errors.Is(err, store.ErrNotFound) {
		// No user cart yet: the guest cart simply becomes it.
		guest.UserID = userID
		guest.SessionID = ""
		return s.carts.Save(ctx, guest)
	}
	if err != nil {
		return err
	}

	for _, guestItem := range guest.Items {
		product, err := s.products.FindByID(ctx, guestItem.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}

		idx := -1
		for i, item := range user.Items {
			if lineMatches(item, guestItem.ProductID, guestItem.SelectedSize, guestItem.SelectedColor) {
				idx = i
				break
			}
		}
		if idx >= 0 {
			user.Items[idx].Quantity = min(user.Items[idx].Quantity+guestItem.Quantity, product.Stock)
		} else {
			guestItem.Quantity = min(guestItem.Quantity, product.Stock)
			if guestItem.Quantity > 0 {
				user.Items = append(user.Items, guestItem)
			}
		}
	}

	if err := s.carts.Save(ctx, user); err != nil {
		return err
	}
	return s.carts.Delete(ctx, guest.CartID)
}
