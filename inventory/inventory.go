// Package inventory is the stock ledger. It owns no storage of its own; the
// atomicity of each movement lives in the store's guarded $inc operations,
// and the at-most-once contract for a given commit event is upheld by the
// payment-status CAS in the order lifecycle.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log"

	"vastra/models"
	"vastra/store"
)

var ErrInsufficientStock = errors.New("inventory: insufficient stock")

// Store is the slice of the product store the ledger uses.
type Store interface {
	DecrementStock(ctx context.Context, productID string, qty int, buyerID string) error
	IncrementStock(ctx context.Context, productID string, qty int) error
}

type Ledger struct {
	products Store
}

func NewLedger(products Store) *Ledger {
	return &Ledger{products: products}
}

// Commit decrements stock for every order line and records the buyer on
// each product. If any line cannot be satisfied the lines already taken are
// returned and the failure is reported naming the product.
func (l *Ledger) Commit(ctx context.Context, items []models.OrderItem, buyerID string) error {
	for i, item := range items {
		err := l.products.DecrementStock(ctx, item.ProductID, item.Quantity, buyerID)
		if err == nil {
			continue
		}
		if errors.Is(err, store.ErrNotFound) {
			// Product deleted between snapshot and commit; nothing to take.
			log.Printf("inventory commit: product %s missing, line skipped", item.ProductID)
			continue
		}
		l.release(ctx, items[:i])
		if errors.Is(err, store.ErrInsufficientStock) {
			return fmt.Errorf("%w: product %s", ErrInsufficientStock, item.ProductID)
		}
		return err
	}
	return nil
}

// Release returns stock for every line (cancellation path).
func (l *Ledger) Release(ctx context.Context, items []models.OrderItem) error {
	var firstErr error
	for _, item := range items {
		err := l.products.IncrementStock(ctx, item.ProductID, item.Quantity)
		if err != nil && !errors.Is(err, store.ErrNotFound) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (l *Ledger) release(ctx context.Context, items []models.OrderItem) {
	if err := l.Release(ctx, items); err != nil {
		log.Printf("inventory rollback error: %v", err)
	}
}
