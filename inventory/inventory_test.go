package inventory

import (
	"context"
	"errors"
	"testing"

	"vastra/models"
	"vastra/store"
)

type fakeStock struct {
	stock  map[string]int
	buyers map[string][]string
}

func newFakeStock(initial map[string]int) *fakeStock {
	return &fakeStock{stock: initial, buyers: map[string][]string{}}
}

func (f *fakeStock) DecrementStock(_ context.Context, productID string, qty int, buyerID string) error {
	current, ok := f.stock[productID]
	if !ok {
		return store.ErrNotFound
	}
	if current < qty {
		return store.ErrInsufficientStock
	}
	f.stock[productID] = current - qty
	f.buyers[productID] = append(f.buyers[productID], buyerID)
	return nil
}

func (f *fakeStock) IncrementStock(_ context.Context, productID string, qty int) error {
	if _, ok := f.stock[productID]; !ok {
		return store.ErrNotFound
	}
	f.stock[productID] += qty
	return nil
}

func items(lines ...models.OrderItem) []models.OrderItem { return lines }

func TestCommitTakesEveryLine(t *testing.T) {
	stock := newFakeStock(map[string]int{"p1": 5, "p2": 2})
	ledger := NewLedger(stock)

	err := ledger.Commit(context.Background(), items(
		models.OrderItem{ProductID: "p1", Quantity: 2},
		models.OrderItem{ProductID: "p2", Quantity: 1},
	), "u1")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if stock.stock["p1"] != 3 || stock.stock["p2"] != 1 {
		t.Fatalf("stock = %v, want p1:3 p2:1", stock.stock)
	}
	if len(stock.buyers["p1"]) != 1 || stock.buyers["p1"][0] != "u1" {
		t.Fatalf("buyers = %v, want u1 recorded", stock.buyers)
	}
}

func TestCommitRollsBackOnShortage(t *testing.T) {
	stock := newFakeStock(map[string]int{"p1": 5, "p2": 0})
	ledger := NewLedger(stock)

	err := ledger.Commit(context.Background(), items(
		models.OrderItem{ProductID: "p1", Quantity: 2},
		models.OrderItem{ProductID: "p2", Quantity: 1},
	), "u1")
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
	if stock.stock["p1"] != 5 {
		t.Fatalf("p1 stock = %d, want 5 (taken line returned)", stock.stock["p1"])
	}
}

func TestCommitSkipsDeletedProducts(t *testing.T) {
	stock := newFakeStock(map[string]int{"p1": 5})
	ledger := NewLedger(stock)

	err := ledger.Commit(context.Background(), items(
		models.OrderItem{ProductID: "gone", Quantity: 1},
		models.OrderItem{ProductID: "p1", Quantity: 1},
	), "u1")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if stock.stock["p1"] != 4 {
		t.Fatalf("p1 stock = %d, want 4", stock.stock["p1"])
	}
}

func TestReleaseReturnsStockAndIgnoresMissing(t *testing.T) {
	stock := newFakeStock(map[string]int{"p1": 3})
	ledger := NewLedger(stock)

	err := ledger.Release(context.Background(), items(
		models.OrderItem{ProductID: "p1", Quantity: 2},
		models.OrderItem{ProductID: "gone", Quantity: 1},
	))
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if stock.stock["p1"] != 5 {
		t.Fatalf("p1 stock = %d, want 5", stock.stock["p1"])
	}
}
