package invoice

import (
	"bytes"
	"context"
	"testing"

	"vastra/models"
	"vastra/store"
)

type fakeInvoiceStore struct {
	byOrder map[string]*models.Invoice
	inserts int
}

func newFakeInvoiceStore() *fakeInvoiceStore {
	return &fakeInvoiceStore{byOrder: map[string]*models.Invoice{}}
}

func (f *fakeInvoiceStore) Insert(_ context.Context, inv *models.Invoice) error {
	if _, ok := f.byOrder[inv.OrderID]; ok {
		return store.ErrDuplicate
	}
	f.inserts++
	cp := *inv
	f.byOrder[inv.OrderID] = &cp
	return nil
}

func (f *fakeInvoiceStore) FindByOrderID(_ context.Context, orderID string) (*models.Invoice, error) {
	inv, ok := f.byOrder[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (f *fakeInvoiceStore) ListByCustomer(_ context.Context, customerID string) ([]models.Invoice, error) {
	var out []models.Invoice
	for _, inv := range f.byOrder {
		if inv.CustomerID == customerID {
			cp := *inv
			cp.PDFContent = nil
			out = append(out, cp)
		}
	}
	return out, nil
}

func testOrder() *models.Order {
	return &models.Order{
		OrderID:    "ORD123",
		CustomerID: "u1",
		Items: []models.OrderItem{
			{ProductID: "p1", Name: "Kurta", Quantity: 2, Price: 100, DiscountPrice: 90},
			{ProductID: "p2", Name: "Saree", Quantity: 1, Price: 250, DiscountPrice: 0},
		},
		DeliveryFee:   50,
		ModeOfPayment: models.PaymentModeCOD,
	}
}

func TestGenerateProducesPDF(t *testing.T) {
	invoices := newFakeInvoiceStore()
	gen := NewGenerator(invoices, "qr-secret")

	number, err := gen.Generate(context.Background(), testOrder())
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if number == "" {
		t.Fatal("empty invoice number")
	}

	inv := invoices.byOrder["ORD123"]
	if inv == nil {
		t.Fatal("invoice not stored")
	}
	if len(inv.PDFContent) == 0 {
		t.Fatal("empty PDF")
	}
	if !bytes.HasPrefix(inv.PDFContent, []byte("%PDF")) {
		t.Fatalf("content does not look like a PDF: %q", inv.PDFContent[:8])
	}

	// 2x90 + 1x250 (no discount on p2, list price applies)
	if inv.Subtotal != 430 {
		t.Fatalf("subtotal = %.2f, want 430", inv.Subtotal)
	}
	if inv.TotalAmount != 480 {
		t.Fatalf("total = %.2f, want 480 with delivery fee", inv.TotalAmount)
	}
	if inv.PaymentStatus != "Pending" {
		t.Fatalf("payment status = %s, want Pending for COD", inv.PaymentStatus)
	}
}

func TestGenerateIsIdempotent(t *testing.T) {
	invoices := newFakeInvoiceStore()
	gen := NewGenerator(invoices, "qr-secret")
	order := testOrder()

	first, err := gen.Generate(context.Background(), order)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second, err := gen.Generate(context.Background(), order)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if first != second {
		t.Fatalf("numbers differ: %s vs %s", first, second)
	}
	if invoices.inserts != 1 {
		t.Fatalf("inserts = %d, want 1", invoices.inserts)
	}
}

func TestOnlinePaymentMarkedPaid(t *testing.T) {
	invoices := newFakeInvoiceStore()
	gen := NewGenerator(invoices, "qr-secret")

	order := testOrder()
	order.ModeOfPayment = models.PaymentModeOnline
	if _, err := gen.Generate(context.Background(), order); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got := invoices.byOrder["ORD123"].PaymentStatus; got != "Paid" {
		t.Fatalf("payment status = %s, want Paid", got)
	}
}
