package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"vastra/inventory"
	"vastra/models"
	"vastra/notify"
	"vastra/razorpay"
	"vastra/store"
)

// Both real notifiers must plug into the lifecycle machine.
var (
	_ Notifier = notify.LogNotifier{}
	_ Notifier = (*notify.RedisNotifier)(nil)
)

// ---- fakes ----

type fakeCatalog struct {
	products map[string]*models.Product
}

func (f *fakeCatalog) FindByID(_ context.Context, productID string) (*models.Product, error) {
	p, ok := f.products[productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeCatalog) DecrementStock(_ context.Context, productID string, qty int, buyerID string) error {
	p, ok := f.products[productID]
	if !ok {
		return store.ErrNotFound
	}
	if p.Stock < qty {
		return store.ErrInsufficientStock
	}
	p.Stock -= qty
	p.Customers = append(p.Customers, buyerID)
	return nil
}

func (f *fakeCatalog) IncrementStock(_ context.Context, productID string, qty int) error {
	p, ok := f.products[productID]
	if !ok {
		return store.ErrNotFound
	}
	p.Stock += qty
	return nil
}

type fakeCarts struct {
	carts map[string]*models.Cart // keyed by userID
}

func (f *fakeCarts) FindByIdentity(_ context.Context, id models.Identity) (*models.Cart, error) {
	c, ok := f.carts[id.UserID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeCarts) Delete(_ context.Context, cartID string) error {
	for key, c := range f.carts {
		if c.CartID == cartID {
			delete(f.carts, key)
			return nil
		}
	}
	return store.ErrNotFound
}

type fakeOrders struct {
	orders map[string]*models.Order
}

func newFakeOrders() *fakeOrders { return &fakeOrders{orders: map[string]*models.Order{}} }

func (f *fakeOrders) Insert(_ context.Context, order *models.Order) error {
	cp := *order
	f.orders[order.OrderID] = &cp
	return nil
}

func (f *fakeOrders) FindByID(_ context.Context, orderID string) (*models.Order, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) FindByCustomer(_ context.Context, customerID string) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.orders {
		if o.CustomerID == customerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrders) FindAll(_ context.Context) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (f *fakeOrders) UpdateStatusIf(_ context.Context, orderID string, from []models.OrderStatus, to models.OrderStatus) (bool, error) {
	o, ok := f.orders[orderID]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if o.OrderStatus == s {
			o.OrderStatus = to
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeOrders) MarkCancelled(_ context.Context, orderID, reason string, at time.Time) (bool, error) {
	o, ok := f.orders[orderID]
	if !ok || o.OrderStatus == models.StatusCancelled {
		return false, nil
	}
	o.OrderStatus = models.StatusCancelled
	o.CancellationReason = reason
	o.CancelledAt = &at
	return true, nil
}

func (f *fakeOrders) SetPaymentRef(_ context.Context, orderID, paymentID string) error {
	if o, ok := f.orders[orderID]; ok {
		o.PaymentID = paymentID
	}
	return nil
}

func (f *fakeOrders) SetInvoiceNumber(_ context.Context, orderID, invoiceNumber string) error {
	if o, ok := f.orders[orderID]; ok {
		o.InvoiceNumber = invoiceNumber
	}
	return nil
}

func (f *fakeOrders) DeleteIfStatus(_ context.Context, orderID string, status models.OrderStatus) (bool, error) {
	o, ok := f.orders[orderID]
	if !ok || o.OrderStatus != status {
		return false, nil
	}
	delete(f.orders, orderID)
	return true, nil
}

func (f *fakeOrders) FindByStatuses(_ context.Context, statuses []models.OrderStatus) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.orders {
		for _, s := range statuses {
			if o.OrderStatus == s {
				out = append(out, *o)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeOrders) FindAwaitingOlderThan(_ context.Context, cutoff time.Time) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.orders {
		if o.OrderStatus == models.StatusAwaitingPayment && o.OrderDate.Before(cutoff) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrders) RevenueStats(_ context.Context) (int, float64, error) {
	units, revenue := 0, 0.0
	for _, o := range f.orders {
		if o.OrderStatus == models.StatusCancelled {
			continue
		}
		for _, item := range o.Items {
			units += item.Quantity
		}
		revenue += o.DiscountedTotalAmount
	}
	return units, revenue, nil
}

type fakePayments struct {
	byGatewayOrder map[string]*models.Payment
}

func newFakePayments() *fakePayments {
	return &fakePayments{byGatewayOrder: map[string]*models.Payment{}}
}

func (f *fakePayments) Insert(_ context.Context, p *models.Payment) error {
	cp := *p
	f.byGatewayOrder[p.RazorpayOrderID] = &cp
	return nil
}

func (f *fakePayments) FindByGatewayOrderID(_ context.Context, gatewayOrderID string) (*models.Payment, error) {
	p, ok := f.byGatewayOrder[gatewayOrderID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePayments) FindByOrderID(_ context.Context, orderID string) (*models.Payment, error) {
	for _, p := range f.byGatewayOrder {
		if p.OrderID == orderID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakePayments) CaptureIf(_ context.Context, gatewayOrderID, gatewayPaymentID, method string) (bool, *models.Payment, error) {
	p, ok := f.byGatewayOrder[gatewayOrderID]
	if !ok {
		return false, nil, store.ErrNotFound
	}
	if p.Status.Terminal() {
		cp := *p
		return false, &cp, nil
	}
	p.Status = models.PaymentCaptured
	p.PaymentID = gatewayPaymentID
	p.Method = method
	cp := *p
	return true, &cp, nil
}

func (f *fakePayments) MarkAuthorized(_ context.Context, gatewayOrderID, gatewayPaymentID string) (bool, *models.Payment, error) {
	p, ok := f.byGatewayOrder[gatewayOrderID]
	if !ok {
		return false, nil, store.ErrNotFound
	}
	if p.Status != models.PaymentCreated {
		cp := *p
		return false, &cp, nil
	}
	p.Status = models.PaymentAuthorized
	p.PaymentID = gatewayPaymentID
	cp := *p
	return true, &cp, nil
}

func (f *fakePayments) MarkFailed(_ context.Context, gatewayOrderID, gatewayPaymentID string) (bool, *models.Payment, error) {
	p, ok := f.byGatewayOrder[gatewayOrderID]
	if !ok {
		return false, nil, store.ErrNotFound
	}
	if p.Status.Terminal() {
		cp := *p
		return false, &cp, nil
	}
	p.Status = models.PaymentFailed
	p.PaymentID = gatewayPaymentID
	cp := *p
	return true, &cp, nil
}

func (f *fakePayments) SetRefund(_ context.Context, gatewayPaymentID, refundID, refundStatus string, at time.Time) (*models.Payment, error) {
	for _, p := range f.byGatewayOrder {
		if p.PaymentID == gatewayPaymentID {
			p.RefundID = refundID
			p.RefundStatus = refundStatus
			p.RefundedAt = &at
			p.Status = models.PaymentRefunded
			cp := *p
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

type fakeGateway struct {
	createCalls  int
	refundCalls  int
	createFails  bool
	fetchStatus  string
	validSig     string
	lastRefundID string
}

func (f *fakeGateway) CreateOrder(_ context.Context, amount float64, currency, receipt string, _ map[string]string) (razorpay.GatewayOrder, error) {
	f.createCalls++
	if f.createFails {
		return razorpay.GatewayOrder{}, razorpay.ErrGateway
	}
	return razorpay.GatewayOrder{
		OrderID:  "rzp_order_" + receipt,
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}, nil
}

func (f *fakeGateway) FetchAndCapture(_ context.Context, paymentID string) (razorpay.CapturedPayment, error) {
	status := f.fetchStatus
	if status == "" {
		status = "captured"
	}
	return razorpay.CapturedPayment{PaymentID: paymentID, Status: status, Method: "card"}, nil
}

func (f *fakeGateway) Refund(_ context.Context, paymentID string, amount float64, _ string) (razorpay.RefundResult, error) {
	f.refundCalls++
	f.lastRefundID = "rfnd_" + paymentID
	return razorpay.RefundResult{RefundID: f.lastRefundID, PaymentID: paymentID, Amount: amount, Status: "processed"}, nil
}

func (f *fakeGateway) VerifyPaymentSignature(_, _, signature string) bool {
	return signature == f.validSig
}

type fakeInvoices struct {
	generated map[string]string
	calls     int
}

func newFakeInvoices() *fakeInvoices { return &fakeInvoices{generated: map[string]string{}} }

func (f *fakeInvoices) Generate(_ context.Context, order *models.Order) (string, error) {
	if num, ok := f.generated[order.OrderID]; ok {
		return num, nil
	}
	f.calls++
	num := "INV-" + order.OrderID
	f.generated[order.OrderID] = num
	return num, nil
}

type fakeNotifier struct {
	confirmations int
	failures      int
	cancellations int
}

func (f *fakeNotifier) OrderConfirmation(context.Context, *models.Order)    { f.confirmations++ }
func (f *fakeNotifier) OrderFailure(context.Context, *models.Order, string) { f.failures++ }
func (f *fakeNotifier) OrderCancellation(context.Context, *models.Order)    { f.cancellations++ }

type fakeFeed struct {
	updates []models.StatusUpdate
}

func (f *fakeFeed) BroadcastStatus(u models.StatusUpdate) { f.updates = append(f.updates, u) }

// ---- fixture ----

type fixture struct {
	svc      *Service
	catalog  *fakeCatalog
	carts    *fakeCarts
	orders   *fakeOrders
	payments *fakePayments
	gateway  *fakeGateway
	invoices *fakeInvoices
	notifier *fakeNotifier
	feed     *fakeFeed
}

func newFixture() *fixture {
	catalog := &fakeCatalog{products: map[string]*models.Product{
		"p1": {
			ProductID:     "p1",
			OwnerID:       "owner1",
			Name:          "Kurta",
			Price:         100,
			Discount:      10,
			DiscountPrice: 90,
			Stock:         5,
		},
	}}
	carts := &fakeCarts{carts: map[string]*models.Cart{}}
	orders := newFakeOrders()
	payments := newFakePayments()
	gateway := &fakeGateway{validSig: "valid-signature"}
	invoices := newFakeInvoices()
	notifier := &fakeNotifier{}
	feed := &fakeFeed{}

	svc := NewService(Deps{
		Carts:    carts,
		Products: catalog,
		Orders:   orders,
		Payments: payments,
		Ledger:   inventory.NewLedger(catalog),
		Gateway:  gateway,
		Invoices: invoices,
		Notifier: notifier,
		Feed:     feed,
	})
	return &fixture{svc, catalog, carts, orders, payments, gateway, invoices, notifier, feed}
}

func (f *fixture) seedCart(userID string, qty int) {
	f.carts.carts[userID] = &models.Cart{
		CartID: "cart-" + userID,
		UserID: userID,
		Items: []models.CartItem{{
			ProductID:     "p1",
			Quantity:      qty,
			SelectedSize:  "M",
			Price:         100,
			DiscountPrice: 90,
		}},
	}
}

// ---- tests ----

func TestPlaceOrderCOD(t *testing.T) {
	f := newFixture()
	f.seedCart("u1", 2)

	order, intent, err := f.svc.PlaceOrder(context.Background(), "u1", models.PaymentModeCOD, 50)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if intent != nil {
		t.Fatal("COD order should not carry a payment intent")
	}
	if order.OrderStatus != models.StatusPending {
		t.Fatalf("status = %s, want Pending", order.OrderStatus)
	}
	if order.TotalAmount != 200 {
		t.Fatalf("total = %.2f, want 200", order.TotalAmount)
	}
	if order.DiscountedTotalAmount != 230 {
		t.Fatalf("discounted total = %.2f, want 230 (2x90 + 50 fee)", order.DiscountedTotalAmount)
	}
	if got := f.catalog.products["p1"].Stock; got != 3 {
		t.Fatalf("stock = %d, want 3 (committed at placement)", got)
	}
	if f.invoices.calls != 1 {
		t.Fatalf("invoice generations = %d, want 1", f.invoices.calls)
	}
	if _, ok := f.carts.carts["u1"]; ok {
		t.Fatal("cart should be deleted after checkout")
	}
	if f.notifier.confirmations != 1 {
		t.Fatalf("confirmations = %d, want 1", f.notifier.confirmations)
	}
}

func TestPlaceOrderOnlineDefersStockCommit(t *testing.T) {
	f := newFixture()
	f.seedCart("u1", 2)

	order, intent, err := f.svc.PlaceOrder(context.Background(), "u1", models.PaymentModeOnline, 0)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if intent == nil || intent.RazorpayOrderID == "" {
		t.Fatal("online order must return a payment intent")
	}
	if order.OrderStatus != models.StatusAwaitingPayment {
		t.Fatalf("status = %s, want Awaiting Payment", order.OrderStatus)
	}
	if got := f.catalog.products["p1"].Stock; got != 5 {
		t.Fatalf("stock = %d, want 5 (not committed before capture)", got)
	}
	if f.invoices.calls != 0 {
		t.Fatal("no invoice before capture")
	}

	_, _, err = f.svc.VerifyPayment(context.Background(), intent.RazorpayOrderID, "pay_1", "valid-signature")
	if err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}
	got, _ := f.orders.FindByID(context.Background(), order.OrderID)
	if got.OrderStatus != models.StatusConfirmed {
		t.Fatalf("status = %s, want Confirmed", got.OrderStatus)
	}
	if s := f.catalog.products["p1"].Stock; s != 3 {
		t.Fatalf("stock = %d, want 3 after capture", s)
	}
	if f.invoices.calls != 1 {
		t.Fatalf("invoice generations = %d, want 1", f.invoices.calls)
	}
}

func TestVerifyPaymentBadSignature(t *testing.T) {
	f := newFixture()
	f.seedCart("u1", 1)

	_, intent, err := f.svc.PlaceOrder(context.Background(), "u1", models.PaymentModeOnline, 0)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	_, _, err = f.svc.VerifyPayment(context.Background(), intent.RazorpayOrderID, "pay_1", "forged")
	if !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("err = %v, want ErrInvalidSignature", err)
	}
	if got := f.catalog.products["p1"].Stock; got != 5 {
		t.Fatalf("stock = %d, want 5 (untouched)", got)
	}
	p, _ := f.payments.FindByGatewayOrderID(context.Background(), intent.RazorpayOrderID)
	if p.Status != models.PaymentCreated {
		t.Fatalf("payment status = %s, want created", p.Status)
	}
}

func TestDuplicateConfirmationIsNoOp(t *testing.T) {
	f := newFixture()
	f.seedCart("u1", 2)

	order, intent, err := f.svc.PlaceOrder(context.Background(), "u1", models.PaymentModeOnline, 0)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	// Client callback and webhook both confirm the same payment.
	if _, _, err := f.svc.VerifyPayment(context.Background(), intent.RazorpayOrderID, "pay_1", "valid-signature"); err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}
	if err := f.svc.HandlePaymentCaptured(context.Background(), intent.RazorpayOrderID, "pay_1", "card"); err != nil {
		t.Fatalf("HandlePaymentCaptured: %v", err)
	}

	if got := f.catalog.products["p1"].Stock; got != 3 {
		t.Fatalf("stock = %d, want 3 (decremented exactly once)", got)
	}
	if f.invoices.calls != 1 {
		t.Fatalf("invoice generations = %d, want 1", f.invoices.calls)
	}
	got, _ := f.orders.FindByID(context.Background(), order.OrderID)
	if got.OrderStatus != models.StatusConfirmed {
		t.Fatalf("status = %s, want Confirmed", got.OrderStatus)
	}
}

func TestPlaceOrderOutOfStock(t *testing.T) {
	f := newFixture()
	f.seedCart("u1", 9)

	_, _, err := f.svc.PlaceOrder(context.Background(), "u1", models.PaymentModeCOD, 0)
	if !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("err = %v, want ErrOutOfStock", err)
	}
	all, _ := f.orders.FindAll(context.Background())
	if len(all) != 0 {
		t.Fatalf("orders created = %d, want 0", len(all))
	}
	if got := f.catalog.products["p1"].Stock; got != 5 {
		t.Fatalf("stock = %d, want 5", got)
	}
}

func TestPaymentInitiationFailureKeepsOrderAndCart(t *testing.T) {
	f := newFixture()
	f.seedCart("u1", 1)
	f.gateway.createFails = true

	order, _, err := f.svc.PlaceOrder(context.Background(), "u1", models.PaymentModeOnline, 0)
	if !errors.Is(err, ErrPaymentInitiation) {
		t.Fatalf("err = %v, want ErrPaymentInitiation", err)
	}
	got, ferr := f.orders.FindByID(context.Background(), order.OrderID)
	if ferr != nil {
		t.Fatal("order must survive a gateway failure")
	}
	if got.OrderStatus != models.StatusAwaitingPayment {
		t.Fatalf("status = %s, want Awaiting Payment", got.OrderStatus)
	}
	if _, ok := f.carts.carts["u1"]; !ok {
		t.Fatal("cart must survive for a retry")
	}
}

func TestCancelShippedRefused(t *testing.T) {
	f := newFixture()
	f.seedCart("u1", 1)
	order, _, _ := f.svc.PlaceOrder(context.Background(), "u1", models.PaymentModeCOD, 0)
	f.orders.orders[order.OrderID].OrderStatus = models.StatusShipped

	_, _, err := f.svc.CancelOrder(context.Background(), "u1", order.OrderID, "changed my mind")
	if !errors.Is(err, ErrNotCancellable) {
		t.Fatalf("err = %v, want ErrNotCancellable", err)
	}
	got, _ := f.orders.FindByID(context.Background(), order.OrderID)
	if got.OrderStatus != models.StatusShipped {
		t.Fatalf("status = %s, want Shipped (unchanged)", got.OrderStatus)
	}
}

func TestCancelCODRestoresStock(t *testing.T) {
	f := newFixture()
	f.seedCart("u1", 2)
	order, _, _ := f.svc.PlaceOrder(context.Background(), "u1", models.PaymentModeCOD, 0)
	if got := f.catalog.products["p1"].Stock; got != 3 {
		t.Fatalf("stock = %d, want 3", got)
	}

	cancelled, _, err := f.svc.CancelOrder(context.Background(), "u1", order.OrderID, "")
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if cancelled.OrderStatus != models.StatusCancelled {
		t.Fatalf("status = %s, want Cancelled", cancelled.OrderStatus)
	}
	if got := f.catalog.products["p1"].Stock; got != 5 {
		t.Fatalf("stock = %d, want 5 (restored)", got)
	}
	if f.gateway.refundCalls != 0 {
		t.Fatal("COD cancellation must not hit the gateway")
	}
}

func TestCancelAwaitingOnlineNoRestoreNoRefund(t *testing.T) {
	f := newFixture()
	f.seedCart("u1", 2)
	order, _, _ := f.svc.PlaceOrder(context.Background(), "u1", models.PaymentModeOnline, 0)

	_, refund, err := f.svc.CancelOrder(context.Background(), "u1", order.OrderID, "")
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if refund != nil {
		t.Fatal("uncaptured payment must not be refunded")
	}
	if got := f.catalog.products["p1"].Stock; got != 5 {
		t.Fatalf("stock = %d, want 5 (never committed)", got)
	}
	if f.gateway.refundCalls != 0 {
		t.Fatal("no refund call for an uncaptured payment")
	}
}

func TestCancelCapturedOnlineRefundsAndRestores(t *testing.T) {
	f := newFixture()
	f.seedCart("u1", 2)
	order, intent, _ := f.svc.PlaceOrder(context.Background(), "u1", models.PaymentModeOnline, 10)
	if _, _, err := f.svc.VerifyPayment(context.Background(), intent.RazorpayOrderID, "pay_1", "valid-signature"); err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}

	_, refund, err := f.svc.CancelOrder(context.Background(), "u1", order.OrderID, "size issue")
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if refund == nil {
		t.Fatal("captured payment must be refunded")
	}
	if refund.Amount != order.DiscountedTotalAmount {
		t.Fatalf("refund amount = %.2f, want %.2f", refund.Amount, order.DiscountedTotalAmount)
	}
	if got := f.catalog.products["p1"].Stock; got != 5 {
		t.Fatalf("stock = %d, want 5 (restored after captured cancel)", got)
	}
	p, _ := f.payments.FindByOrderID(context.Background(), order.OrderID)
	if p.Status != models.PaymentRefunded {
		t.Fatalf("payment status = %s, want refunded", p.Status)
	}
}

func TestCancelByStrangerForbidden(t *testing.T) {
	f := newFixture()
	f.seedCart("u1", 1)
	order, _, _ := f.svc.PlaceOrder(context.Background(), "u1", models.PaymentModeCOD, 0)

	_, _, err := f.svc.CancelOrder(context.Background(), "u2", order.OrderID, "")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestSnapshotImmuneToPriceChange(t *testing.T) {
	f := newFixture()
	f.seedCart("u1", 1)
	order, _, _ := f.svc.PlaceOrder(context.Background(), "u1", models.PaymentModeCOD, 0)

	f.catalog.products["p1"].Price = 999
	f.catalog.products["p1"].DiscountPrice = 900

	got, _ := f.orders.FindByID(context.Background(), order.OrderID)
	if got.TotalAmount != 100 || got.DiscountedTotalAmount != 90 {
		t.Fatalf("totals = %.2f/%.2f, want 100/90 (snapshot)", got.TotalAmount, got.DiscountedTotalAmount)
	}
	if got.Items[0].Price != 100 {
		t.Fatalf("item price = %.2f, want 100", got.Items[0].Price)
	}
}

func TestAdvanceOrders(t *testing.T) {
	f := newFixture()
	f.seedCart("u1", 1)
	order, _, _ := f.svc.PlaceOrder(context.Background(), "u1", models.PaymentModeCOD, 0)

	steps := []models.OrderStatus{
		models.StatusProcessing,
		models.StatusShipped,
		models.StatusOutForDelivery,
		models.StatusDelivered,
	}
	for _, want := range steps {
		moved, err := f.svc.AdvanceOrders(context.Background())
		if err != nil {
			t.Fatalf("AdvanceOrders: %v", err)
		}
		if moved != 1 {
			t.Fatalf("moved = %d, want 1", moved)
		}
		got, _ := f.orders.FindByID(context.Background(), order.OrderID)
		if got.OrderStatus != want {
			t.Fatalf("status = %s, want %s", got.OrderStatus, want)
		}
	}

	// Delivered is terminal.
	moved, _ := f.svc.AdvanceOrders(context.Background())
	if moved != 0 {
		t.Fatalf("moved = %d, want 0 past Delivered", moved)
	}
}

func TestSweepPurgesStaleAwaitingOnly(t *testing.T) {
	f := newFixture()
	f.seedCart("u1", 1)
	stale, intent, _ := f.svc.PlaceOrder(context.Background(), "u1", models.PaymentModeOnline, 0)
	f.orders.orders[stale.OrderID].OrderDate = time.Now().Add(-time.Hour)

	f.seedCart("u2", 1)
	fresh, _, _ := f.svc.PlaceOrder(context.Background(), "u2", models.PaymentModeOnline, 0)

	purged, err := f.svc.SweepAbandoned(context.Background(), 10*time.Minute)
	if err != nil {
		t.Fatalf("SweepAbandoned: %v", err)
	}
	if purged != 1 {
		t.Fatalf("purged = %d, want 1", purged)
	}
	if _, err := f.orders.FindByID(context.Background(), stale.OrderID); !errors.Is(err, store.ErrNotFound) {
		t.Fatal("stale order should be purged")
	}
	if _, err := f.orders.FindByID(context.Background(), fresh.OrderID); err != nil {
		t.Fatal("fresh order should survive the sweep")
	}
	p, _ := f.payments.FindByGatewayOrderID(context.Background(), intent.RazorpayOrderID)
	if p.Status != models.PaymentFailed {
		t.Fatalf("payment status = %s, want failed after purge", p.Status)
	}
}

func TestWebhookPaymentFailed(t *testing.T) {
	f := newFixture()
	f.seedCart("u1", 1)
	order, intent, _ := f.svc.PlaceOrder(context.Background(), "u1", models.PaymentModeOnline, 0)

	if err := f.svc.HandlePaymentFailed(context.Background(), intent.RazorpayOrderID, "pay_1", "card declined"); err != nil {
		t.Fatalf("HandlePaymentFailed: %v", err)
	}
	got, _ := f.orders.FindByID(context.Background(), order.OrderID)
	if got.OrderStatus != models.StatusPaymentFailed {
		t.Fatalf("status = %s, want Payment Failed", got.OrderStatus)
	}
	if f.notifier.failures != 1 {
		t.Fatalf("failure notifications = %d, want 1", f.notifier.failures)
	}

	// A capture arriving after the failure must not resurrect the payment.
	_ = f.svc.HandlePaymentCaptured(context.Background(), intent.RazorpayOrderID, "pay_1", "card")
	if got := f.catalog.products["p1"].Stock; got != 5 {
		t.Fatalf("stock = %d, want 5 (failed payment never commits)", got)
	}
}

func TestRefundWebhookCancelsOrder(t *testing.T) {
	f := newFixture()
	f.seedCart("u1", 2)
	order, intent, _ := f.svc.PlaceOrder(context.Background(), "u1", models.PaymentModeOnline, 0)
	if _, _, err := f.svc.VerifyPayment(context.Background(), intent.RazorpayOrderID, "pay_1", "valid-signature"); err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}

	if err := f.svc.HandleRefundProcessed(context.Background(), "pay_1", "rfnd_1", "processed"); err != nil {
		t.Fatalf("HandleRefundProcessed: %v", err)
	}
	got, _ := f.orders.FindByID(context.Background(), order.OrderID)
	if got.OrderStatus != models.StatusCancelled {
		t.Fatalf("status = %s, want Cancelled", got.OrderStatus)
	}
	p, _ := f.payments.FindByOrderID(context.Background(), order.OrderID)
	if p.Status != models.PaymentRefunded || p.RefundID != "rfnd_1" {
		t.Fatalf("payment = %s/%s, want refunded/rfnd_1", p.Status, p.RefundID)
	}
}

func TestCaptureAfterCancelDoesNotConfirm(t *testing.T) {
	f := newFixture()
	f.seedCart("u1", 2)
	order, intent, _ := f.svc.PlaceOrder(context.Background(), "u1", models.PaymentModeOnline, 0)

	if _, _, err := f.svc.CancelOrder(context.Background(), "u1", order.OrderID, "changed my mind"); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	// Cancellation diverts the pending payment, so the late capture loses.
	p, _ := f.payments.FindByGatewayOrderID(context.Background(), intent.RazorpayOrderID)
	if p.Status != models.PaymentFailed {
		t.Fatalf("payment status = %s, want failed after cancel", p.Status)
	}

	if err := f.svc.HandlePaymentCaptured(context.Background(), intent.RazorpayOrderID, "pay_1", "card"); err != nil {
		t.Fatalf("HandlePaymentCaptured: %v", err)
	}

	got, _ := f.orders.FindByID(context.Background(), order.OrderID)
	if got.OrderStatus != models.StatusCancelled {
		t.Fatalf("status = %s, want Cancelled", got.OrderStatus)
	}
	if s := f.catalog.products["p1"].Stock; s != 5 {
		t.Fatalf("stock = %d, want 5 (late capture of a cancelled order must not commit)", s)
	}
	if f.invoices.calls != 0 {
		t.Fatalf("invoice generations = %d, want 0 for a cancelled order", f.invoices.calls)
	}
}

func TestCaptureWinningRaceAgainstCancelIsRefunded(t *testing.T) {
	f := newFixture()
	f.seedCart("u1", 2)
	order, intent, _ := f.svc.PlaceOrder(context.Background(), "u1", models.PaymentModeOnline, 0)

	// Cancellation lands between the capture's payment CAS win and its
	// order transition: the order is already Cancelled but the payment
	// record is still live.
	if ok, _ := f.orders.MarkCancelled(context.Background(), order.OrderID, "changed my mind", time.Now()); !ok {
		t.Fatal("MarkCancelled did not apply")
	}

	if err := f.svc.HandlePaymentCaptured(context.Background(), intent.RazorpayOrderID, "pay_1", "card"); err != nil {
		t.Fatalf("HandlePaymentCaptured: %v", err)
	}

	got, _ := f.orders.FindByID(context.Background(), order.OrderID)
	if got.OrderStatus != models.StatusCancelled {
		t.Fatalf("status = %s, want Cancelled (capture must not resurrect the order)", got.OrderStatus)
	}
	if s := f.catalog.products["p1"].Stock; s != 5 {
		t.Fatalf("stock = %d, want 5", s)
	}
	if f.invoices.calls != 0 {
		t.Fatalf("invoice generations = %d, want 0", f.invoices.calls)
	}
	if f.gateway.refundCalls != 1 {
		t.Fatalf("refund calls = %d, want 1 (captured money must go back)", f.gateway.refundCalls)
	}
	p, _ := f.payments.FindByGatewayOrderID(context.Background(), intent.RazorpayOrderID)
	if p.Status != models.PaymentRefunded {
		t.Fatalf("payment status = %s, want refunded", p.Status)
	}
	if f.notifier.confirmations != 0 {
		t.Fatalf("confirmations = %d, want 0", f.notifier.confirmations)
	}
}

func TestDeleteOrderOnlyPending(t *testing.T) {
	f := newFixture()
	f.seedCart("u1", 1)
	order, _, _ := f.svc.PlaceOrder(context.Background(), "u1", models.PaymentModeCOD, 0)

	f.orders.orders[order.OrderID].OrderStatus = models.StatusShipped
	if err := f.svc.DeleteOrder(context.Background(), order.OrderID); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}

	f.orders.orders[order.OrderID].OrderStatus = models.StatusPending
	if err := f.svc.DeleteOrder(context.Background(), order.OrderID); err != nil {
		t.Fatalf("DeleteOrder: %v", err)
	}
	if err := f.svc.DeleteOrder(context.Background(), order.OrderID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
