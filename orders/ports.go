package orders

import (
	"context"
	"errors"
	"time"

	"vastra/models"
	"vastra/razorpay"
)

// Sentinel errors; handlers map them onto HTTP statuses.
var (
	ErrNotFound              = errors.New("orders: order not found")
	ErrForbidden             = errors.New("orders: unauthorized access")
	ErrInvalidState          = errors.New("orders: operation not allowed in current state")
	ErrEmptyCart             = errors.New("orders: cart is empty")
	ErrOutOfStock            = errors.New("orders: product out of stock")
	ErrInvalidPaymentMode    = errors.New("orders: invalid payment mode")
	ErrInvalidDeliveryFee    = errors.New("orders: invalid delivery fee")
	ErrInvalidSignature      = errors.New("orders: payment signature verification failed")
	ErrPaymentRecordNotFound = errors.New("orders: payment record not found")
	ErrPaymentInitiation     = errors.New("orders: payment initiation failed")
	ErrAlreadyCancelled      = errors.New("orders: order is already cancelled")
	ErrNotCancellable        = errors.New("orders: order can no longer be cancelled")
)

// CartSource is what checkout needs from the cart store.
type CartSource interface {
	FindByIdentity(ctx context.Context, id models.Identity) (*models.Cart, error)
	Delete(ctx context.Context, cartID string) error
}

// Catalog re-verifies products at checkout time.
type Catalog interface {
	FindByID(ctx context.Context, productID string) (*models.Product, error)
}

// OrderStore persists orders; all transitions are conditional.
type OrderStore interface {
	Insert(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, orderID string) (*models.Order, error)
	FindByCustomer(ctx context.Context, customerID string) ([]models.Order, error)
	FindAll(ctx context.Context) ([]models.Order, error)
	UpdateStatusIf(ctx context.Context, orderID string, from []models.OrderStatus, to models.OrderStatus) (bool, error)
	MarkCancelled(ctx context.Context, orderID, reason string, at time.Time) (bool, error)
	SetPaymentRef(ctx context.Context, orderID, paymentID string) error
	SetInvoiceNumber(ctx context.Context, orderID, invoiceNumber string) error
	DeleteIfStatus(ctx context.Context, orderID string, status models.OrderStatus) (bool, error)
	FindByStatuses(ctx context.Context, statuses []models.OrderStatus) ([]models.Order, error)
	FindAwaitingOlderThan(ctx context.Context, cutoff time.Time) ([]models.Order, error)
	RevenueStats(ctx context.Context) (int, float64, error)
}

// PaymentStore persists gateway payment records; CaptureIf/MarkFailed are
// the compare-and-swap operations both confirmation channels go through.
type PaymentStore interface {
	Insert(ctx context.Context, p *models.Payment) error
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error)
	FindByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	CaptureIf(ctx context.Context, gatewayOrderID, gatewayPaymentID, method string) (bool, *models.Payment, error)
	MarkAuthorized(ctx context.Context, gatewayOrderID, gatewayPaymentID string) (bool, *models.Payment, error)
	MarkFailed(ctx context.Context, gatewayOrderID, gatewayPaymentID string) (bool, *models.Payment, error)
	SetRefund(ctx context.Context, gatewayPaymentID, refundID, refundStatus string, at time.Time) (*models.Payment, error)
}

// Ledger commits and releases stock.
type Ledger interface {
	Commit(ctx context.Context, items []models.OrderItem, buyerID string) error
	Release(ctx context.Context, items []models.OrderItem) error
}

// Gateway is the external payment processor.
type Gateway interface {
	CreateOrder(ctx context.Context, amount float64, currency, receipt string, notes map[string]string) (razorpay.GatewayOrder, error)
	FetchAndCapture(ctx context.Context, paymentID string) (razorpay.CapturedPayment, error)
	Refund(ctx context.Context, paymentID string, amount float64, reason string) (razorpay.RefundResult, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
}

// InvoiceGenerator must be safe to invoke more than once per order; it
// returns the (single) invoice number either way.
type InvoiceGenerator interface {
	Generate(ctx context.Context, order *models.Order) (string, error)
}

// StatusFeed receives transitions for live dashboards, best-effort.
type StatusFeed interface {
	BroadcastStatus(update models.StatusUpdate)
}

// progression is the fixed shipping pipeline the scheduled advancement
// walks. Confirmed (online) orders join at Processing.
var progression = map[models.OrderStatus]models.OrderStatus{
	models.StatusPending:        models.StatusProcessing,
	models.StatusConfirmed:      models.StatusProcessing,
	models.StatusProcessing:     models.StatusShipped,
	models.StatusShipped:        models.StatusOutForDelivery,
	models.StatusOutForDelivery: models.StatusDelivered,
}

// NextStatus returns the next stop in the shipping pipeline, or "" when the
// status does not advance on a schedule.
func NextStatus(s models.OrderStatus) models.OrderStatus {
	return progression[s]
}
