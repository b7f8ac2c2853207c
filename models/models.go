package models

import "time"

// Identity is who a request acts as: an authenticated user (durable) or an
// anonymous session (cookie-bound). Exactly one of the two is set.
type Identity struct {
	UserID    string
	SessionID string
}

func (id Identity) IsZero() bool { return id.UserID == "" && id.SessionID == "" }

// Product is the catalog entry the cart and ledger operate on.
type Product struct {
	ProductID     string    `json:"productid" bson:"productid"`
	OwnerID       string    `json:"ownerId" bson:"ownerId"`
	Name          string    `json:"name" bson:"name"`
	Description   string    `json:"description,omitempty" bson:"description,omitempty"`
	Category      string    `json:"category,omitempty" bson:"category,omitempty"`
	Price         float64   `json:"price" bson:"price"`
	Discount      float64   `json:"discount" bson:"discount"` // percentage, 0 = none
	DiscountPrice float64   `json:"discountPrice" bson:"discountPrice"`
	Sizes         []string  `json:"sizes,omitempty" bson:"sizes,omitempty"`
	Colors        []string  `json:"colors,omitempty" bson:"colors,omitempty"`
	Stock         int       `json:"stock" bson:"stock"`
	Customers     []string  `json:"customers,omitempty" bson:"customers,omitempty"`
	CreatedAt     time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt" bson:"updatedAt"`
}

// EffectivePrice is what the buyer actually pays per unit.
func (p Product) EffectivePrice() float64 {
	if p.Discount == 0 {
		return p.Price
	}
	return p.DiscountPrice
}

// CartItem is one line of a cart. Price fields are snapshots taken when the
// line was added; at most one line exists per (product, size, color).
type CartItem struct {
	ProductID     string  `json:"productId" bson:"productId"`
	Quantity      int     `json:"quantity" bson:"quantity"`
	SelectedSize  string  `json:"selectedSize" bson:"selectedSize"`
	SelectedColor string  `json:"selectedColor" bson:"selectedColor"`
	Price         float64 `json:"price" bson:"price"`
	DiscountPrice float64 `json:"discountPrice" bson:"discountPrice"`
}

type Cart struct {
	CartID    string     `json:"cartId" bson:"cartId"`
	UserID    string     `json:"userId,omitempty" bson:"userId,omitempty"`
	SessionID string     `json:"sessionId,omitempty" bson:"sessionId,omitempty"`
	Items     []CartItem `json:"items" bson:"items"`
	CreatedAt time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// Order statuses. The strings are part of the client wire contract carried
// over from the storefront and must not change.
type OrderStatus string

const (
	StatusAwaitingPayment OrderStatus = "Awaiting Payment"
	StatusPending         OrderStatus = "Pending"
	StatusConfirmed       OrderStatus = "Confirmed"
	StatusProcessing      OrderStatus = "Processing"
	StatusShipped         OrderStatus = "Shipped"
	StatusOutForDelivery  OrderStatus = "Out For Delivery"
	StatusDelivered       OrderStatus = "Delivered"
	StatusCancelled       OrderStatus = "Cancelled"
	StatusPaymentFailed   OrderStatus = "Payment Failed"
)

// Terminal reports whether no further lifecycle transition may occur.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusPaymentFailed:
		return true
	}
	return false
}

// Payment modes accepted at checkout.
const (
	PaymentModeOnline = "Online"
	PaymentModeCOD    = "Cash on Delivery"
)

// OrderItem is an immutable snapshot taken at order creation; it is never
// re-derived from live product state.
type OrderItem struct {
	ProductID     string  `json:"productId" bson:"productId"`
	Name          string  `json:"name" bson:"name"`
	Quantity      int     `json:"quantity" bson:"quantity"`
	SelectedSize  string  `json:"selectedSize" bson:"selectedSize"`
	SelectedColor string  `json:"selectedColor" bson:"selectedColor"`
	Price         float64 `json:"price" bson:"price"`
	DiscountPrice float64 `json:"discountPrice" bson:"discountPrice"`
}

type Order struct {
	OrderID               string      `json:"orderId" bson:"orderId"`
	CustomerID            string      `json:"customerId" bson:"customerId"`
	OwnerID               string      `json:"ownerId,omitempty" bson:"ownerId,omitempty"`
	Items                 []OrderItem `json:"items" bson:"items"`
	TotalAmount           float64     `json:"totalAmount" bson:"totalAmount"`
	DiscountedTotalAmount float64     `json:"discountedTotalAmount" bson:"discountedTotalAmount"`
	DeliveryFee           float64     `json:"deliveryFee" bson:"deliveryFee"`
	ModeOfPayment         string      `json:"modeOfPayment" bson:"modeOfPayment"`
	OrderStatus           OrderStatus `json:"orderStatus" bson:"orderStatus"`
	PaymentID             string      `json:"paymentId,omitempty" bson:"paymentId,omitempty"`
	InvoiceNumber         string      `json:"invoiceNumber,omitempty" bson:"invoiceNumber,omitempty"`
	CancelledAt           *time.Time  `json:"cancelledAt,omitempty" bson:"cancelledAt,omitempty"`
	CancellationReason    string      `json:"cancellationReason,omitempty" bson:"cancellationReason,omitempty"`
	OrderDate             time.Time   `json:"orderDate" bson:"orderDate"`
}

// Payment statuses. Forward-only: created → authorized → captured, or a
// divert to failed / refunded. Never regresses.
type PaymentStatus string

const (
	PaymentCreated    PaymentStatus = "created"
	PaymentAuthorized PaymentStatus = "authorized"
	PaymentCaptured   PaymentStatus = "captured"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentCaptured, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// Payment is the one-to-one record backing an online order.
type Payment struct {
	ID              string        `json:"id" bson:"_id,omitempty"`
	OrderID         string        `json:"orderId" bson:"orderId"`
	CustomerID      string        `json:"customerId" bson:"customerId"`
	Amount          float64       `json:"amount" bson:"amount"`
	Currency        string        `json:"currency" bson:"currency"`
	RazorpayOrderID string        `json:"razorpayOrderId" bson:"razorpay_order_id"`
	PaymentID       string        `json:"paymentId,omitempty" bson:"payment_id,omitempty"`
	Status          PaymentStatus `json:"status" bson:"status"`
	Method          string        `json:"method,omitempty" bson:"method,omitempty"`
	RefundID        string        `json:"refundId,omitempty" bson:"refund_id,omitempty"`
	RefundStatus    string        `json:"refundStatus,omitempty" bson:"refund_status,omitempty"`
	RefundedAt      *time.Time    `json:"refundedAt,omitempty" bson:"refunded_at,omitempty"`
	CreatedAt       time.Time     `json:"createdAt" bson:"created_at"`
	UpdatedAt       time.Time     `json:"updatedAt" bson:"updated_at"`
}

// InvoiceItem mirrors an order line on the generated document.
type InvoiceItem struct {
	ProductID string  `json:"productId" bson:"productId"`
	Name      string  `json:"name" bson:"name"`
	Quantity  int     `json:"quantity" bson:"quantity"`
	Price     float64 `json:"price" bson:"price"`
	Amount    float64 `json:"amount" bson:"amount"`
}

// Invoice is immutable once created; at most one exists per order.
type Invoice struct {
	InvoiceNumber string        `json:"invoiceNumber" bson:"invoiceNumber"`
	OrderID       string        `json:"orderId" bson:"orderId"`
	CustomerID    string        `json:"customerId" bson:"customerId"`
	InvoiceDate   time.Time     `json:"invoiceDate" bson:"invoiceDate"`
	Items         []InvoiceItem `json:"items" bson:"items"`
	Subtotal      float64       `json:"subtotal" bson:"subtotal"`
	DeliveryFee   float64       `json:"deliveryFee" bson:"deliveryFee"`
	TotalAmount   float64       `json:"totalAmount" bson:"totalAmount"`
	PaymentMethod string        `json:"paymentMethod" bson:"paymentMethod"`
	PaymentStatus string        `json:"paymentStatus" bson:"paymentStatus"`
	PDFContent    []byte        `json:"-" bson:"pdfContent"`
	ContentType   string        `json:"contentType" bson:"contentType"`
}

// StatusUpdate is what the live feed broadcasts when an order transitions.
type StatusUpdate struct {
	OrderID string      `json:"orderId"`
	OwnerID string      `json:"ownerId,omitempty"`
	Status  OrderStatus `json:"status"`
}
