// Package orders is the order lifecycle state machine: it turns a cart into
// an immutable order snapshot, drives status transitions, reconciles the
// two payment confirmation channels onto one idempotent capture path, and
// triggers the stock commit and invoice generation exactly once.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"vastra/models"
	"vastra/razorpay"
	"vastra/rdx"
	"vastra/store"
	"vastra/utils"
)

// Deps wires the collaborators in; everything is an interface so the
// machine is testable without mongo or the live gateway.
type Deps struct {
	Carts    CartSource
	Products Catalog
	Orders   OrderStore
	Payments PaymentStore
	Ledger   Ledger
	Gateway  Gateway
	Invoices InvoiceGenerator
	Notifier Notifier
	Feed     StatusFeed
}

// Notifier mirrors notify.Notifier; redeclared here so the package depends
// only on its ports.
type Notifier interface {
	OrderConfirmation(ctx context.Context, order *models.Order)
	OrderFailure(ctx context.Context, order *models.Order, reason string)
	OrderCancellation(ctx context.Context, order *models.Order)
}

type Service struct {
	deps Deps
}

func NewService(deps Deps) *Service {
	return &Service{deps: deps}
}

// PaymentIntent is what the storefront needs to open the gateway checkout.
type PaymentIntent struct {
	RazorpayOrderID string  `json:"razorpayOrderId"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	Status          string  `json:"status"`
}

// PlaceOrder converts the user's cart into an order snapshot.
//
// COD commits stock and generates the invoice immediately; Online creates a
// gateway payment intent and leaves the order awaiting confirmation. The
// stock check is authoritative for COD and advisory for Online (commit
// happens at capture). The cart is deleted once the order stands, except
// when payment initiation fails, so checkout stays retryable.
func (s *Service) PlaceOrder(ctx context.Context, userID, mode string, deliveryFee float64) (*models.Order, *PaymentIntent, error) {
	if mode != models.PaymentModeOnline && mode != models.PaymentModeCOD {
		return nil, nil, ErrInvalidPaymentMode
	}
	if deliveryFee < 0 {
		return nil, nil, ErrInvalidDeliveryFee
	}

	cart, err := s.deps.Carts.FindByIdentity(ctx, models.Identity{UserID: userID})
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrEmptyCart
	}
	if err != nil {
		return nil, nil, err
	}
	if len(cart.Items) == 0 {
		return nil, nil, ErrEmptyCart
	}

	var (
		items           []models.OrderItem
		totalAmount     float64
		discountedTotal float64
		ownerID         string
	)
	for _, line := range cart.Items {
		product, err := s.deps.Products.FindByID(ctx, line.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: product %s is no longer available", ErrOutOfStock, line.ProductID)
		}
		if err != nil {
			return nil, nil, err
		}
		if product.Stock < line.Quantity {
			return nil, nil, fmt.Errorf("%w: product %s", ErrOutOfStock, product.Name)
		}
		if ownerID == "" {
			ownerID = product.OwnerID
		}

		totalAmount += line.Price * float64(line.Quantity)
		discountedTotal += line.DiscountPrice * float64(line.Quantity)
		items = append(items, models.OrderItem{
			ProductID:     line.ProductID,
			Name:          product.Name,
			Quantity:      line.Quantity,
			SelectedSize:  line.SelectedSize,
			SelectedColor: line.SelectedColor,
			Price:         line.Price,
			DiscountPrice: line.DiscountPrice,
		})
	}
	discountedTotal += deliveryFee

	order := &models.Order{
		OrderID:               utils.NewOrderID(),
		CustomerID:            userID,
		OwnerID:               ownerID,
		Items:                 items,
		TotalAmount:           totalAmount,
		DiscountedTotalAmount: discountedTotal,
		DeliveryFee:           deliveryFee,
		ModeOfPayment:         mode,
		OrderDate:             time.Now(),
	}

	if mode == models.PaymentModeCOD {
		order.OrderStatus = models.StatusPending
		// Authoritative commit: the guarded decrement either takes every
		// line or leaves stock untouched, and no order exists on failure.
		if err := s.deps.Ledger.Commit(ctx, items, userID); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrOutOfStock, err)
		}
		if err := s.deps.Orders.Insert(ctx, order); err != nil {
			s.releaseQuiet(ctx, items)
			return nil, nil, err
		}
		s.generateInvoice(ctx, order)
		s.notifyConfirmed(ctx, order)
	} else {
		order.OrderStatus = models.StatusAwaitingPayment
		if err := s.deps.Orders.Insert(ctx, order); err != nil {
			return nil, nil, err
		}
	}

	var intent *PaymentIntent
	if mode == models.PaymentModeOnline {
		gatewayOrder, err := s.deps.Gateway.CreateOrder(ctx, discountedTotal, "INR", order.OrderID, map[string]string{
			"customerId":  userID,
			"description": "Payment for order #" + order.OrderID,
		})
		if err != nil {
			// Order stays Awaiting Payment: retryable or cancellable, never
			// silently deleted. The cart survives for a second attempt.
			return order, nil, fmt.Errorf("%w: %v", ErrPaymentInitiation, err)
		}

		payment := &models.Payment{
			ID:              utils.GetUUID(),
			OrderID:         order.OrderID,
			CustomerID:      userID,
			Amount:          discountedTotal,
			Currency:        gatewayOrder.Currency,
			RazorpayOrderID: gatewayOrder.OrderID,
			Status:          models.PaymentCreated,
			CreatedAt:       time.Now(),
		}
		if err := s.deps.Payments.Insert(ctx, payment); err != nil {
			return order, nil, fmt.Errorf("%w: %v", ErrPaymentInitiation, err)
		}
		if err := s.deps.Orders.SetPaymentRef(ctx, order.OrderID, payment.ID); err != nil {
			log.Printf("order %s: payment ref not recorded: %v", order.OrderID, err)
		}
		order.PaymentID = payment.ID
		intent = &PaymentIntent{
			RazorpayOrderID: gatewayOrder.OrderID,
			Amount:          gatewayOrder.Amount,
			Currency:        gatewayOrder.Currency,
			Status:          gatewayOrder.Status,
		}
	}

	if err := s.deps.Carts.Delete(ctx, cart.CartID); err != nil {
		log.Printf("order %s: cart cleanup error: %v", order.OrderID, err)
	}

	s.broadcast(order)
	return order, intent, nil
}

// VerifyPayment is the synchronous confirmation channel: the storefront
// posts the gateway's order id, payment id and signature after checkout.
func (s *Service) VerifyPayment(ctx context.Context, gatewayOrderID, gatewayPaymentID, signature string) (*models.Order, *razorpay.CapturedPayment, error) {
	if !s.deps.Gateway.VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature) {
		return nil, nil, ErrInvalidSignature
	}

	captured, err := s.deps.Gateway.FetchAndCapture(ctx, gatewayPaymentID)
	if err != nil {
		return nil, nil, err
	}

	if captured.Status == "captured" {
		order, err := s.confirmCapture(ctx, gatewayOrderID, gatewayPaymentID, captured.Method)
		return order, &captured, err
	}

	order, err := s.failPayment(ctx, gatewayOrderID, gatewayPaymentID, "payment not captured: "+captured.Status)
	return order, &captured, err
}

// confirmCapture is the single path both confirmation channels converge
// on. The payment-status CAS decides the winner; the loser returns success
// without touching stock or the invoice. An advisory redis lock narrows
// the window, but the CAS is the authority.
func (s *Service) confirmCapture(ctx context.Context, gatewayOrderID, gatewayPaymentID, method string) (*models.Order, error) {
	if ok, err := rdx.AcquireLock(ctx, gatewayOrderID, 30*time.Second); err == nil && ok {
		defer rdx.ReleaseLock(ctx, gatewayOrderID)
	}

	won, payment, err := s.deps.Payments.CaptureIf(ctx, gatewayOrderID, gatewayPaymentID, method)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPaymentRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	order, err := s.deps.Orders.FindByID(ctx, payment.OrderID)
	if errors.Is(err, store.ErrNotFound) {
		// The abandonment sweep purged the order before this confirmation
		// arrived. Nothing to commit; flag for operator reconciliation.
		log.Printf("captured payment %s has no order %s (purged?); manual reconciliation needed", gatewayPaymentID, payment.OrderID)
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if !won {
		return order, nil
	}

	transitioned, err := s.deps.Orders.UpdateStatusIf(ctx, order.OrderID,
		[]models.OrderStatus{models.StatusAwaitingPayment, models.StatusPending}, models.StatusConfirmed)
	if err != nil {
		return order, err
	}
	if !transitioned {
		// The order reached a terminal state (cancelled) before this capture
		// landed. Nothing was ever committed for it, so the captured money
		// goes straight back instead of confirming a dead order.
		log.Printf("order %s: capture landed after terminal status %s, refunding", order.OrderID, order.OrderStatus)
		s.refundOrphanedCapture(ctx, payment)
		return order, nil
	}
	order.OrderStatus = models.StatusConfirmed

	if err := s.deps.Ledger.Commit(ctx, order.Items, order.CustomerID); err != nil {
		// Payment already captured; order stands. Stock divergence is an
		// operator problem, not a reason to fail the confirmation.
		log.Printf("order %s: stock commit after capture failed: %v", order.OrderID, err)
	}

	s.generateInvoice(ctx, order)
	s.notifyConfirmed(ctx, order)
	s.broadcast(order)
	return order, nil
}

// refundOrphanedCapture returns a capture that won its payment CAS but
// found the order already terminal. A failed refund is flagged for manual
// reconciliation; it cannot be surfaced to either confirmation channel.
func (s *Service) refundOrphanedCapture(ctx context.Context, payment *models.Payment) {
	result, err := s.deps.Gateway.Refund(ctx, payment.PaymentID, payment.Amount, "order cancelled before capture")
	if err != nil {
		log.Printf("payment %s: orphaned capture refund failed, manual reconciliation needed: %v", payment.PaymentID, err)
		return
	}
	if _, err := s.deps.Payments.SetRefund(ctx, payment.PaymentID, result.RefundID, result.Status, time.Now()); err != nil {
		log.Printf("payment %s: refund not recorded: %v", payment.PaymentID, err)
	}
}

func (s *Service) failPayment(ctx context.Context, gatewayOrderID, gatewayPaymentID, reason string) (*models.Order, error) {
	changed, payment, err := s.deps.Payments.MarkFailed(ctx, gatewayOrderID, gatewayPaymentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPaymentRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	order, err := s.deps.Orders.FindByID(ctx, payment.OrderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if changed {
		if _, err := s.deps.Orders.UpdateStatusIf(ctx, order.OrderID,
			[]models.OrderStatus{models.StatusAwaitingPayment}, models.StatusPaymentFailed); err != nil {
			return order, err
		}
		order.OrderStatus = models.StatusPaymentFailed
		if s.deps.Notifier != nil {
			s.deps.Notifier.OrderFailure(ctx, order, reason)
		}
		s.broadcast(order)
	}
	return order, nil
}

// CancelOrder cancels a customer's own order. Refund failure is reported
// but never blocks the cancellation; stock is restored only when it was
// actually committed.
func (s *Service) CancelOrder(ctx context.Context, userID, orderID, reason string) (*models.Order, *razorpay.RefundResult, error) {
	order, err := s.deps.Orders.FindByID(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if order.CustomerID != userID {
		return nil, nil, ErrForbidden
	}
	if order.OrderStatus == models.StatusCancelled {
		return nil, nil, ErrAlreadyCancelled
	}
	switch order.OrderStatus {
	case models.StatusDelivered, models.StatusShipped:
		return nil, nil, fmt.Errorf("%w: status %s", ErrNotCancellable, order.OrderStatus)
	}
	if reason == "" {
		reason = "Cancelled by customer"
	}

	stockCommitted := order.ModeOfPayment == models.PaymentModeCOD

	var refund *razorpay.RefundResult
	if order.ModeOfPayment == models.PaymentModeOnline {
		payment, err := s.deps.Payments.FindByOrderID(ctx, order.OrderID)
		if err == nil && !payment.Status.Terminal() {
			// Divert the pending payment now so a capture landing after this
			// cancellation loses its CAS instead of confirming a dead order.
			if _, _, ferr := s.deps.Payments.MarkFailed(ctx, payment.RazorpayOrderID, payment.PaymentID); ferr != nil {
				log.Printf("order %s: payment not diverted on cancel: %v", order.OrderID, ferr)
			}
		}
		if err == nil && payment.Status == models.PaymentCaptured && payment.PaymentID != "" {
			stockCommitted = true
			result, err := s.deps.Gateway.Refund(ctx, payment.PaymentID, order.DiscountedTotalAmount, reason)
			if err != nil {
				log.Printf("order %s: refund failed, continuing cancellation: %v", order.OrderID, err)
			} else {
				refund = &result
				if _, err := s.deps.Payments.SetRefund(ctx, payment.PaymentID, result.RefundID, result.Status, time.Now()); err != nil {
					log.Printf("order %s: refund not recorded: %v", order.OrderID, err)
				}
			}
		}
	}

	now := time.Now()
	cancelled, err := s.deps.Orders.MarkCancelled(ctx, order.OrderID, reason, now)
	if err != nil {
		return nil, nil, err
	}
	if !cancelled {
		return nil, nil, ErrAlreadyCancelled
	}
	order.OrderStatus = models.StatusCancelled
	order.CancelledAt = &now
	order.CancellationReason = reason

	if stockCommitted {
		if err := s.deps.Ledger.Release(ctx, order.Items); err != nil {
			log.Printf("order %s: stock restore error: %v", order.OrderID, err)
		}
	}

	if s.deps.Notifier != nil {
		s.deps.Notifier.OrderCancellation(ctx, order)
	}
	s.broadcast(order)
	return order, refund, nil
}

// DeleteOrder is the owner-side removal of an order that has not been
// processed yet; anything past Pending is refused.
func (s *Service) DeleteOrder(ctx context.Context, orderID string) error {
	deleted, err := s.deps.Orders.DeleteIfStatus(ctx, orderID, models.StatusPending)
	if err != nil {
		return err
	}
	if deleted {
		return nil
	}
	if _, err := s.deps.Orders.FindByID(ctx, orderID); errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	return fmt.Errorf("%w: only pending orders can be deleted", ErrInvalidState)
}

// GetOrders lists the customer's own orders.
func (s *Service) GetOrders(ctx context.Context, userID string) ([]models.Order, error) {
	return s.deps.Orders.FindByCustomer(ctx, userID)
}

// GetOrder fetches one order with an ownership check.
func (s *Service) GetOrder(ctx context.Context, userID, orderID string) (*models.Order, error) {
	order, err := s.deps.Orders.FindByID(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if order.CustomerID != userID {
		return nil, ErrForbidden
	}
	return order, nil
}

// GetAllOrders is the owner-side listing.
func (s *Service) GetAllOrders(ctx context.Context) ([]models.Order, error) {
	return s.deps.Orders.FindAll(ctx)
}

// GetAnyOrder fetches an order without the customer ownership check; the
// router gates it behind the owner role.
func (s *Service) GetAnyOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.deps.Orders.FindByID(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

// RevenueStats sums units sold and discounted revenue over non-cancelled
// orders.
func (s *Service) RevenueStats(ctx context.Context) (int, float64, error) {
	return s.deps.Orders.RevenueStats(ctx)
}

// AdvanceOrders moves every order one step along the shipping pipeline.
// Each move is a CAS on the status observed at read time, so a concurrent
// cancellation wins cleanly. Returns how many orders moved.
func (s *Service) AdvanceOrders(ctx context.Context) (int, error) {
	statuses := make([]models.OrderStatus, 0, len(progression))
	for from := range progression {
		statuses = append(statuses, from)
	}
	candidates, err := s.deps.Orders.FindByStatuses(ctx, statuses)
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, order := range candidates {
		next := NextStatus(order.OrderStatus)
		if next == "" {
			continue
		}
		ok, err := s.deps.Orders.UpdateStatusIf(ctx, order.OrderID, []models.OrderStatus{order.OrderStatus}, next)
		if err != nil {
			log.Printf("advance %s: %v", order.OrderID, err)
			continue
		}
		if ok {
			moved++
			order.OrderStatus = next
			s.broadcast(&order)
		}
	}
	return moved, nil
}

// SweepAbandoned purges online orders still awaiting payment past the
// grace window. The delete is conditional on the status at delete time, so
// a webhook that confirms concurrently keeps its order. The paired payment
// record is diverted to failed so a later capture is visibly orphaned.
func (s *Service) SweepAbandoned(ctx context.Context, grace time.Duration) (int, error) {
	cutoff := time.Now().Add(-grace)
	stale, err := s.deps.Orders.FindAwaitingOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, order := range stale {
		deleted, err := s.deps.Orders.DeleteIfStatus(ctx, order.OrderID, models.StatusAwaitingPayment)
		if err != nil {
			log.Printf("sweep %s: %v", order.OrderID, err)
			continue
		}
		if !deleted {
			continue
		}
		purged++

		payment, err := s.deps.Payments.FindByOrderID(ctx, order.OrderID)
		if err == nil {
			if _, _, err := s.deps.Payments.MarkFailed(ctx, payment.RazorpayOrderID, payment.PaymentID); err != nil {
				log.Printf("sweep %s: payment not marked failed: %v", order.OrderID, err)
			}
		}
	}
	return purged, nil
}

func (s *Service) generateInvoice(ctx context.Context, order *models.Order) {
	if s.deps.Invoices == nil {
		return
	}
	// Best-effort downstream of the authoritative state change: a failed
	// invoice never rolls back the order or the stock commit.
	invoiceNumber, err := s.deps.Invoices.Generate(ctx, order)
	if err != nil {
		log.Printf("order %s: invoice generation error: %v", order.OrderID, err)
		return
	}
	order.InvoiceNumber = invoiceNumber
	if err := s.deps.Orders.SetInvoiceNumber(ctx, order.OrderID, invoiceNumber); err != nil {
		log.Printf("order %s: invoice number not recorded: %v", order.OrderID, err)
	}
}

func (s *Service) notifyConfirmed(ctx context.Context, order *models.Order) {
	if s.deps.Notifier != nil {
		s.deps.Notifier.OrderConfirmation(ctx, order)
	}
}

func (s *Service) releaseQuiet(ctx context.Context, items []models.OrderItem) {
	if err := s.deps.Ledger.Release(ctx, items); err != nil {
		log.Printf("stock release error: %v", err)
	}
}

func (s *Service) broadcast(order *models.Order) {
	if s.deps.Feed == nil {
		return
	}
	s.deps.Feed.BroadcastStatus(models.StatusUpdate{
		OrderID: order.OrderID,
		OwnerID: order.OwnerID,
		Status:  order.OrderStatus,
	})
}
