package orders

import (
	"context"
	"errors"
	"log"
	"time"

	"vastra/models"
	"vastra/store"
)

// Gateway webhook events land here. Every handler is idempotent: the
// webhook and the client callback race for the same payment and the
// payment-status CAS makes the duplicate a no-op.

// HandlePaymentAuthorized records the intermediate authorized state. The
// order itself does not move; only capture confirms it.
func (s *Service) HandlePaymentAuthorized(ctx context.Context, gatewayOrderID, gatewayPaymentID string) error {
	changed, _, err := s.deps.Payments.MarkAuthorized(ctx, gatewayOrderID, gatewayPaymentID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrPaymentRecordNotFound
	}
	if err != nil {
		return err
	}
	if !changed {
		log.Printf("payment %s already past authorized, webhook ignored", gatewayPaymentID)
	}
	return nil
}

// HandlePaymentCaptured converges on the same capture path the client
// callback uses.
func (s *Service) HandlePaymentCaptured(ctx context.Context, gatewayOrderID, gatewayPaymentID, method string) error {
	_, err := s.confirmCapture(ctx, gatewayOrderID, gatewayPaymentID, method)
	return err
}

// HandlePaymentFailed diverts the payment, and with it the awaiting order,
// to the failed state.
func (s *Service) HandlePaymentFailed(ctx context.Context, gatewayOrderID, gatewayPaymentID, reason string) error {
	if reason == "" {
		reason = "payment failed at gateway"
	}
	_, err := s.failPayment(ctx, gatewayOrderID, gatewayPaymentID, reason)
	return err
}

// HandleRefundProcessed records a refund settled on the gateway side, for
// example one issued from the provider dashboard. The order is cancelled
// if it is not already; stock is not touched here, CancelOrder owns that.
func (s *Service) HandleRefundProcessed(ctx context.Context, gatewayPaymentID, refundID, refundStatus string) error {
	payment, err := s.deps.Payments.SetRefund(ctx, gatewayPaymentID, refundID, refundStatus, time.Now())
	if errors.Is(err, store.ErrNotFound) {
		return ErrPaymentRecordNotFound
	}
	if err != nil {
		return err
	}

	order, err := s.deps.Orders.FindByID(ctx, payment.OrderID)
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("refund %s: order %s no longer exists", refundID, payment.OrderID)
		return nil
	}
	if err != nil {
		return err
	}

	if order.OrderStatus != models.StatusCancelled {
		now := time.Now()
		cancelled, err := s.deps.Orders.MarkCancelled(ctx, order.OrderID, "Refunded via payment gateway", now)
		if err != nil {
			return err
		}
		if cancelled {
			order.OrderStatus = models.StatusCancelled
			if s.deps.Notifier != nil {
				s.deps.Notifier.OrderCancellation(ctx, order)
			}
			s.broadcast(order)
		}
	}
	return nil
}
