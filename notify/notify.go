// Package notify is the buyer-notification collaborator. Every call is
// fire-and-forget from the lifecycle machine's perspective; failures are
// logged, never propagated. Mail rendering itself lives outside this
// service.
package notify

import (
	"context"
	"encoding/json"
	"log"

	"vastra/models"
	"vastra/rdx"
)

type Notifier interface {
	OrderConfirmation(ctx context.Context, order *models.Order)
	OrderFailure(ctx context.Context, order *models.Order, reason string)
	OrderCancellation(ctx context.Context, order *models.Order)
}

// LogNotifier just records what would have been sent; the default when no
// event bus is configured.
type LogNotifier struct{}

func (LogNotifier) OrderConfirmation(_ context.Context, order *models.Order) {
	log.Printf("notify: order %s confirmed for customer %s", order.OrderID, order.CustomerID)
}

func (LogNotifier) OrderFailure(_ context.Context, order *models.Order, reason string) {
	log.Printf("notify: order %s failed for customer %s: %s", order.OrderID, order.CustomerID, reason)
}

func (LogNotifier) OrderCancellation(_ context.Context, order *models.Order) {
	log.Printf("notify: order %s cancelled for customer %s", order.OrderID, order.CustomerID)
}

// RedisNotifier publishes order events to a pub/sub channel for the mail
// worker to consume.
type RedisNotifier struct {
	Channel string
}

func NewRedisNotifier() *RedisNotifier {
	return &RedisNotifier{Channel: "order-events"}
}

type orderEvent struct {
	Type       string  `json:"type"`
	OrderID    string  `json:"orderId"`
	CustomerID string  `json:"customerId"`
	Amount     float64 `json:"amount"`
	Reason     string  `json:"reason,omitempty"`
}

func (n *RedisNotifier) publish(ctx context.Context, ev orderEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("notify: marshal error: %v", err)
		return
	}
	rdx.Publish(ctx, n.Channel, data)
}

func (n *RedisNotifier) OrderConfirmation(ctx context.Context, order *models.Order) {
	n.publish(ctx, orderEvent{
		Type:       "order-confirmed",
		OrderID:    order.OrderID,
		CustomerID: order.CustomerID,
		Amount:     order.DiscountedTotalAmount,
	})
}

func (n *RedisNotifier) OrderFailure(ctx context.Context, order *models.Order, reason string) {
	n.publish(ctx, orderEvent{
		Type:       "order-failed",
		OrderID:    order.OrderID,
		CustomerID: order.CustomerID,
		Reason:     reason,
	})
}

func (n *RedisNotifier) OrderCancellation(ctx context.Context, order *models.Order) {
	n.publish(ctx, orderEvent{
		Type:       "order-cancelled",
		OrderID:    order.OrderID,
		CustomerID: order.CustomerID,
		Reason:     order.CancellationReason,
	})
}
