// Package webhook is the gateway's asynchronous confirmation channel. The
// raw body is authenticated with an HMAC signature before anything is
// parsed; after that the endpoint always acknowledges with 200 so the
// gateway stops retrying, even when the event cannot be applied.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"vastra/razorpay"
	"vastra/utils"

	"github.com/julienschmidt/httprouter"
)

const signatureHeader = "X-Razorpay-Signature"

// Verifier authenticates the raw webhook body.
type Verifier interface {
	VerifyWebhookSignature(body []byte, signature string) bool
}

// OrderEvents is the slice of the order lifecycle the webhook drives.
type OrderEvents interface {
	HandlePaymentAuthorized(ctx context.Context, gatewayOrderID, gatewayPaymentID string) error
	HandlePaymentCaptured(ctx context.Context, gatewayOrderID, gatewayPaymentID, method string) error
	HandlePaymentFailed(ctx context.Context, gatewayOrderID, gatewayPaymentID, reason string) error
	HandleRefundProcessed(ctx context.Context, gatewayPaymentID, refundID, refundStatus string) error
}

type Handler struct {
	verifier Verifier
	events   OrderEvents
}

func NewHandler(verifier Verifier, events OrderEvents) *Handler {
	return &Handler{verifier: verifier, events: events}
}

// envelope is the gateway's webhook wire format.
type envelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID               string `json:"id"`
				OrderID          string `json:"order_id"`
				Status           string `json:"status"`
				Method           string `json:"method"`
				ErrorDescription string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
		Refund struct {
			Entity struct {
				ID        string `json:"id"`
				PaymentID string `json:"payment_id"`
				Status    string `json:"status"`
			} `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

// Receive handles POSTs from the payment gateway.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Unable to read request body")
		return
	}

	if !h.verifier.VerifyWebhookSignature(body, r.Header.Get(signatureHeader)) {
		utils.RespondWithError(w, http.StatusUnauthorized, "Invalid webhook signature")
		return
	}

	var ev envelope
	if err := json.Unmarshal(body, &ev); err != nil {
		// Authenticated but malformed; acknowledge so the gateway does not
		// retry a body that will never parse.
		log.Printf("webhook: malformed body: %v", err)
		utils.SendResponse(w, http.StatusOK, nil, "Acknowledged.", nil)
		return
	}

	h.dispatch(ctx, ev)
	utils.SendResponse(w, http.StatusOK, nil, "Acknowledged.", nil)
}

func (h *Handler) dispatch(ctx context.Context, ev envelope) {
	payment := ev.Payload.Payment.Entity
	refund := ev.Payload.Refund.Entity

	var err error
	switch ev.Event {
	case razorpay.EventPaymentAuthorized:
		err = h.events.HandlePaymentAuthorized(ctx, payment.OrderID, payment.ID)
	case razorpay.EventPaymentCaptured:
		err = h.events.HandlePaymentCaptured(ctx, payment.OrderID, payment.ID, payment.Method)
	case razorpay.EventPaymentFailed:
		err = h.events.HandlePaymentFailed(ctx, payment.OrderID, payment.ID, payment.ErrorDescription)
	case razorpay.EventRefundProcessed:
		err = h.events.HandleRefundProcessed(ctx, refund.PaymentID, refund.ID, refund.Status)
	default:
		log.Printf("webhook: ignoring event %q", ev.Event)
		return
	}
	if err != nil {
		// The state machine already protects itself; a failed application
		// here is logged for reconciliation, never surfaced to the gateway.
		log.Printf("webhook: %s not applied: %v", ev.Event, err)
	}
}
