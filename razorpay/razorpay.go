// Package razorpay is the thin adapter over the external payment gateway.
// The wire contract (paise amounts, HMAC-SHA256 hex signatures, webhook
// event names) is fixed by the provider and preserved verbatim.
package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"time"
)

var (
	// ErrGatewayTimeout marks a call that exceeded its deadline; local state
	// is untouched and the operation is safe to retry.
	ErrGatewayTimeout = errors.New("razorpay: gateway timeout")
	ErrGateway        = errors.New("razorpay: gateway error")
)

// Webhook event names, part of the gateway wire contract.
const (
	EventPaymentAuthorized = "payment.authorized"
	EventPaymentCaptured   = "payment.captured"
	EventPaymentFailed     = "payment.failed"
	EventRefundProcessed   = "refund.processed"
)

type Client struct {
	keyID         string
	keySecret     string
	webhookSecret string
	baseURL       string
	httpClient    *http.Client
}

func New(keyID, keySecret, webhookSecret string) *Client {
	return &Client{
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		baseURL:       "https://api.razorpay.com/v1",
		httpClient:    &http.Client{Timeout: 10 * time.Second},
	}
}

// NewWithBaseURL exists for tests that point the adapter at a local server.
func NewWithBaseURL(keyID, keySecret, webhookSecret, baseURL string) *Client {
	c := New(keyID, keySecret, webhookSecret)
	c.baseURL = baseURL
	return c
}

// GatewayOrder is the payment intent created before the buyer pays.
type GatewayOrder struct {
	OrderID  string  `json:"orderId"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Receipt  string  `json:"receipt"`
	Status   string  `json:"status"`
}

// CapturedPayment describes a payment after fetch-and-capture.
type CapturedPayment struct {
	PaymentID string  `json:"paymentId"`
	OrderID   string  `json:"orderId"`
	Status    string  `json:"status"`
	Amount    float64 `json:"amount"`
	Method    string  `json:"method"`
}

// RefundResult reports the refund the gateway accepted.
type RefundResult struct {
	RefundID  string  `json:"refundId"`
	PaymentID string  `json:"paymentId"`
	Amount    float64 `json:"amount"`
	Status    string  `json:"status"`
}

// rupees <-> paise; the gateway only speaks paise.
func toPaise(amount float64) int64  { return int64(math.Round(amount * 100)) }
func fromPaise(paise int64) float64 { return float64(paise) / 100 }

// CreateOrder registers a payment intent for the given amount.
func (c *Client) CreateOrder(ctx context.Context, amount float64, currency, receipt string, notes map[string]string) (GatewayOrder, error) {
	if currency == "" {
		currency = "INR"
	}
	reqBody := map[string]any{
		"amount":   toPaise(amount),
		"currency": currency,
		"receipt":  receipt,
		"notes":    notes,
	}

	var resp struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Receipt  string `json:"receipt"`
		Status   string `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, "/orders", reqBody, &resp); err != nil {
		return GatewayOrder{}, err
	}
	return GatewayOrder{
		OrderID:  resp.ID,
		Amount:   fromPaise(resp.Amount),
		Currency: resp.Currency,
		Receipt:  resp.Receipt,
		Status:   resp.Status,
	}, nil
}

// FetchAndCapture loads the payment and captures it if it is still only
// authorized. Returns the payment as the gateway last saw it.
func (c *Client) FetchAndCapture(ctx context.Context, paymentID string) (CapturedPayment, error) {
	var payment struct {
		ID      string `json:"id"`
		OrderID string `json:"order_id"`
		Status  string `json:"status"`
		Amount  int64  `json:"amount"`
		Method  string `json:"method"`
	}
	if err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil, &payment); err != nil {
		return CapturedPayment{}, err
	}

	if payment.Status == "authorized" {
		captureBody := map[string]any{"amount": payment.Amount}
		if err := c.do(ctx, http.MethodPost, "/payments/"+url.PathEscape(paymentID)+"/capture", captureBody, &payment); err != nil {
			return CapturedPayment{}, err
		}
	}

	return CapturedPayment{
		PaymentID: payment.ID,
		OrderID:   payment.OrderID,
		Status:    payment.Status,
		Amount:    fromPaise(payment.Amount),
		Method:    payment.Method,
	}, nil
}

// Refund asks the gateway to return the captured amount.
func (c *Client) Refund(ctx context.Context, paymentID string, amount float64, reason string) (RefundResult, error) {
	reqBody := map[string]any{
		"amount": toPaise(amount),
		"notes":  map[string]string{"reason": reason},
	}

	var resp struct {
		ID        string `json:"id"`
		PaymentID string `json:"payment_id"`
		Amount    int64  `json:"amount"`
		Status    string `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, "/payments/"+url.PathEscape(paymentID)+"/refund", reqBody, &resp); err != nil {
		return RefundResult{}, err
	}
	return RefundResult{
		RefundID:  resp.ID,
		PaymentID: resp.PaymentID,
		Amount:    fromPaise(resp.Amount),
		Status:    resp.Status,
	}, nil
}

// VerifyPaymentSignature checks the signature the client callback carries:
// HMAC-SHA256 over "gatewayOrderID|gatewayPaymentID" with the key secret.
func (c *Client) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	expected := hmacHex(c.keySecret, []byte(orderID+"|"+paymentID))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature checks the X-Razorpay-Signature header against the
// raw request body with the webhook secret.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	expected := hmacHex(c.webhookSecret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func hmacHex(secret string, data []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return fmt.Errorf("%w: %s %s", ErrGatewayTimeout, method, path)
		}
		return fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s %s returned %d: %s", ErrGateway, method, path, resp.StatusCode, payload)
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
