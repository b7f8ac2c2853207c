package orders

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"vastra/razorpay"
	"vastra/utils"

	"github.com/julienschmidt/httprouter"
)

type Handlers struct {
	svc *Service
}

func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

func respondOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Order not found")
	case errors.Is(err, ErrForbidden):
		utils.RespondWithError(w, http.StatusForbidden, "Unauthorized access")
	case errors.Is(err, ErrEmptyCart):
		utils.RespondWithError(w, http.StatusBadRequest, "Your cart is empty")
	case errors.Is(err, ErrOutOfStock):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidPaymentMode):
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid payment mode")
	case errors.Is(err, ErrInvalidDeliveryFee):
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid delivery fee")
	case errors.Is(err, ErrInvalidSignature):
		utils.RespondWithError(w, http.StatusBadRequest, "Payment verification failed")
	case errors.Is(err, ErrPaymentRecordNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Payment record not found")
	case errors.Is(err, ErrPaymentInitiation):
		utils.RespondWithError(w, http.StatusBadGateway, "Payment initiation failed, please retry")
	case errors.Is(err, ErrAlreadyCancelled):
		utils.RespondWithError(w, http.StatusConflict, "Order is already cancelled")
	case errors.Is(err, ErrNotCancellable):
		utils.RespondWithError(w, http.StatusConflict, "Order can no longer be cancelled")
	case errors.Is(err, ErrInvalidState):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, razorpay.ErrGatewayTimeout):
		utils.RespondWithError(w, http.StatusGatewayTimeout, "Payment gateway timed out, please retry")
	default:
		utils.RespondWithError(w, http.StatusInternalServerError, "Something went wrong")
	}
}

// PlaceOrder checks out the caller's cart.
func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	userID := utils.GetUserIDFromRequest(r)
	if userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		ModeOfPayment string  `json:"modeOfPayment"`
		DeliveryFee   float64 `json:"deliveryFee"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	order, intent, err := h.svc.PlaceOrder(ctx, userID, req.ModeOfPayment, req.DeliveryFee)
	if err != nil {
		respondOrderError(w, err)
		return
	}

	payload := utils.M{"order": order}
	if intent != nil {
		payload["payment"] = intent
	}
	utils.SendResponse(w, http.StatusCreated, payload, "Order placed successfully.", nil)
}

// GetOrders lists the caller's orders.
func (h *Handlers) GetOrders(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID := utils.GetUserIDFromRequest(r)
	if userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	orders, err := h.svc.GetOrders(ctx, userID)
	if err != nil {
		respondOrderError(w, err)
		return
	}
	utils.SendResponse(w, http.StatusOK, orders, "Orders fetched successfully.", nil)
}

// GetOrder fetches one of the caller's orders.
func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID := utils.GetUserIDFromRequest(r)
	if userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	order, err := h.svc.GetOrder(ctx, userID, ps.ByName("orderid"))
	if err != nil {
		respondOrderError(w, err)
		return
	}
	utils.SendResponse(w, http.StatusOK, order, "Order fetched successfully.", nil)
}

// VerifyPayment is the client confirmation callback posted by the
// storefront after gateway checkout completes.
func (h *Handlers) VerifyPayment(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	var req struct {
		RazorpayOrderID   string `json:"razorpayOrderId"`
		RazorpayPaymentID string `json:"razorpayPaymentId"`
		RazorpaySignature string `json:"razorpaySignature"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.RazorpayOrderID == "" || req.RazorpayPaymentID == "" || req.RazorpaySignature == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Missing payment verification fields")
		return
	}

	order, captured, err := h.svc.VerifyPayment(ctx, req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature)
	if err != nil {
		respondOrderError(w, err)
		return
	}

	if captured.Status != "captured" {
		utils.SendResponse(w, http.StatusOK, utils.M{"order": order, "paymentStatus": captured.Status},
			"Payment was not captured.", nil)
		return
	}
	utils.SendResponse(w, http.StatusOK, utils.M{"order": order, "paymentStatus": captured.Status},
		"Payment verified successfully.", nil)
}

// CancelOrder cancels one of the caller's orders.
func (h *Handlers) CancelOrder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	userID := utils.GetUserIDFromRequest(r)
	if userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	order, refund, err := h.svc.CancelOrder(ctx, userID, ps.ByName("orderid"), req.Reason)
	if err != nil {
		respondOrderError(w, err)
		return
	}

	payload := utils.M{"order": order}
	if refund != nil {
		payload["refund"] = refund
	}
	utils.SendResponse(w, http.StatusOK, payload, "Order cancelled successfully.", nil)
}

// GetAllOrders is the owner-side listing across customers.
func (h *Handlers) GetAllOrders(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	orders, err := h.svc.GetAllOrders(ctx)
	if err != nil {
		respondOrderError(w, err)
		return
	}
	utils.SendResponse(w, http.StatusOK, orders, "Orders fetched successfully.", nil)
}

// GetAnyOrder is the owner-side fetch without the customer ownership check.
func (h *Handlers) GetAnyOrder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	order, err := h.svc.GetAnyOrder(ctx, ps.ByName("orderid"))
	if err != nil {
		respondOrderError(w, err)
		return
	}
	utils.SendResponse(w, http.StatusOK, order, "Order fetched successfully.", nil)
}

// DeleteOrder removes a pending order, owner side.
func (h *Handlers) DeleteOrder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.svc.DeleteOrder(ctx, ps.ByName("orderid")); err != nil {
		respondOrderError(w, err)
		return
	}
	utils.SendResponse(w, http.StatusOK, nil, "Order deleted successfully.", nil)
}

// RevenueStats reports units sold and discounted revenue, owner side.
func (h *Handlers) RevenueStats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	units, revenue, err := h.svc.RevenueStats(ctx)
	if err != nil {
		respondOrderError(w, err)
		return
	}
	utils.SendResponse(w, http.StatusOK, utils.M{
		"unitsSold": units,
		"revenue":   revenue,
	}, "Stats fetched successfully.", nil)
}
