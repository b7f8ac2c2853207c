package cart

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"vastra/utils"

	"github.com/julienschmidt/httprouter"
)

type Handlers struct {
	svc *Service
}

func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

func respondCartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrCartNotFound), errors.Is(err, ErrItemNotFound):
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrOutOfStock):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNoIdentity):
		utils.RespondWithError(w, http.StatusBadRequest, "No user or session found")
	default:
		log.Printf("cart handler error: %v", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Something went wrong")
	}
}

// GetCart returns the caller's cart. When a logged-in request still carries
// a guest session cookie, the guest cart is folded in first.
func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID := utils.GetUserIDFromRequest(r)
	if c, err := r.Cookie("sessionId"); err == nil && userID != "" {
		if err := h.svc.MergeGuestIntoUser(ctx, c.Value, userID); err != nil {
			log.Printf("cart merge error: %v", err)
		}
	}

	id := utils.GetIdentity(r)
	if id.IsZero() {
		utils.SendResponse(w, http.StatusOK, []any{}, "Cart is empty.", nil)
		return
	}

	cart, err := h.svc.Get(ctx, id)
	if err != nil {
		respondCartError(w, err)
		return
	}
	utils.SendResponse(w, http.StatusOK, cart.Items, "User cart fetched successfully.", nil)
}

// AddToCart upserts a line item; mints a session cookie for guests.
func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var body struct {
		ProductID     string `json:"productID"`
		Quantity      int    `json:"quantity"`
		SelectedSize  string `json:"selectedSize"`
		SelectedColor string `json:"selectedColor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if body.ProductID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Product ID is required")
		return
	}

	id := utils.EnsureIdentity(w, r)
	cart, err := h.svc.AddItem(ctx, id, body.ProductID, body.Quantity, body.SelectedSize, body.SelectedColor)
	if err != nil {
		respondCartError(w, err)
		return
	}
	utils.SendResponse(w, http.StatusOK, cart.Items, "Product added to cart.", nil)
}

// UpdateQuantity applies a delta to a line.
func (h *Handlers) UpdateQuantity(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var body struct {
		ProductID     string `json:"productID"`
		Change        int    `json:"change"`
		SelectedSize  string `json:"selectedSize"`
		SelectedColor string `json:"selectedColor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if body.ProductID == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Product ID is required")
		return
	}

	cart, err := h.svc.ChangeQuantity(ctx, utils.GetIdentity(r), body.ProductID, body.SelectedSize, body.SelectedColor, body.Change)
	if err != nil {
		respondCartError(w, err)
		return
	}
	utils.SendResponse(w, http.StatusOK, cart.Items, "Cart updated successfully.", nil)
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var body struct {
		ProductID     string `json:"productID"`
		SelectedSize  string `json:"selectedSize"`
		SelectedColor string `json:"selectedColor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	cart, err := h.svc.RemoveItem(ctx, utils.GetIdentity(r), body.ProductID, body.SelectedSize, body.SelectedColor)
	if err != nil {
		respondCartError(w, err)
		return
	}
	utils.SendResponse(w, http.StatusOK, cart.Items, "Product removed from cart successfully.", nil)
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.svc.Clear(ctx, utils.GetIdentity(r)); err != nil {
		respondCartError(w, err)
		return
	}
	utils.SendResponse(w, http.StatusOK, []any{}, "Cart cleared successfully.", nil)
}
