// Package products is the catalog surface: public browsing plus the
// owner-side CRUD and discount management. Discounted price is derived
// once on write so readers never recompute it.
package products

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"vastra/models"
	"vastra/store"
	"vastra/utils"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
)

type Handlers struct {
	products *store.ProductStore
}

func NewHandlers(products *store.ProductStore) *Handlers {
	return &Handlers{products: products}
}

func roundPrice(v float64) float64 {
	return math.Round(v*100) / 100
}

// discountedPrice derives the effective unit price from a percentage
// discount; a zero discount clears it back to the list price.
func discountedPrice(price, discount float64) float64 {
	if discount <= 0 {
		return price
	}
	return roundPrice(price * (1 - discount/100))
}

type productRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Price       float64  `json:"price"`
	Discount    float64  `json:"discount"`
	Sizes       []string `json:"sizes"`
	Colors      []string `json:"colors"`
	Stock       int      `json:"stock"`
}

func (req *productRequest) validate() string {
	if req.Name == "" {
		return "Product name is required"
	}
	if req.Price <= 0 {
		return "Price must be positive"
	}
	if req.Discount < 0 || req.Discount >= 100 {
		return "Discount must be between 0 and 100"
	}
	if req.Stock < 0 {
		return "Stock cannot be negative"
	}
	return ""
}

// CreateProduct adds a catalog entry, owner side.
func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	ownerID := utils.GetUserIDFromRequest(r)
	if ownerID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		utils.RespondWithError(w, http.StatusBadRequest, msg)
		return
	}

	now := time.Now()
	product := &models.Product{
		ProductID:     utils.GetUUID(),
		OwnerID:       ownerID,
		Name:          req.Name,
		Description:   req.Description,
		Category:      req.Category,
		Price:         req.Price,
		Discount:      req.Discount,
		DiscountPrice: discountedPrice(req.Price, req.Discount),
		Sizes:         req.Sizes,
		Colors:        req.Colors,
		Stock:         req.Stock,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.products.Insert(ctx, product); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	utils.SendResponse(w, http.StatusCreated, product, "Product created successfully.", nil)
}

// ListProducts is the public browse endpoint with optional category filter
// and pagination.
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	q := r.URL.Query()
	skip, _ := strconv.ParseInt(q.Get("skip"), 10, 64)
	limit, err := strconv.ParseInt(q.Get("limit"), 10, 64)
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}
	if skip < 0 {
		skip = 0
	}

	products, perr := h.products.List(ctx, q.Get("category"), skip, limit)
	if perr != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	utils.SendResponse(w, http.StatusOK, products, "Products fetched successfully.", nil)
}

// rankBestSelling orders products by how many distinct buyers the stock
// ledger has recorded on them; never-sold products do not chart.
func rankBestSelling(products []models.Product, limit int) []models.Product {
	sold := products[:0:0]
	for _, p := range products {
		if len(p.Customers) > 0 {
			sold = append(sold, p)
		}
	}
	sort.SliceStable(sold, func(i, j int) bool {
		return len(sold[i].Customers) > len(sold[j].Customers)
	})
	if limit > 0 && len(sold) > limit {
		sold = sold[:limit]
	}
	return sold
}

// BestSellers is the public best-selling listing, ranked by the buyers
// recorded at stock commit time.
func (h *Handlers) BestSellers(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > 50 {
		limit = 10
	}

	products, perr := h.products.List(ctx, "", 0, 0)
	if perr != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	ranked := rankBestSelling(products, limit)
	if ranked == nil {
		ranked = []models.Product{}
	}
	utils.SendResponse(w, http.StatusOK, ranked, "Best selling products fetched successfully.", nil)
}

// DiscountedProducts lists everything currently on discount.
func (h *Handlers) DiscountedProducts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	q := r.URL.Query()
	skip, _ := strconv.ParseInt(q.Get("skip"), 10, 64)
	limit, err := strconv.ParseInt(q.Get("limit"), 10, 64)
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}
	if skip < 0 {
		skip = 0
	}

	products, perr := h.products.ListDiscounted(ctx, skip, limit)
	if perr != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	utils.SendResponse(w, http.StatusOK, products, "Discounted products fetched successfully.", nil)
}

// GetProduct is the public detail endpoint.
func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	product, err := h.products.FindByID(ctx, ps.ByName("productid"))
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, "Product not found")
		return
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	utils.SendResponse(w, http.StatusOK, product, "Product fetched successfully.", nil)
}

// ownedProduct loads the product and checks the caller owns it.
func (h *Handlers) ownedProduct(ctx context.Context, w http.ResponseWriter, r *http.Request, productID string) *models.Product {
	ownerID := utils.GetUserIDFromRequest(r)
	if ownerID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return nil
	}

	product, err := h.products.FindByID(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, "Product not found")
		return nil
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Something went wrong")
		return nil
	}
	if product.OwnerID != ownerID {
		utils.RespondWithError(w, http.StatusForbidden, "Unauthorized access")
		return nil
	}
	return product
}

// UpdateProduct edits the mutable catalog fields, owner side. Price or
// discount edits re-derive the discounted price; existing order snapshots
// are unaffected.
func (h *Handlers) UpdateProduct(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	product := h.ownedProduct(ctx, w, r, ps.ByName("productid"))
	if product == nil {
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		utils.RespondWithError(w, http.StatusBadRequest, msg)
		return
	}

	fields := bson.M{
		"name":          req.Name,
		"description":   req.Description,
		"category":      req.Category,
		"price":         req.Price,
		"discount":      req.Discount,
		"discountPrice": discountedPrice(req.Price, req.Discount),
		"sizes":         req.Sizes,
		"colors":        req.Colors,
		"stock":         req.Stock,
	}
	if err := h.products.Update(ctx, product.ProductID, fields); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	utils.SendResponse(w, http.StatusOK, nil, "Product updated successfully.", nil)
}

// ApplyDiscount sets a percentage discount, owner side.
func (h *Handlers) ApplyDiscount(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	product := h.ownedProduct(ctx, w, r, ps.ByName("productid"))
	if product == nil {
		return
	}

	var req struct {
		Discount float64 `json:"discount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Discount <= 0 || req.Discount >= 100 {
		utils.RespondWithError(w, http.StatusBadRequest, "Discount must be between 0 and 100")
		return
	}

	fields := bson.M{
		"discount":      req.Discount,
		"discountPrice": discountedPrice(product.Price, req.Discount),
	}
	if err := h.products.Update(ctx, product.ProductID, fields); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	utils.SendResponse(w, http.StatusOK, nil, "Discount applied successfully.", nil)
}

// RemoveDiscount clears the discount, owner side.
func (h *Handlers) RemoveDiscount(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	product := h.ownedProduct(ctx, w, r, ps.ByName("productid"))
	if product == nil {
		return
	}

	fields := bson.M{
		"discount":      0.0,
		"discountPrice": product.Price,
	}
	if err := h.products.Update(ctx, product.ProductID, fields); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	utils.SendResponse(w, http.StatusOK, nil, "Discount removed successfully.", nil)
}

// DeleteProduct removes a catalog entry, owner side. Existing orders keep
// their snapshots; carts prune the line on next read.
func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	product := h.ownedProduct(ctx, w, r, ps.ByName("productid"))
	if product == nil {
		return
	}

	if err := h.products.Delete(ctx, product.ProductID); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	utils.SendResponse(w, http.StatusOK, nil, "Product deleted successfully.", nil)
}
