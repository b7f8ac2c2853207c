package invoice

import (
	"context"
	"errors"
	"net/http"
	"time"

	"vastra/store"
	"vastra/utils"

	"github.com/julienschmidt/httprouter"
)

type Handlers struct {
	invoices Store
}

func NewHandlers(invoices Store) *Handlers {
	return &Handlers{invoices: invoices}
}

// DownloadInvoice streams the PDF for an order the caller owns.
func (h *Handlers) DownloadInvoice(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID := utils.GetUserIDFromRequest(r)
	if userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	inv, err := h.invoices.FindByOrderID(ctx, ps.ByName("orderid"))
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, "Invoice not found")
		return
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	if inv.CustomerID != userID {
		utils.RespondWithError(w, http.StatusForbidden, "Unauthorized access")
		return
	}

	w.Header().Set("Content-Type", inv.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+inv.InvoiceNumber+".pdf")
	w.WriteHeader(http.StatusOK)
	w.Write(inv.PDFContent)
}

// ListInvoices returns the caller's invoice metadata (no PDF payloads).
func (h *Handlers) ListInvoices(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID := utils.GetUserIDFromRequest(r)
	if userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	invoices, err := h.invoices.ListByCustomer(ctx, userID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Something went wrong")
		return
	}
	utils.SendResponse(w, http.StatusOK, invoices, "Invoices fetched successfully.", nil)
}
