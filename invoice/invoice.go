// Package invoice produces the durable PDF artifact for a confirmed order.
// At most one invoice ever exists per order: generation inserts under a
// unique order index and treats a duplicate as already-generated.
package invoice

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"vastra/models"
	"vastra/store"
	"vastra/utils"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"
)

// Store persists invoices; Insert must reject a second document for the
// same order with store.ErrDuplicate.
type Store interface {
	Insert(ctx context.Context, inv *models.Invoice) error
	FindByOrderID(ctx context.Context, orderID string) (*models.Invoice, error)
	ListByCustomer(ctx context.Context, customerID string) ([]models.Invoice, error)
}

type Generator struct {
	invoices Store
	qrSecret string
}

func NewGenerator(invoices Store, qrSecret string) *Generator {
	return &Generator{invoices: invoices, qrSecret: qrSecret}
}

// Generate builds and stores the invoice for an order, returning its
// invoice number. Calling it again for the same order is a no-op that
// returns the existing number.
func (g *Generator) Generate(ctx context.Context, order *models.Order) (string, error) {
	if existing, err := g.invoices.FindByOrderID(ctx, order.OrderID); err == nil {
		return existing.InvoiceNumber, nil
	}

	inv := buildInvoice(order)
	pdfBytes, err := g.renderPDF(inv)
	if err != nil {
		return "", fmt.Errorf("invoice render: %w", err)
	}
	inv.PDFContent = pdfBytes

	err = g.invoices.Insert(ctx, &inv)
	if errors.Is(err, store.ErrDuplicate) {
		// Lost the race to a concurrent confirmation; theirs stands.
		existing, ferr := g.invoices.FindByOrderID(ctx, order.OrderID)
		if ferr != nil {
			return "", ferr
		}
		return existing.InvoiceNumber, nil
	}
	if err != nil {
		return "", err
	}
	return inv.InvoiceNumber, nil
}

func buildInvoice(order *models.Order) models.Invoice {
	items := make([]models.InvoiceItem, 0, len(order.Items))
	var subtotal float64
	for _, line := range order.Items {
		unit := line.DiscountPrice
		if unit == 0 {
			unit = line.Price
		}
		amount := unit * float64(line.Quantity)
		subtotal += amount
		items = append(items, models.InvoiceItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			Price:     unit,
			Amount:    amount,
		})
	}

	paymentStatus := "Pending"
	if order.ModeOfPayment == models.PaymentModeOnline {
		paymentStatus = "Paid"
	}

	return models.Invoice{
		InvoiceNumber: utils.NewInvoiceNumber(order.OrderID),
		OrderID:       order.OrderID,
		CustomerID:    order.CustomerID,
		InvoiceDate:   time.Now(),
		Items:         items,
		Subtotal:      subtotal,
		DeliveryFee:   order.DeliveryFee,
		TotalAmount:   subtotal + order.DeliveryFee,
		PaymentMethod: order.ModeOfPayment,
		PaymentStatus: paymentStatus,
		ContentType:   "application/pdf",
	}
}

// qrPayload signs "orderID|invoiceNumber|timestamp" so the document can be
// verified at the door without a lookup.
func (g *Generator) qrPayload(orderID, invoiceNumber string) string {
	data := fmt.Sprintf("%s|%s|%d", orderID, invoiceNumber, time.Now().Unix())
	h := hmac.New(sha256.New, []byte(g.qrSecret))
	h.Write([]byte(data))
	sig := base64.StdEncoding.EncodeToString(h.Sum(nil))
	return data + "|" + sig
}

func (g *Generator) renderPDF(inv models.Invoice) ([]byte, error) {
	qrPNG, err := qrcode.Encode(g.qrPayload(inv.OrderID, inv.InvoiceNumber), qrcode.Medium, 256)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 12, "INVOICE", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 7, "Invoice Number: "+inv.InvoiceNumber, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, "Date: "+inv.InvoiceDate.Format("02 Jan 2006"), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, "Order ID: "+inv.OrderID, "", 1, "L", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 8, "Customer", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 7, "Customer ID: "+inv.CustomerID, "", 1, "L", false, 0, "")
	pdf.Ln(4)

	// Item table
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(80, 8, "Item", "1", 0, "L", false, 0, "")
	pdf.CellFormat(25, 8, "Qty", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 8, "Unit Price", "1", 0, "R", false, 0, "")
	pdf.CellFormat(35, 8, "Amount", "1", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 12)
	for _, item := range inv.Items {
		pdf.CellFormat(80, 8, item.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 8, fmt.Sprintf("%d", item.Quantity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 8, fmt.Sprintf("%.2f", item.Price), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 8, fmt.Sprintf("%.2f", item.Amount), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	pdf.CellFormat(0, 7, fmt.Sprintf("Subtotal: %.2f", inv.Subtotal), "", 1, "R", false, 0, "")
	pdf.CellFormat(0, 7, fmt.Sprintf("Delivery Fee: %.2f", inv.DeliveryFee), "", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("Total: %.2f", inv.TotalAmount), "", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "", 12)
	pdf.Ln(2)
	pdf.CellFormat(0, 7, "Payment Method: "+inv.PaymentMethod, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, "Payment Status: "+inv.PaymentStatus, "", 1, "L", false, 0, "")

	imageOpts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", imageOpts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 160, 20, 35, 35, false, imageOpts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
