package store

import (
	"context"
	"errors"

	"vastra/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type InvoiceStore struct {
	coll *mongo.Collection
}

func NewInvoiceStore(coll *mongo.Collection) *InvoiceStore {
	return &InvoiceStore{coll: coll}
}

// Insert relies on the unique orderId index: a second generation attempt
// for the same order surfaces as ErrDuplicate, which the generator treats
// as success.
func (s *InvoiceStore) Insert(ctx context.Context, inv *models.Invoice) error {
	_, err := s.coll.InsertOne(ctx, inv)
	if isDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}

func (s *InvoiceStore) FindByOrderID(ctx context.Context, orderID string) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.coll.FindOne(ctx, bson.M{"orderId": orderID}).Decode(&inv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListByCustomer returns invoice metadata without the PDF payload.
func (s *InvoiceStore) ListByCustomer(ctx context.Context, customerID string) ([]models.Invoice, error) {
	opts := options.Find().
		SetSort(bson.M{"invoiceDate": -1}).
		SetProjection(bson.M{"pdfContent": 0})

	cursor, err := s.coll.Find(ctx, bson.M{"customerId": customerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var invoices []models.Invoice
	if err := cursor.All(ctx, &invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}
