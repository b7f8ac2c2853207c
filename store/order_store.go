package store

import (
	"context"
	"errors"
	"time"

	"vastra/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type OrderStore struct {
	coll *mongo.Collection
}

func NewOrderStore(coll *mongo.Collection) *OrderStore {
	return &OrderStore{coll: coll}
}

func (s *OrderStore) Insert(ctx context.Context, order *models.Order) error {
	_, err := s.coll.InsertOne(ctx, order)
	if isDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}

func (s *OrderStore) FindByID(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	err := s.coll.FindOne(ctx, bson.M{"orderId": orderID}).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *OrderStore) FindByCustomer(ctx context.Context, customerID string) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.M{"orderDate": -1})
	cursor, err := s.coll.Find(ctx, bson.M{"customerId": customerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *OrderStore) FindAll(ctx context.Context) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.M{"orderDate": -1})
	cursor, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatusIf is the compare-and-swap every lifecycle transition goes
// through: the write only lands when the order is still in one of the
// expected prior states. Returns whether this caller won the transition.
func (s *OrderStore) UpdateStatusIf(ctx context.Context, orderID string, from []models.OrderStatus, to models.OrderStatus) (bool, error) {
	filter := bson.M{"orderId": orderID, "orderStatus": bson.M{"$in": from}}
	update := bson.M{"$set": bson.M{"orderStatus": to}}
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// MarkCancelled stamps the cancellation, guarded against double-cancel.
func (s *OrderStore) MarkCancelled(ctx context.Context, orderID, reason string, at time.Time) (bool, error) {
	filter := bson.M{"orderId": orderID, "orderStatus": bson.M{"$ne": models.StatusCancelled}}
	update := bson.M{"$set": bson.M{
		"orderStatus":        models.StatusCancelled,
		"cancelledAt":        at,
		"cancellationReason": reason,
	}}
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (s *OrderStore) SetPaymentRef(ctx context.Context, orderID, paymentID string) error {
	_, err := s.coll.UpdateOne(ctx, bson.M{"orderId": orderID}, bson.M{"$set": bson.M{"paymentId": paymentID}})
	return err
}

func (s *OrderStore) SetInvoiceNumber(ctx context.Context, orderID, invoiceNumber string) error {
	_, err := s.coll.UpdateOne(ctx, bson.M{"orderId": orderID}, bson.M{"$set": bson.M{"invoiceNumber": invoiceNumber}})
	return err
}

// DeleteIfStatus removes the order only while it is still in the given
// state; the owner-side delete of not-yet-processed orders uses this.
func (s *OrderStore) DeleteIfStatus(ctx context.Context, orderID string, status models.OrderStatus) (bool, error) {
	res, err := s.coll.DeleteOne(ctx, bson.M{"orderId": orderID, "orderStatus": status})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

// FindByStatuses lists orders currently in any of the given states.
func (s *OrderStore) FindByStatuses(ctx context.Context, statuses []models.OrderStatus) ([]models.Order, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"orderStatus": bson.M{"$in": statuses}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// FindAwaitingOlderThan returns online orders still waiting on payment past
// the cutoff, for the abandonment sweep.
func (s *OrderStore) FindAwaitingOlderThan(ctx context.Context, cutoff time.Time) ([]models.Order, error) {
	filter := bson.M{
		"orderStatus": models.StatusAwaitingPayment,
		"orderDate":   bson.M{"$lt": cutoff},
	}
	cursor, err := s.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// RevenueStats sums units sold and discounted revenue over non-cancelled
// orders from their immutable item snapshots.
func (s *OrderStore) RevenueStats(ctx context.Context) (int, float64, error) {
	filter := bson.M{"orderStatus": bson.M{"$ne": models.StatusCancelled}}
	cursor, err := s.coll.Find(ctx, filter)
	if err != nil {
		return 0, 0, err
	}
	defer cursor.Close(ctx)

	var sales int
	var revenue float64
	for cursor.Next(ctx) {
		var order models.Order
		if err := cursor.Decode(&order); err != nil {
			return 0, 0, err
		}
		for _, item := range order.Items {
			sales += item.Quantity
			unit := item.DiscountPrice
			if unit == 0 {
				unit = item.Price
			}
			revenue += float64(item.Quantity) * unit
		}
	}
	if err := cursor.Err(); err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return 0, 0, err
	}
	return sales, revenue, nil
}
