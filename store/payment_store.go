package store

import (
	"context"
	"errors"
	"time"

	"vastra/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var terminalPaymentStatuses = []models.PaymentStatus{
	models.PaymentCaptured,
	models.PaymentFailed,
	models.PaymentRefunded,
}

type PaymentStore struct {
	coll *mongo.Collection
}

func NewPaymentStore(coll *mongo.Collection) *PaymentStore {
	return &PaymentStore{coll: coll}
}

func (s *PaymentStore) Insert(ctx context.Context, p *models.Payment) error {
	_, err := s.coll.InsertOne(ctx, p)
	if isDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}

func (s *PaymentStore) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error) {
	var p models.Payment
	err := s.coll.FindOne(ctx, bson.M{"razorpay_order_id": gatewayOrderID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PaymentStore) FindByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	var p models.Payment
	err := s.coll.FindOne(ctx, bson.M{"orderId": orderID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CaptureIf is the convergence point of the two confirmation channels: a
// conditional update that only succeeds while the payment is not yet in a
// terminal state. Exactly one caller wins; everyone else sees won=false and
// the already-terminal record. ErrNotFound when no record exists for the
// gateway order (records are never created implicitly).
func (s *PaymentStore) CaptureIf(ctx context.Context, gatewayOrderID, gatewayPaymentID, method string) (bool, *models.Payment, error) {
	filter := bson.M{
		"razorpay_order_id": gatewayOrderID,
		"status":            bson.M{"$nin": terminalPaymentStatuses},
	}
	update := bson.M{"$set": bson.M{
		"payment_id": gatewayPaymentID,
		"status":     models.PaymentCaptured,
		"method":     method,
		"updated_at": time.Now(),
	}}
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, nil, err
	}
	p, err := s.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return false, nil, err
	}
	return res.ModifiedCount > 0, p, nil
}

// MarkAuthorized advances created → authorized; a no-op once any later
// status landed.
func (s *PaymentStore) MarkAuthorized(ctx context.Context, gatewayOrderID, gatewayPaymentID string) (bool, *models.Payment, error) {
	filter := bson.M{
		"razorpay_order_id": gatewayOrderID,
		"status":            models.PaymentCreated,
	}
	update := bson.M{"$set": bson.M{
		"payment_id": gatewayPaymentID,
		"status":     models.PaymentAuthorized,
		"updated_at": time.Now(),
	}}
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, nil, err
	}
	p, err := s.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return false, nil, err
	}
	return res.ModifiedCount > 0, p, nil
}

// MarkFailed diverts a non-terminal payment to failed.
func (s *PaymentStore) MarkFailed(ctx context.Context, gatewayOrderID, gatewayPaymentID string) (bool, *models.Payment, error) {
	filter := bson.M{
		"razorpay_order_id": gatewayOrderID,
		"status":            bson.M{"$nin": terminalPaymentStatuses},
	}
	update := bson.M{"$set": bson.M{
		"payment_id": gatewayPaymentID,
		"status":     models.PaymentFailed,
		"updated_at": time.Now(),
	}}
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, nil, err
	}
	p, err := s.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return false, nil, err
	}
	return res.ModifiedCount > 0, p, nil
}

// SetRefund records the gateway refund on the payment identified by its
// gateway payment id.
func (s *PaymentStore) SetRefund(ctx context.Context, gatewayPaymentID, refundID, refundStatus string, at time.Time) (*models.Payment, error) {
	filter := bson.M{"payment_id": gatewayPaymentID}
	update := bson.M{"$set": bson.M{
		"refund_id":     refundID,
		"refund_status": refundStatus,
		"refunded_at":   at,
		"status":        models.PaymentRefunded,
		"updated_at":    time.Now(),
	}}
	res := s.coll.FindOneAndUpdate(ctx, filter, update)
	var p models.Payment
	err := res.Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
