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

type ProductStore struct {
	coll *mongo.Collection
}

func NewProductStore(coll *mongo.Collection) *ProductStore {
	return &ProductStore{coll: coll}
}

func (s *ProductStore) Insert(ctx context.Context, p *models.Product) error {
	_, err := s.coll.InsertOne(ctx, p)
	if isDuplicateKey(err) {
		return ErrDuplicate
	}
	return err
}

func (s *ProductStore) FindByID(ctx context.Context, productID string) (*models.Product, error) {
	var p models.Product
	err := s.coll.FindOne(ctx, bson.M{"productid": productID}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *ProductStore) List(ctx context.Context, category string, skip, limit int64) ([]models.Product, error) {
	filter := bson.M{}
	if category != "" {
		filter["category"] = category
	}
	opts := options.Find().
		SetSort(bson.M{"createdAt": -1}).
		SetSkip(skip).
		SetLimit(limit)

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var products []models.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// ListDiscounted returns products currently carrying a discount, steepest
// first.
func (s *ProductStore) ListDiscounted(ctx context.Context, skip, limit int64) ([]models.Product, error) {
	opts := options.Find().
		SetSort(bson.M{"discount": -1}).
		SetSkip(skip).
		SetLimit(limit)

	cursor, err := s.coll.Find(ctx, bson.M{"discount": bson.M{"$gt": 0}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var products []models.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *ProductStore) Update(ctx context.Context, productID string, fields bson.M) error {
	fields["updatedAt"] = time.Now()
	res, err := s.coll.UpdateOne(ctx, bson.M{"productid": productID}, bson.M{"$set": fields})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ProductStore) Delete(ctx context.Context, productID string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"productid": productID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DecrementStock atomically takes qty units out of stock and records the
// buyer. The availability filter makes the operation fail rather than drive
// stock negative under concurrent commits.
func (s *ProductStore) DecrementStock(ctx context.Context, productID string, qty int, buyerID string) error {
	filter := bson.M{"productid": productID, "stock": bson.M{"$gte": qty}}
	update := bson.M{
		"$inc":      bson.M{"stock": -qty},
		"$addToSet": bson.M{"customers": buyerID},
		"$set":      bson.M{"updatedAt": time.Now()},
	}
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.ModifiedCount == 0 {
		// Distinguish missing product from exhausted stock.
		if n, err := s.coll.CountDocuments(ctx, bson.M{"productid": productID}); err == nil && n == 0 {
			return ErrNotFound
		}
		return ErrInsufficientStock
	}
	return nil
}

// IncrementStock returns qty units to stock (cancellation path).
func (s *ProductStore) IncrementStock(ctx context.Context, productID string, qty int) error {
	update := bson.M{
		"$inc": bson.M{"stock": qty},
		"$set": bson.M{"updatedAt": time.Now()},
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"productid": productID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
