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

type CartStore struct {
	coll *mongo.Collection
}

func NewCartStore(coll *mongo.Collection) *CartStore {
	return &CartStore{coll: coll}
}

func identityFilter(id models.Identity) bson.M {
	if id.UserID != "" {
		return bson.M{"userId": id.UserID}
	}
	return bson.M{"sessionId": id.SessionID}
}

func (s *CartStore) FindByIdentity(ctx context.Context, id models.Identity) (*models.Cart, error) {
	var cart models.Cart
	err := s.coll.FindOne(ctx, identityFilter(id)).Decode(&cart)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// Save upserts the whole cart document keyed by cartId. Cart mutation is
// single-user traffic; the races that matter are handled by re-reading
// stock inside the service before every save.
func (s *CartStore) Save(ctx context.Context, cart *models.Cart) error {
	cart.UpdatedAt = time.Now()
	opts := options.Replace().SetUpsert(true)
	_, err := s.coll.ReplaceOne(ctx, bson.M{"cartId": cart.CartID}, cart, opts)
	return err
}

func (s *CartStore) Delete(ctx context.Context, cartID string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"cartId": cartID})
	return err
}
