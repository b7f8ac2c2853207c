package db

import (
	"context"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ProductsCollection *mongo.Collection
	CartsCollection    *mongo.Collection
	OrdersCollection   *mongo.Collection
	PaymentsCollection *mongo.Collection
	InvoicesCollection *mongo.Collection
	Client             *mongo.Client
)

// Connect establishes the MongoDB connection and binds the collections.
// Called once at startup from main.
func Connect(ctx context.Context, uri string) error {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return err
	}
	Client = client

	database := client.Database("storedb")
	ProductsCollection = database.Collection("products")
	CartsCollection = database.Collection("carts")
	OrdersCollection = database.Collection("orders")
	PaymentsCollection = database.Collection("payments")
	InvoicesCollection = database.Collection("invoices")
	return nil
}

// EnsureIndexes creates the indexes the idempotency contracts rely on:
// one invoice per order, one payment record per gateway order.
func EnsureIndexes(ctx context.Context) error {
	indexSets := []struct {
		coll   *mongo.Collection
		models []mongo.IndexModel
	}{
		{ProductsCollection, []mongo.IndexModel{
			{Keys: bson.M{"productid": 1}, Options: options.Index().SetUnique(true).SetName("unique_productid")},
		}},
		{CartsCollection, []mongo.IndexModel{
			{Keys: bson.M{"userId": 1}, Options: options.Index().SetSparse(true).SetName("cart_userid")},
			{Keys: bson.M{"sessionId": 1}, Options: options.Index().SetSparse(true).SetName("cart_sessionid")},
		}},
		{OrdersCollection, []mongo.IndexModel{
			{Keys: bson.M{"orderId": 1}, Options: options.Index().SetUnique(true).SetName("unique_orderid")},
			{Keys: bson.M{"customerId": 1}, Options: options.Index().SetName("order_customer")},
			{Keys: bson.M{"orderStatus": 1, "orderDate": 1}, Options: options.Index().SetName("order_status_date")},
		}},
		{PaymentsCollection, []mongo.IndexModel{
			{Keys: bson.M{"razorpay_order_id": 1}, Options: options.Index().SetUnique(true).SetName("unique_gateway_order")},
			{Keys: bson.M{"orderId": 1}, Options: options.Index().SetUnique(true).SetName("unique_payment_order")},
		}},
		{InvoicesCollection, []mongo.IndexModel{
			{Keys: bson.M{"orderId": 1}, Options: options.Index().SetUnique(true).SetName("unique_invoice_order")},
			{Keys: bson.M{"invoiceNumber": 1}, Options: options.Index().SetUnique(true).SetName("unique_invoice_number")},
		}},
	}

	for _, set := range indexSets {
		if _, err := set.coll.Indexes().CreateMany(ctx, set.models); err != nil {
			return err
		}
	}
	return nil
}

// Disconnect closes the client; used from the server shutdown hook.
func Disconnect(ctx context.Context) {
	if Client == nil {
		return
	}
	if err := Client.Disconnect(ctx); err != nil {
		log.Printf("mongo disconnect error: %v", err)
	}
}
