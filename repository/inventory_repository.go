package repository

import (
	"context"
	"time"

	"github.com/yashrajoria/storefront/database"
	"github.com/yashrajoria/storefront/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoInventoryRepository struct {
	collection *mongo.Collection
}

func NewInventoryRepository(db *mongo.Database) *MongoInventoryRepository {
	return &MongoInventoryRepository{collection: db.Collection(database.InventoryCollection)}
}

func (r *MongoInventoryRepository) FindByProduct(ctx context.Context, productID primitive.ObjectID) ([]models.Inventory, error) {
	return r.find(ctx, bson.M{"product_id": productID})
}

func (r *MongoInventoryRepository) FindByProducts(ctx context.Context, productIDs []primitive.ObjectID) ([]models.Inventory, error) {
	if len(productIDs) == 0 {
		return []models.Inventory{}, nil
	}
	return r.find(ctx, bson.M{"product_id": bson.M{"$in": productIDs}})
}

func (r *MongoInventoryRepository) find(ctx context.Context, filter bson.M) ([]models.Inventory, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "size", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	rows := []models.Inventory{}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *MongoInventoryRepository) Upsert(ctx context.Context, productID primitive.ObjectID, size string, stock int) (*models.Inventory, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	update := bson.M{
		"$set":         bson.M{"stock": stock, "updated_at": time.Now().UTC()},
		"$setOnInsert": bson.M{"product_id": productID, "size": size},
	}

	var inv models.Inventory
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"product_id": productID, "size": size}, update, opts).Decode(&inv)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// Decrement is the only path that takes stock away. The stock >= qty guard
// and the $inc run as one document update, so two buyers cannot both take
// the last unit.
func (r *MongoInventoryRepository) Decrement(ctx context.Context, productID primitive.ObjectID, size string, qty int) error {
	filter := bson.M{"product_id": productID, "size": size, "stock": bson.M{"$gte": qty}}
	update := bson.M{
		"$inc": bson.M{"stock": -qty},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (r *MongoInventoryRepository) Increment(ctx context.Context, productID primitive.ObjectID, size string, qty int) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"product_id": productID, "size": size},
		bson.M{"$inc": bson.M{"stock": qty}, "$set": bson.M{"updated_at": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoInventoryRepository) CountLowStock(ctx context.Context, threshold int) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"stock": bson.M{"$lte": threshold}})
}
