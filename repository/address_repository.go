package repository

import (
	"context"
	"errors"
	"time"

	"github.com/yashrajoria/storefront/database"
	"github.com/yashrajoria/storefront/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoAddressRepository struct {
	collection *mongo.Collection
}

func NewAddressRepository(db *mongo.Database) *MongoAddressRepository {
	return &MongoAddressRepository{collection: db.Collection(database.AddressesCollection)}
}

func (r *MongoAddressRepository) Create(ctx context.Context, a *models.Address) error {
	now := time.Now().UTC()
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	a.CreatedAt, a.UpdatedAt = now, now
	_, err := r.collection.InsertOne(ctx, a)
	return err
}

func (r *MongoAddressRepository) FindByID(ctx context.Context, id, userID primitive.ObjectID) (*models.Address, error) {
	return r.findOne(ctx, bson.M{"_id": id, "user_id": userID})
}

func (r *MongoAddressRepository) FindDefault(ctx context.Context, userID primitive.ObjectID) (*models.Address, error) {
	return r.findOne(ctx, bson.M{"user_id": userID, "is_default": true})
}

func (r *MongoAddressRepository) findOne(ctx context.Context, filter bson.M) (*models.Address, error) {
	var a models.Address
	if err := r.collection.FindOne(ctx, filter).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *MongoAddressRepository) FindByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Address, error) {
	opts := options.Find().SetSort(bson.D{{Key: "is_default", Value: -1}, {Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	addresses := []models.Address{}
	if err := cursor.All(ctx, &addresses); err != nil {
		return nil, err
	}
	return addresses, nil
}

func (r *MongoAddressRepository) Update(ctx context.Context, a *models.Address) error {
	a.UpdatedAt = time.Now().UTC()
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": a.ID, "user_id": a.UserID}, a)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoAddressRepository) Delete(ctx context.Context, id, userID primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoAddressRepository) ClearDefault(ctx context.Context, userID, except primitive.ObjectID) error {
	_, err := r.collection.UpdateMany(ctx,
		bson.M{"user_id": userID, "_id": bson.M{"$ne": except}, "is_default": true},
		bson.M{"$set": bson.M{"is_default": false, "updated_at": time.Now().UTC()}})
	return err
}

func (r *MongoAddressRepository) CountByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"user_id": userID})
}
