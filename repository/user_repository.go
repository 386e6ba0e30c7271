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

type MongoUserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{collection: db.Collection(database.UsersCollection)}
}

func (r *MongoUserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoUserRepository) FindByClerkID(ctx context.Context, clerkID string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"clerk_id": clerkID})
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := r.collection.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// FindOrCreate upserts on clerk_id with $setOnInsert, so concurrent first
// requests from the same identity end up with one document.
func (r *MongoUserRepository) FindOrCreate(ctx context.Context, u *models.User) (*models.User, error) {
	now := time.Now().UTC()
	role := u.Role
	if role == "" {
		role = models.RoleUser
	}
	update := bson.M{
		"$setOnInsert": bson.M{
			"clerk_id":   u.ClerkID,
			"email":      u.Email,
			"name":       u.Name,
			"avatar_url": u.AvatarURL,
			"role":       role,
			"created_at": now,
			"updated_at": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var out models.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"clerk_id": u.ClerkID}, update, opts).Decode(&out)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return r.FindByClerkID(ctx, u.ClerkID)
		}
		return nil, err
	}
	return &out, nil
}

func (r *MongoUserRepository) Update(ctx context.Context, id primitive.ObjectID, updates bson.M) (*models.User, error) {
	updates["updated_at"] = time.Now().UTC()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var out models.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": updates}, opts).Decode(&out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (r *MongoUserRepository) List(ctx context.Context, page, limit int) ([]models.User, int64, error) {
	total, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(skip(page, limit)).
		SetLimit(int64(limit))
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *MongoUserRepository) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}
