package repository

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/yashrajoria/storefront/database"
	"github.com/yashrajoria/storefront/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoReviewRepository struct {
	collection *mongo.Collection
}

func NewReviewRepository(db *mongo.Database) *MongoReviewRepository {
	return &MongoReviewRepository{collection: db.Collection(database.ReviewsCollection)}
}

// Create relies on the unique (product_id, user_id) index for the one
// review per buyer rule.
func (r *MongoReviewRepository) Create(ctx context.Context, rv *models.Review) error {
	now := time.Now().UTC()
	if rv.ID.IsZero() {
		rv.ID = primitive.NewObjectID()
	}
	rv.CreatedAt, rv.UpdatedAt = now, now
	if _, err := r.collection.InsertOne(ctx, rv); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *MongoReviewRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Review, error) {
	var rv models.Review
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&rv); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rv, nil
}

func (r *MongoReviewRepository) ListByProduct(ctx context.Context, productID primitive.ObjectID, page, limit int) ([]models.Review, int64, error) {
	filter := bson.M{"product_id": productID}
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(skip(page, limit)).
		SetLimit(int64(limit))
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	reviews := []models.Review{}
	if err := cursor.All(ctx, &reviews); err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

func (r *MongoReviewRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoReviewRepository) Summary(ctx context.Context, productID primitive.ObjectID) (models.RatingSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"product_id": productID}}},
		{{Key: "$group", Value: bson.M{
			"_id":     nil,
			"average": bson.M{"$avg": "$rating"},
			"count":   bson.M{"$sum": 1},
		}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return models.RatingSummary{}, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Average float64 `bson:"average"`
		Count   int     `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return models.RatingSummary{}, err
	}
	if len(rows) == 0 {
		return models.RatingSummary{}, nil
	}
	return models.RatingSummary{
		Average: math.Round(rows[0].Average*10) / 10,
		Count:   rows[0].Count,
	}, nil
}
