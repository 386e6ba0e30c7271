package repository

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/yashrajoria/storefront/database"
	"github.com/yashrajoria/storefront/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoProductRepository struct {
	collection *mongo.Collection
}

func NewProductRepository(db *mongo.Database) *MongoProductRepository {
	return &MongoProductRepository{collection: db.Collection(database.ProductsCollection)}
}

var notDeleted = bson.M{"$exists": false}

func (r *MongoProductRepository) Create(ctx context.Context, p *models.Product) error {
	now := time.Now().UTC()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := r.collection.InsertOne(ctx, p)
	return err
}

func (r *MongoProductRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var p models.Product
	err := r.collection.FindOne(ctx, bson.M{"_id": id, "deleted_at": notDeleted}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *MongoProductRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}
	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}, "deleted_at": notDeleted})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	products := []models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// BuildProductQuery turns a filter into the Mongo filter and sort document.
func BuildProductQuery(f models.ProductFilter) (bson.M, bson.D) {
	filter := bson.M{"deleted_at": notDeleted}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.SubCategory != "" {
		filter["sub_category"] = f.SubCategory
	}
	if f.Bestseller != nil {
		filter["bestseller"] = *f.Bestseller
	}
	if f.Search != "" {
		filter["name"] = primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
	}
	if f.MinPrice != nil || f.MaxPrice != nil {
		price := bson.M{}
		if f.MinPrice != nil {
			price["$gte"] = *f.MinPrice
		}
		if f.MaxPrice != nil {
			price["$lte"] = *f.MaxPrice
		}
		filter["price"] = price
	}

	var sort bson.D
	switch f.Sort {
	case "price_asc":
		sort = bson.D{{Key: "price", Value: 1}}
	case "price_desc":
		sort = bson.D{{Key: "price", Value: -1}}
	case "rating":
		sort = bson.D{{Key: "rating_average", Value: -1}, {Key: "rating_count", Value: -1}}
	default:
		sort = bson.D{{Key: "created_at", Value: -1}}
	}
	sort = append(sort, bson.E{Key: "_id", Value: 1})
	return filter, sort
}

func (r *MongoProductRepository) List(ctx context.Context, f models.ProductFilter) ([]models.Product, int64, error) {
	filter, sort := BuildProductQuery(f)

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().SetSort(sort).SetSkip(skip(f.Page, f.Limit)).SetLimit(int64(f.Limit))
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	products := []models.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *MongoProductRepository) Update(ctx context.Context, id primitive.ObjectID, updates bson.M) (*models.Product, error) {
	delete(updates, "_id")
	updates["updated_at"] = time.Now().UTC()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var p models.Product
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id, "deleted_at": notDeleted}, bson.M{"$set": updates}, opts).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// SoftDelete stamps deleted_at; order history keeps referencing the id.
func (r *MongoProductRepository) SoftDelete(ctx context.Context, id primitive.ObjectID) error {
	now := time.Now().UTC()
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "deleted_at": notDeleted},
		bson.M{"$set": bson.M{"deleted_at": now, "updated_at": now}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoProductRepository) SetRating(ctx context.Context, id primitive.ObjectID, s models.RatingSummary) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"rating_average": s.Average,
		"rating_count":   s.Count,
	}})
	return err
}

func (r *MongoProductRepository) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"deleted_at": notDeleted})
}
