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

type MongoOrderRepository struct {
	collection *mongo.Collection
}

func NewOrderRepository(db *mongo.Database) *MongoOrderRepository {
	return &MongoOrderRepository{collection: db.Collection(database.OrdersCollection)}
}

func (r *MongoOrderRepository) Create(ctx context.Context, o *models.Order) error {
	now := time.Now().UTC()
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	o.CreatedAt, o.UpdatedAt = now, now
	if _, err := r.collection.InsertOne(ctx, o); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (r *MongoOrderRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoOrderRepository) FindByTrackingID(ctx context.Context, trackingID string) (*models.Order, error) {
	return r.findOne(ctx, bson.M{"tracking_id": trackingID})
}

func (r *MongoOrderRepository) findOne(ctx context.Context, filter bson.M) (*models.Order, error) {
	var o models.Order
	if err := r.collection.FindOne(ctx, filter).Decode(&o); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *MongoOrderRepository) List(ctx context.Context, f models.OrderFilter) ([]models.Order, int64, error) {
	filter := bson.M{}
	if f.UserID != nil {
		filter["user_id"] = *f.UserID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.PaymentStatus != "" {
		filter["payment_status"] = f.PaymentStatus
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(skip(f.Page, f.Limit)).
		SetLimit(int64(f.Limit))
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *MongoOrderRepository) Update(ctx context.Context, id primitive.ObjectID, updates bson.M) error {
	updates["updated_at"] = time.Now().UTC()
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": updates})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoOrderRepository) UpdateIfStatus(ctx context.Context, id primitive.ObjectID, from []models.OrderStatus, updates bson.M) (*models.Order, error) {
	updates["updated_at"] = time.Now().UTC()
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var o models.Order
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": from}},
		bson.M{"$set": updates}, opts).Decode(&o)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return &o, nil
}

func (r *MongoOrderRepository) SetStockDeducted(ctx context.Context, id primitive.ObjectID, deducted bool) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "stock_deducted": !deducted},
		bson.M{"$set": bson.M{"stock_deducted": deducted, "updated_at": time.Now().UTC()}})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

// Stats groups orders by status. Revenue counts paid orders only.
func (r *MongoOrderRepository) Stats(ctx context.Context) (int64, float64, map[models.OrderStatus]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
			"revenue": bson.M{"$sum": bson.M{
				"$cond": bson.A{bson.M{"$eq": bson.A{"$payment_status", models.PaymentStatusPaid}}, "$total", 0},
			}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, 0, nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status  models.OrderStatus `bson:"_id"`
		Count   int64              `bson:"count"`
		Revenue float64            `bson:"revenue"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return 0, 0, nil, err
	}

	var total int64
	var revenue float64
	byStatus := make(map[models.OrderStatus]int64, len(rows))
	for _, row := range rows {
		total += row.Count
		revenue += row.Revenue
		byStatus[row.Status] = row.Count
	}
	return total, revenue, byStatus, nil
}
