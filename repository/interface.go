package repository

import (
	"context"
	"errors"

	"github.com/yashrajoria/storefront/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicate         = errors.New("duplicate record")
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrConflict means a conditional update matched nothing because the
	// document changed underneath the caller.
	ErrConflict = errors.New("document state changed")
)

type UserRepository interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByClerkID(ctx context.Context, clerkID string) (*models.User, error)
	// FindOrCreate inserts u if no user has u.ClerkID and returns the stored
	// user either way.
	FindOrCreate(ctx context.Context, u *models.User) (*models.User, error)
	Update(ctx context.Context, id primitive.ObjectID, updates bson.M) (*models.User, error)
	List(ctx context.Context, page, limit int) ([]models.User, int64, error)
	Count(ctx context.Context) (int64, error)
}

type ProductRepository interface {
	Create(ctx context.Context, p *models.Product) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error)
	List(ctx context.Context, f models.ProductFilter) ([]models.Product, int64, error)
	Update(ctx context.Context, id primitive.ObjectID, updates bson.M) (*models.Product, error)
	SoftDelete(ctx context.Context, id primitive.ObjectID) error
	SetRating(ctx context.Context, id primitive.ObjectID, s models.RatingSummary) error
	Count(ctx context.Context) (int64, error)
}

type InventoryRepository interface {
	FindByProduct(ctx context.Context, productID primitive.ObjectID) ([]models.Inventory, error)
	FindByProducts(ctx context.Context, productIDs []primitive.ObjectID) ([]models.Inventory, error)
	Upsert(ctx context.Context, productID primitive.ObjectID, size string, stock int) (*models.Inventory, error)
	// Decrement subtracts qty only while stock >= qty, in one update.
	// ErrInsufficientStock is returned when no document qualifies.
	Decrement(ctx context.Context, productID primitive.ObjectID, size string, qty int) error
	Increment(ctx context.Context, productID primitive.ObjectID, size string, qty int) error
	CountLowStock(ctx context.Context, threshold int) (int64, error)
}

type AddressRepository interface {
	Create(ctx context.Context, a *models.Address) error
	FindByID(ctx context.Context, id, userID primitive.ObjectID) (*models.Address, error)
	FindByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Address, error)
	FindDefault(ctx context.Context, userID primitive.ObjectID) (*models.Address, error)
	Update(ctx context.Context, a *models.Address) error
	Delete(ctx context.Context, id, userID primitive.ObjectID) error
	ClearDefault(ctx context.Context, userID, except primitive.ObjectID) error
	CountByUser(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

type OrderRepository interface {
	Create(ctx context.Context, o *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	FindByTrackingID(ctx context.Context, trackingID string) (*models.Order, error)
	List(ctx context.Context, f models.OrderFilter) ([]models.Order, int64, error)
	Update(ctx context.Context, id primitive.ObjectID, updates bson.M) error
	// UpdateIfStatus applies updates only while the order is in one of from
	// and returns the updated order. ErrConflict when the status moved on.
	UpdateIfStatus(ctx context.Context, id primitive.ObjectID, from []models.OrderStatus, updates bson.M) (*models.Order, error)
	// SetStockDeducted flips stock_deducted from !deducted to deducted and
	// reports whether this call made the change.
	SetStockDeducted(ctx context.Context, id primitive.ObjectID, deducted bool) (bool, error)
	Stats(ctx context.Context) (total int64, revenue float64, byStatus map[models.OrderStatus]int64, err error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *models.PaymentDetails) error
	FindByOrderID(ctx context.Context, orderID primitive.ObjectID) (*models.PaymentDetails, error)
	UpdateByOrderID(ctx context.Context, orderID primitive.ObjectID, updates bson.M) error
}

type ReviewRepository interface {
	Create(ctx context.Context, r *models.Review) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Review, error)
	ListByProduct(ctx context.Context, productID primitive.ObjectID, page, limit int) ([]models.Review, int64, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	Summary(ctx context.Context, productID primitive.ObjectID) (models.RatingSummary, error)
}

type CartRepository interface {
	Get(ctx context.Context, userID string) (*models.Cart, error)
	Save(ctx context.Context, c *models.Cart) error
	Delete(ctx context.Context, userID string) error
}

// Transactor runs fn inside a database transaction. Repository calls made
// with the ctx handed to fn join that transaction.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventClaimer records processed external event ids so redeliveries are
// dropped.
type EventClaimer interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

func skip(page, limit int) int64 {
	if page < 1 {
		page = 1
	}
	return int64((page - 1) * limit)
}
