package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Inventory is the stock count for one size of one product. The pair
// (product_id, size) is unique.
type Inventory struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProductID primitive.ObjectID `bson:"product_id" json:"product_id"`
	Size      string             `bson:"size" json:"size"`
	Stock     int                `bson:"stock" json:"stock"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// StockLine is one (product, size, quantity) triple to check, deduct or
// restore.
type StockLine struct {
	ProductID primitive.ObjectID `json:"product_id"`
	Size      string             `json:"size"`
	Quantity  int                `json:"quantity"`
	Name      string             `json:"-"`
}

type SetStockRequest struct {
	Size  string `json:"size"`
	Stock *int   `json:"stock" binding:"required,gte=0"`
}
