package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Address struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID `bson:"user_id" json:"user_id"`
	FullName   string             `bson:"full_name" json:"full_name"`
	Phone      string             `bson:"phone" json:"phone"`
	Line1      string             `bson:"line1" json:"line1"`
	Line2      string             `bson:"line2,omitempty" json:"line2,omitempty"`
	City       string             `bson:"city" json:"city"`
	State      string             `bson:"state" json:"state"`
	PostalCode string             `bson:"postal_code" json:"postal_code"`
	Country    string             `bson:"country" json:"country"`
	IsDefault  bool               `bson:"is_default" json:"is_default"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updated_at"`
}

// ShippingAddress is the copy of an address stored on an order, so later
// edits to the address book do not rewrite order history.
type ShippingAddress struct {
	FullName   string `bson:"full_name" json:"full_name"`
	Phone      string `bson:"phone" json:"phone"`
	Line1      string `bson:"line1" json:"line1"`
	Line2      string `bson:"line2,omitempty" json:"line2,omitempty"`
	City       string `bson:"city" json:"city"`
	State      string `bson:"state" json:"state"`
	PostalCode string `bson:"postal_code" json:"postal_code"`
	Country    string `bson:"country" json:"country"`
}

func (a *Address) Snapshot() ShippingAddress {
	return ShippingAddress{
		FullName:   a.FullName,
		Phone:      a.Phone,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

type AddressRequest struct {
	FullName   string `json:"full_name" binding:"required,min=2,max=100"`
	Phone      string `json:"phone" binding:"required,min=7,max=20"`
	Line1      string `json:"line1" binding:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" binding:"required"`
	State      string `json:"state" binding:"required"`
	PostalCode string `json:"postal_code" binding:"required"`
	Country    string `json:"country" binding:"required"`
	IsDefault  bool   `json:"is_default"`
}

func (r *AddressRequest) Snapshot() ShippingAddress {
	return ShippingAddress{
		FullName:   r.FullName,
		Phone:      r.Phone,
		Line1:      r.Line1,
		Line2:      r.Line2,
		City:       r.City,
		State:      r.State,
		PostalCode: r.PostalCode,
		Country:    r.Country,
	}
}
