package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PaymentDetails is the payment record kept alongside each order, for both
// cash on delivery and Stripe checkouts.
type PaymentDetails struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderID               primitive.ObjectID `bson:"order_id" json:"order_id"`
	UserID                primitive.ObjectID `bson:"user_id" json:"user_id"`
	Method                PaymentMethod      `bson:"method" json:"method"`
	Amount                float64            `bson:"amount" json:"amount"`
	Currency              string             `bson:"currency" json:"currency"`
	Status                PaymentStatus      `bson:"status" json:"status"`
	StripeSessionID       string             `bson:"stripe_session_id,omitempty" json:"stripe_session_id,omitempty"`
	StripePaymentIntentID string             `bson:"stripe_payment_intent_id,omitempty" json:"stripe_payment_intent_id,omitempty"`
	FailureReason         string             `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`
	PaidAt                *time.Time         `bson:"paid_at,omitempty" json:"paid_at,omitempty"`
	CreatedAt             time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt             time.Time          `bson:"updated_at" json:"updated_at"`
}

// CheckoutSession is the subset of a Stripe Checkout Session the order flow
// needs.
type CheckoutSession struct {
	ID              string
	URL             string
	OrderID         string
	PaymentIntentID string
	PaymentStatus   string // paid | unpaid | no_payment_required
	Status          string // open | complete | expired
}
