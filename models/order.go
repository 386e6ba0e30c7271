package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PaymentMethod string

const (
	PaymentMethodCOD    PaymentMethod = "cod"
	PaymentMethodOnline PaymentMethod = "online"
)

type OrderStatus string

const (
	OrderStatusPlaced         OrderStatus = "placed"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// fulfilment order of the non-terminal statuses
var statusRank = map[OrderStatus]int{
	OrderStatusPlaced:         0,
	OrderStatusProcessing:     1,
	OrderStatusShipped:        2,
	OrderStatusOutForDelivery: 3,
	OrderStatusDelivered:      4,
}

func (s OrderStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok || s == OrderStatusCancelled
}

// CanTransition allows forward moves along the fulfilment path and
// cancellation before the order leaves the warehouse.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	if s == OrderStatusDelivered || s == OrderStatusCancelled {
		return false
	}
	if to == OrderStatusCancelled {
		return s == OrderStatusPlaced || s == OrderStatusProcessing
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	next, ok := statusRank[to]
	return ok && next > from
}

// UserCancellable reports whether the buyer may still cancel.
func (s OrderStatus) UserCancellable() bool {
	return s == OrderStatusPlaced || s == OrderStatusProcessing
}

type OrderItem struct {
	ProductID       primitive.ObjectID `bson:"product_id" json:"product_id"`
	Name            string             `bson:"name" json:"name"`
	Image           string             `bson:"image,omitempty" json:"image,omitempty"`
	Size            string             `bson:"size,omitempty" json:"size,omitempty"`
	Quantity        int                `bson:"quantity" json:"quantity"`
	UnitPrice       float64            `bson:"unit_price" json:"unit_price"`
	DiscountPercent float64            `bson:"discount_percent" json:"discount_percent"`
	FinalPrice      float64            `bson:"final_price" json:"final_price"`
	LineTotal       float64            `bson:"line_total" json:"line_total"`
}

type Order struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TrackingID      string             `bson:"tracking_id" json:"tracking_id"`
	UserID          primitive.ObjectID `bson:"user_id" json:"user_id"`
	Items           []OrderItem        `bson:"items" json:"items"`
	ShippingAddress ShippingAddress    `bson:"shipping_address" json:"shipping_address"`
	Subtotal        float64            `bson:"subtotal" json:"subtotal"`
	DeliveryFee     float64            `bson:"delivery_fee" json:"delivery_fee"`
	Total           float64            `bson:"total" json:"total"`
	Currency        string             `bson:"currency" json:"currency"`
	PaymentMethod   PaymentMethod      `bson:"payment_method" json:"payment_method"`
	PaymentStatus   PaymentStatus      `bson:"payment_status" json:"payment_status"`
	Status          OrderStatus        `bson:"status" json:"status"`
	StripeSessionID string             `bson:"stripe_session_id,omitempty" json:"stripe_session_id,omitempty"`
	StockDeducted   bool               `bson:"stock_deducted" json:"-"`
	CancelReason    string             `bson:"cancel_reason,omitempty" json:"cancel_reason,omitempty"`
	CancelledAt     *time.Time         `bson:"cancelled_at,omitempty" json:"cancelled_at,omitempty"`
	DeliveredAt     *time.Time         `bson:"delivered_at,omitempty" json:"delivered_at,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updated_at"`
}

// StockLines returns the inventory lines this order consumes.
func (o *Order) StockLines() []StockLine {
	lines := make([]StockLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, StockLine{ProductID: it.ProductID, Size: it.Size, Quantity: it.Quantity, Name: it.Name})
	}
	return lines
}

type OrderFilter struct {
	UserID        *primitive.ObjectID
	Status        OrderStatus
	PaymentStatus PaymentStatus
	Page          int
	Limit         int
}

type OrderLineRequest struct {
	ProductID string `json:"product_id" binding:"required,objectid"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity" binding:"required,gte=1,lte=100"`
}

// PlaceOrderRequest falls back to the caller's cart when Items is empty and
// to the default address when neither AddressID nor Address is given.
type PlaceOrderRequest struct {
	Items         []OrderLineRequest `json:"items" binding:"omitempty,dive"`
	AddressID     string             `json:"address_id" binding:"omitempty,objectid"`
	Address       *AddressRequest    `json:"address"`
	PaymentMethod PaymentMethod      `json:"payment_method" binding:"required,oneof=cod online"`
}

type PlaceOrderResponse struct {
	Order       *Order `json:"order"`
	CheckoutURL string `json:"checkout_url,omitempty"`
}

type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required"`
	Reason string      `json:"reason"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

type AdminStats struct {
	TotalOrders    int64                 `json:"total_orders"`
	Revenue        float64               `json:"revenue"`
	OrdersByStatus map[OrderStatus]int64 `json:"orders_by_status"`
	TotalProducts  int64                 `json:"total_products"`
	TotalUsers     int64                 `json:"total_users"`
	LowStockItems  int64                 `json:"low_stock_items"`
}
