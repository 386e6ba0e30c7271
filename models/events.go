package models

import "time"

const (
	EventOrderPlaced        = "order_placed"
	EventOrderPaid          = "order_paid"
	EventOrderCancelled     = "order_cancelled"
	EventOrderStatusChanged = "order_status_changed"
	EventPaymentFailed      = "payment_failed"
)

// OrderEvent is published to SNS on every order lifecycle change.
type OrderEvent struct {
	EventType     string        `json:"event_type"`
	OrderID       string        `json:"order_id"`
	TrackingID    string        `json:"tracking_id"`
	UserID        string        `json:"user_id"`
	Status        OrderStatus   `json:"status"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Total         float64       `json:"total"`
	Currency      string        `json:"currency"`
	Reason        string        `json:"reason,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

func NewOrderEvent(eventType string, o *Order) OrderEvent {
	return OrderEvent{
		EventType:     eventType,
		OrderID:       o.ID.Hex(),
		TrackingID:    o.TrackingID,
		UserID:        o.UserID.Hex(),
		Status:        o.Status,
		PaymentMethod: o.PaymentMethod,
		PaymentStatus: o.PaymentStatus,
		Total:         o.Total,
		Currency:      o.Currency,
		Reason:        o.CancelReason,
		Timestamp:     time.Now().UTC(),
	}
}
