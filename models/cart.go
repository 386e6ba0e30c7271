package models

import "time"

// Cart lives in Redis, keyed by the user id.
type Cart struct {
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type CartItem struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

// Find returns the index of the line for productID and size, or -1.
func (c *Cart) Find(productID, size string) int {
	for i, it := range c.Items {
		if it.ProductID == productID && it.Size == size {
			return i
		}
	}
	return -1
}

type CartItemRequest struct {
	ProductID string `json:"product_id" binding:"required,objectid"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity" binding:"gte=0,lte=100"`
}

// PricedCartLine is a cart line joined with its product.
type PricedCartLine struct {
	CartItem
	Name            string  `json:"name"`
	Image           string  `json:"image,omitempty"`
	UnitPrice       float64 `json:"unit_price"`
	DiscountPercent float64 `json:"discount_percent"`
	FinalPrice      float64 `json:"final_price"`
	LineTotal       float64 `json:"line_total"`
	Available       bool    `json:"available"`
}

type CartView struct {
	Items       []PricedCartLine `json:"items"`
	Subtotal    float64          `json:"subtotal"`
	DeliveryFee float64          `json:"delivery_fee"`
	Total       float64          `json:"total"`
	Currency    string           `json:"currency"`
}
