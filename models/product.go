package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Product struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name            string             `bson:"name" json:"name"`
	Description     string             `bson:"description" json:"description"`
	Category        string             `bson:"category" json:"category"`
	SubCategory     string             `bson:"sub_category,omitempty" json:"sub_category,omitempty"`
	Price           float64            `bson:"price" json:"price"`
	DiscountPercent float64            `bson:"discount_percent" json:"discount_percent"`
	Images          []string           `bson:"images" json:"images"`
	Sizes           []string           `bson:"sizes" json:"sizes"`
	Bestseller      bool               `bson:"bestseller" json:"bestseller"`
	RatingAverage   float64            `bson:"rating_average" json:"rating_average"`
	RatingCount     int                `bson:"rating_count" json:"rating_count"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updated_at"`
	DeletedAt       *time.Time         `bson:"deleted_at,omitempty" json:"-"`
}

// HasSize reports whether size is offered. Products without sizes accept
// only the empty size.
func (p *Product) HasSize(size string) bool {
	if len(p.Sizes) == 0 {
		return size == ""
	}
	for _, s := range p.Sizes {
		if s == size {
			return true
		}
	}
	return false
}

// ProductDetail is a product plus its per-size stock.
type ProductDetail struct {
	Product
	FinalPrice float64        `json:"final_price"`
	Stock      map[string]int `json:"stock"`
	InStock    bool           `json:"in_stock"`
}

type ProductFilter struct {
	Category    string
	SubCategory string
	Search      string
	Bestseller  *bool
	MinPrice    *float64
	MaxPrice    *float64
	Sort        string // price_asc | price_desc | newest | rating
	Page        int
	Limit       int
}

type CreateProductRequest struct {
	Name            string         `json:"name" binding:"required,min=2,max=200"`
	Description     string         `json:"description" binding:"max=5000"`
	Category        string         `json:"category" binding:"required"`
	SubCategory     string         `json:"sub_category"`
	Price           float64        `json:"price" binding:"required,gt=0"`
	DiscountPercent float64        `json:"discount_percent" binding:"gte=0,lte=100"`
	Images          []string       `json:"images" binding:"omitempty,dive,url"`
	Sizes           []string       `json:"sizes" binding:"omitempty,dive,required"`
	Bestseller      bool           `json:"bestseller"`
	Stock           map[string]int `json:"stock"`
}

type UpdateProductRequest struct {
	Name            *string   `json:"name" binding:"omitempty,min=2,max=200"`
	Description     *string   `json:"description" binding:"omitempty,max=5000"`
	Category        *string   `json:"category" binding:"omitempty,min=1"`
	SubCategory     *string   `json:"sub_category"`
	Price           *float64  `json:"price" binding:"omitempty,gt=0"`
	DiscountPercent *float64  `json:"discount_percent" binding:"omitempty,gte=0,lte=100"`
	Images          *[]string `json:"images" binding:"omitempty,dive,url"`
	Sizes           *[]string `json:"sizes" binding:"omitempty,dive,required"`
	Bestseller      *bool     `json:"bestseller"`
}

type PresignUploadRequest struct {
	FileName    string `json:"file_name" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
}

type PresignUploadResponse struct {
	UploadURL string            `json:"upload_url"`
	Headers   map[string]string `json:"headers"`
	ImageURL  string            `json:"image_url"`
	ExpiresIn int               `json:"expires_in"`
}
