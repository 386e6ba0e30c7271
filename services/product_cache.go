package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yashrajoria/storefront/models"
	"go.uber.org/zap"
)

const (
	productCachePrefix     = "product:detail:"
	productListCachePrefix = "products:v:"
	productCacheVersionKey = "products:version"
)

// ProductCache caches product documents and list pages. List keys embed a
// version counter; any write bumps it so every cached page goes stale at
// once. Stock is never cached. A nil *ProductCache is a valid no-op cache.
type ProductCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewProductCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ProductCache {
	return &ProductCache{redis: client, ttl: ttl, logger: logger}
}

type cachedProductPage struct {
	Products []models.Product `json:"products"`
	Total    int64            `json:"total"`
}

func (c *ProductCache) GetProduct(ctx context.Context, id string) (*models.Product, bool) {
	if c == nil {
		return nil, false
	}
	data, err := c.redis.Get(ctx, productCachePrefix+id).Bytes()
	if err != nil {
		return nil, false
	}
	var p models.Product
	if err := json.Unmarshal(data, &p); err != nil {
		c.logger.Warn("Failed to unmarshal cached product", zap.String("product_id", id), zap.Error(err))
		return nil, false
	}
	return &p, true
}

func (c *ProductCache) SetProduct(ctx context.Context, p *models.Product) {
	if c == nil {
		return
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, productCachePrefix+p.ID.Hex(), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to cache product", zap.String("product_id", p.ID.Hex()), zap.Error(err))
	}
}

func (c *ProductCache) GetList(ctx context.Context, f models.ProductFilter) ([]models.Product, int64, bool) {
	if c == nil {
		return nil, 0, false
	}
	version, err := c.version(ctx)
	if err != nil {
		return nil, 0, false
	}
	data, err := c.redis.Get(ctx, listCacheKey(version, f)).Bytes()
	if err != nil {
		return nil, 0, false
	}
	var page cachedProductPage
	if err := json.Unmarshal(data, &page); err != nil {
		c.logger.Warn("Failed to unmarshal cached product list", zap.Error(err))
		return nil, 0, false
	}
	return page.Products, page.Total, true
}

func (c *ProductCache) SetList(ctx context.Context, f models.ProductFilter, products []models.Product, total int64) {
	if c == nil {
		return
	}
	version, err := c.version(ctx)
	if err != nil {
		return
	}
	data, err := json.Marshal(cachedProductPage{Products: products, Total: total})
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, listCacheKey(version, f), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to cache product list", zap.Error(err))
	}
}

// Invalidate drops the product entry and retires every cached list page.
func (c *ProductCache) Invalidate(ctx context.Context, productID string) {
	if c == nil {
		return
	}
	if err := c.redis.Incr(ctx, productCacheVersionKey).Err(); err != nil {
		c.logger.Error("Failed to bump product cache version", zap.String("product_id", productID), zap.Error(err))
	}
	if productID != "" {
		if err := c.redis.Del(ctx, productCachePrefix+productID).Err(); err != nil {
			c.logger.Warn("Failed to delete product cache", zap.String("product_id", productID), zap.Error(err))
		}
	}
}

func (c *ProductCache) version(ctx context.Context) (int64, error) {
	v, err := c.redis.Get(ctx, productCacheVersionKey).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.redis.SetNX(ctx, productCacheVersionKey, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.redis.Get(ctx, productCacheVersionKey).Int64()
	}
	return v, err
}

func listCacheKey(version int64, f models.ProductFilter) string {
	best := ""
	if f.Bestseller != nil {
		best = strconv.FormatBool(*f.Bestseller)
	}
	return fmt.Sprintf("%s%d:p:%d:l:%d:c:%s:sc:%s:q:%s:b:%s:min:%s:max:%s:s:%s",
		productListCachePrefix, version, f.Page, f.Limit,
		f.Category, f.SubCategory, f.Search, best,
		formatOptionalFloat(f.MinPrice), formatOptionalFloat(f.MaxPrice), f.Sort)
}

func formatOptionalFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
