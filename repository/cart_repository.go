package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yashrajoria/storefront/models"
)

// RedisCartRepository stores each cart as one JSON value with a sliding TTL.
type RedisCartRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCartRepository(client *redis.Client, ttl time.Duration) *RedisCartRepository {
	return &RedisCartRepository{client: client, ttl: ttl}
}

func cartKey(userID string) string {
	return fmt.Sprintf("cart:user:%s", userID)
}

// Get returns an empty cart when none is stored.
func (r *RedisCartRepository) Get(ctx context.Context, userID string) (*models.Cart, error) {
	data, err := r.client.Get(ctx, cartKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return &models.Cart{UserID: userID, Items: []models.CartItem{}}, nil
	}
	if err != nil {
		return nil, err
	}

	var cart models.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("corrupt cart for user %s: %w", userID, err)
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return &cart, nil
}

func (r *RedisCartRepository) Save(ctx context.Context, cart *models.Cart) error {
	if len(cart.Items) == 0 {
		return r.Delete(ctx, cart.UserID)
	}
	cart.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, cartKey(cart.UserID), data, r.ttl).Err()
}

func (r *RedisCartRepository) Delete(ctx context.Context, userID string) error {
	return r.client.Del(ctx, cartKey(userID)).Err()
}

// RedisEventClaimer marks external event ids as processed with SETNX.
type RedisEventClaimer struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisEventClaimer(client *redis.Client, prefix string, ttl time.Duration) *RedisEventClaimer {
	return &RedisEventClaimer{client: client, prefix: prefix, ttl: ttl}
}

// Claim reports true the first time eventID is seen within ttl.
func (c *RedisEventClaimer) Claim(ctx context.Context, eventID string) (bool, error) {
	return c.client.SetNX(ctx, c.prefix+eventID, time.Now().Unix(), c.ttl).Result()
}

// Release forgets eventID so a failed delivery can be retried.
func (c *RedisEventClaimer) Release(ctx context.Context, eventID string) error {
	return c.client.Del(ctx, c.prefix+eventID).Err()
}
